package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"video2tool/auth"
	"video2tool/errors"
	"video2tool/mocks"
	"video2tool/repositories"
)

func newAuthService(t *testing.T) (IAuthService, *mocks.MockIUserRepository, *auth.TokenService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenService("test_secret_long_enough_for_hs256", time.Hour)
	return NewAuthService(repo, tokens), repo, tokens
}

func TestAuthService_Register_IssuesVerifiableToken(t *testing.T) {
	req := require.New(t)
	service, repo, tokens := newAuthService(t)

	// Given the repository accepts the new account
	repo.EXPECT().CreateUser("alice@example.com", gomock.Any()).Return("user-42", nil)

	// When a user registers
	token, err := service.Register("alice@example.com", "ComplexPass123!")

	// Then the token resolves to the new user ID
	req.NoError(err)
	identity, err := tokens.Verify(token)
	req.NoError(err)
	req.Equal("user-42", string(identity))
}

func TestAuthService_Register_RejectsWeakPassword(t *testing.T) {
	req := require.New(t)
	service, _, _ := newAuthService(t)

	_, err := service.Register("alice@example.com", "weak")

	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func TestAuthService_Register_PropagatesDuplicate(t *testing.T) {
	req := require.New(t)
	service, repo, _ := newAuthService(t)

	repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return("", errors.ErrUserExists)

	_, err := service.Register("alice@example.com", "ComplexPass123!")

	req.ErrorIs(err, errors.ErrUserExists)
}

func TestAuthService_Login_Succeeds(t *testing.T) {
	req := require.New(t)
	service, repo, tokens := newAuthService(t)

	hash, err := auth.HashPassword("ComplexPass123!")
	req.NoError(err)
	repo.EXPECT().GetUserByEmail("alice@example.com").Return(repositories.User{
		ID:           "user-42",
		Email:        "alice@example.com",
		PasswordHash: hash,
	}, nil)

	token, err := service.Login("alice@example.com", "ComplexPass123!")

	req.NoError(err)
	identity, err := tokens.Verify(token)
	req.NoError(err)
	req.Equal("user-42", string(identity))
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	req := require.New(t)
	service, repo, _ := newAuthService(t)

	hash, err := auth.HashPassword("ComplexPass123!")
	req.NoError(err)
	repo.EXPECT().GetUserByEmail("alice@example.com").Return(repositories.User{
		PasswordHash: hash,
	}, nil)

	_, err = service.Login("alice@example.com", "NotThePassword1!")

	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownAccountIsIndistinguishable(t *testing.T) {
	req := require.New(t)
	service, repo, _ := newAuthService(t)

	repo.EXPECT().GetUserByEmail(gomock.Any()).Return(repositories.User{}, errors.ErrUserNotFound)

	_, err := service.Login("nobody@example.com", "Whatever123!")

	// The caller cannot tell a missing account from a bad password
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}
