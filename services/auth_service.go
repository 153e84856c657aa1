package services

import (
	"fmt"

	"video2tool/auth"
	"video2tool/domain"
	"video2tool/errors"
	"video2tool/repositories"
)

type IAuthService interface {
	Register(email, password string) (string, error)
	Login(email, password string) (string, error)
}

// AuthService issues the credentials that the collaboration layer later
// verifies. Registration and login both return a signed token.
type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenService
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenService) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(email, password string) (string, error) {
	// Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens here to keep the repository unaware of plain passwords.
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(email, hashed)
	if err != nil {
		return "", err
	}
	return s.tokens.Generate(domain.Identity(userID))
}

func (s *AuthService) Login(email, password string) (string, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Email: email, Password: password}); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}

	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Do not reveal whether the account exists.
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}
	return s.tokens.Generate(domain.Identity(user.ID))
}
