package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"video2tool/domain"
	"video2tool/errors"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "CollabOrDie2026!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!", hash)
	req.NoError(err)
	req.False(match)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "NoDigitPass!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "nouppercase123!"}, true},
		{"Password too long", RegisterRequest{"test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenService_GenerateAndVerify(t *testing.T) {
	req := require.New(t)
	service := NewTokenService("test_secret_long_enough_for_hs256", time.Hour)
	identity := domain.Identity("u1")

	// When a token is issued and verified
	token, err := service.Generate(identity)
	req.NoError(err)

	got, err := service.Verify(token)

	// Then the original identity is resolved
	req.NoError(err)
	req.Equal(identity, got)
}

func TestTokenService_Verify_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	service := NewTokenService("test_secret_long_enough_for_hs256", -time.Minute)

	token, err := service.Generate("u1")
	req.NoError(err)

	_, err = service.Verify(token)

	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestTokenService_Verify_RejectsForeignSignature(t *testing.T) {
	req := require.New(t)
	issuerService := NewTokenService("secret_of_some_other_deployment00", time.Hour)
	verifier := NewTokenService("test_secret_long_enough_for_hs256", time.Hour)

	token, err := issuerService.Generate("u1")
	req.NoError(err)

	_, err = verifier.Verify(token)

	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestTokenService_Verify_RejectsGarbage(t *testing.T) {
	req := require.New(t)
	service := NewTokenService("test_secret_long_enough_for_hs256", time.Hour)

	_, err := service.Verify("not-a-jwt")

	req.ErrorIs(err, errors.ErrInvalidToken)
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
