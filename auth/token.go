package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"video2tool/domain"
	"video2tool/errors"
)

const issuer = "video2tool"

// Claims is the data stored inside a collaboration JWT.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies the credentials that attach an
// identity to a connection. The signing secret comes from configuration;
// in production it should be provided by a secret manager.
type TokenService struct {
	secret   []byte
	duration time.Duration
}

func NewTokenService(secret string, duration time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), duration: duration}
}

// Generate creates a signed HS256 JWT for the given identity.
func (s *TokenService) Generate(id domain.Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: string(id),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses the token, validates signature and expiration, and
// resolves the identity behind it. Implements contract.IVerifier.
func (s *TokenService) Verify(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", errors.ErrInvalidToken
	}
	return domain.Identity(claims.UserID), nil
}
