// Package auth issues and validates the identity tokens the transport layer
// uses to hand a previously-established login to a new connection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roomline/roomline-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when login/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownUser is returned when the login was never registered.
	ErrUnknownUser = errors.New("no such user")
	// ErrUserExists is returned when registering a taken login.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidLogin is returned when a login doesn't meet constraints.
	ErrInvalidLogin = errors.New("invalid login")
	// ErrInvalidPassword is returned when a password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service provides out-of-band authentication against the chat store.
type Service struct {
	store store.Store
	jwt   *JWTConfig
}

// NewService creates an authentication service over the given store.
func NewService(st store.Store, jwtConfig *JWTConfig) *Service {
	return &Service{store: st, jwt: jwtConfig}
}

// Login validates credentials and returns a signed identity token.
func (s *Service) Login(ctx context.Context, login, password string) (string, error) {
	res, err := s.store.Authenticate(ctx, login, password)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	switch res {
	case store.AuthUnknown:
		return "", ErrUnknownUser
	case store.AuthInvalid:
		return "", ErrInvalidCredentials
	}
	return GenerateToken(s.jwt, login)
}

// Register creates a new user and returns a signed identity token.
func (s *Service) Register(ctx context.Context, login, password string) (string, error) {
	login = strings.TrimSpace(login)
	if len(login) < 3 || len(login) > 32 {
		return "", ErrInvalidLogin
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}

	if _, err := s.store.Register(ctx, login, password); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("register: %w", err)
	}
	return GenerateToken(s.jwt, login)
}

// ValidateToken validates an identity token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwt, tokenString)
}
