package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomline/roomline-server/internal/store/memory"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret: []byte("test-secret"),
		Issuer: "roomline-test",
		TTL:    time.Hour,
	}
}

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(memory.New("Free Chat"), testJWTConfig())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Login)

	token, err = svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	claims, err = svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Login)
}

func TestLoginFailures(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "ghost", "secret123")
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ab", "secret123")
	require.ErrorIs(t, err, ErrInvalidLogin)

	_, err = svc.Register(ctx, "alice", "short")
	require.ErrorIs(t, err, ErrInvalidPassword)

	_, err = svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice", "secret123")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateToken(cfg, "alice")
	require.NoError(t, err)

	_, err = ValidateToken(cfg, token+"x")
	require.Error(t, err)

	other := testJWTConfig()
	other.Secret = []byte("other-secret")
	_, err = ValidateToken(other, token)
	require.Error(t, err)
}

func TestValidateTokenChecksIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateToken(cfg, "alice")
	require.NoError(t, err)

	strict := testJWTConfig()
	strict.Issuer = "someone-else"
	_, err = ValidateToken(strict, token)
	require.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testJWTConfig()
	cfg.TTL = -time.Minute
	token, err := GenerateToken(cfg, "alice")
	require.NoError(t, err)

	_, err = ValidateToken(cfg, token)
	require.Error(t, err)
}
