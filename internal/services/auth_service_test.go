package services

import (
	"agentchat-backend/internal/auth"
	"agentchat-backend/internal/config"
	"agentchat-backend/internal/store/memory"
	"agentchat-backend/pkg/logger"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", TokenExpiration: time.Hour}
	return NewAuthService(memory.New(), cfg, logger.Nop())
}

func TestSignupAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "  Ada@Example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "password123", user.HashedPassword)

	token, loggedIn, err := svc.Login(ctx, "ADA@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := auth.ParseAccessToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	found, err := svc.Authenticate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)
}

func TestSignupValidation(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	for _, tc := range []struct{ email, password string }{
		{"", "password123"},
		{"ada@example.com", ""},
		{"not-an-email", "password123"},
		{"ada@example.com", "short"},
	} {
		_, err := svc.Signup(ctx, tc.email, tc.password)
		assert.ErrorIs(t, err, ErrValidation, "email=%q", tc.email)
	}
}

func TestSignupDuplicate(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "ADA@example.com", "password456")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestLoginFailures(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
