package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := NewAccessToken(userID, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestParseAccessTokenRejects(t *testing.T) {
	userID := uuid.New()

	good, err := NewAccessToken(userID, "secret", time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken(good, "other-secret")
	assert.Error(t, err)

	expired, err := NewAccessToken(userID, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseAccessToken(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})
	signed, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseAccessToken(signed, "secret")
	assert.Error(t, err)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	})
	signed, err = noUser.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseAccessToken(signed, "secret")
	assert.Error(t, err)

	_, err = ParseAccessToken("not-a-token", "secret")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("correct horse", "not-a-bcrypt-hash"))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := GetUserIDFromContext(ctx)
	assert.False(t, ok)
	_, ok = GetSessionIDFromContext(ctx)
	assert.False(t, ok)

	id := uuid.New()
	ctx = WithSessionID(WithUserID(ctx, id), "sess")
	got, ok := GetUserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)
	sid, ok := GetSessionIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "sess", sid)

	_, ok = GetSessionIDFromContext(WithSessionID(context.Background(), ""))
	assert.False(t, ok)
}
