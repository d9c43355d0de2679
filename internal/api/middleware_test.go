package api

import (
	"agentchat-backend/internal/auth"
	"agentchat-backend/pkg/logger"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtAuthMiddleware(t *testing.T) {
	const secret = "mw-secret"
	userID := uuid.New()

	var seen uuid.UUID
	h := JwtAuthMiddleware(secret, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	valid, err := auth.NewAccessToken(userID, secret, time.Hour)
	require.NoError(t, err)
	expired, err := auth.NewAccessToken(userID, secret, -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.NewAccessToken(userID, "other-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantCode int
		wantBody string
	}{
		{"valid", valid, http.StatusTeapot, ""},
		{"expired", expired, http.StatusUnauthorized, "Token has expired"},
		{"wrong secret", foreign, http.StatusUnauthorized, "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = uuid.Nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
				assert.Equal(t, uuid.Nil, seen)
			} else {
				assert.Equal(t, userID, seen)
			}
		})
	}
}

func TestSessionMiddlewareIssuesAndReusesCookie(t *testing.T) {
	var seen string
	h := SessionMiddleware("sid", true, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.GetSessionIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, cookies[0].Value, seen)
	_, err := uuid.Parse(seen)
	require.NoError(t, err)

	first := seen
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: first})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, first, seen)
	assert.Empty(t, rec.Result().Cookies(), "an existing cookie is not rewritten")
}

func TestSessionMiddlewareReplacesNonUUIDCookie(t *testing.T) {
	var seen string
	h := SessionMiddleware("sid", false, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.GetSessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "attacker-42"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEqual(t, "attacker-42", seen)
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, seen, cookies[0].Value)
}
