package api

import (
	"agentchat-backend/internal/auth"
	"agentchat-backend/internal/sessionid"
	"agentchat-backend/pkg/httputil"
	"agentchat-backend/pkg/logger"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JwtAuthMiddleware verifies the JWT token from the Authorization header.
// If valid, it injects the UserID into the request context.
func JwtAuthMiddleware(jwtSecret string, log logger.Logger) func(http.Handler) http.Handler {
	log = log.WithFields(logger.ComponentField("auth_middleware"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				httputil.RespondError(w, http.StatusUnauthorized, "Malformed Authorization header (Expected: Bearer <token>)")
				return
			}

			claims, err := auth.ParseAccessToken(parts[1], jwtSecret)
			if err != nil {
				log.Debug("rejected token", logger.ErrorField(err))
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					httputil.RespondError(w, http.StatusUnauthorized, "Token has expired")
				case errors.Is(err, jwt.ErrTokenMalformed):
					httputil.RespondError(w, http.StatusUnauthorized, "Malformed token")
				default:
					httputil.RespondError(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), claims.UserID)))
		})
	}
}

// SessionMiddleware resolves the client's session token from its cookie,
// issuing a new long-lived cookie on first contact.
func SessionMiddleware(cookieName string, secure bool, log logger.Logger) func(http.Handler) http.Handler {
	log = log.WithFields(logger.ComponentField("session_middleware"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provider := sessionid.NewProvider(sessionid.NewCookieStorage(w, r, cookieName, secure), sessionid.RequireUUID())
			id, err := provider.GetOrCreate()
			if err != nil {
				log.Error("failed to resolve session id", logger.ErrorField(err))
				httputil.RespondError(w, http.StatusInternalServerError, "Failed to resolve session")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSessionID(r.Context(), id)))
		})
	}
}
