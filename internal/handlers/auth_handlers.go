package handlers

import (
	"agentchat-backend/internal/auth"
	api_models "agentchat-backend/internal/models"
	db_models "agentchat-backend/internal/models"
	"agentchat-backend/internal/services"
	"agentchat-backend/pkg/httputil"
	"agentchat-backend/pkg/logger"
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// AuthService defines the interface expected from the auth service.
type AuthService interface {
	Signup(ctx context.Context, email, password string) (*db_models.User, error)
	Login(ctx context.Context, email, password string) (string, *db_models.User, error)
}

// SessionForgetter drops a client session on sign-out.
type SessionForgetter interface {
	Forget(ctx context.Context, userID uuid.UUID, sessionID string)
}

type AuthHandler struct {
	authService AuthService
	sessions    SessionForgetter
	log         logger.Logger
}

func NewAuthHandler(authSvc AuthService, sessions SessionForgetter, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authSvc,
		sessions:    sessions,
		log:         log.WithFields(logger.ComponentField("auth_handler")),
	}
}

// HandleSignup handles the POST /v1/auth/signup request.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req api_models.SignupRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.authService.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Warn("signup failed", logger.StringField("email", req.Email), logger.ErrorField(err))
		switch {
		case errors.Is(err, services.ErrUserAlreadyExists):
			httputil.RespondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrValidation):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "Signup failed due to an internal error")
		}
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, api_models.UserResponse{ID: user.ID, Email: user.Email})
}

// HandleLogin handles the POST /v1/auth/login request.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req api_models.LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Warn("login failed", logger.StringField("email", req.Email), logger.ErrorField(err))
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "Login failed due to an internal error")
		}
		return
	}

	httputil.RespondJSON(w, http.StatusOK, api_models.AuthResponse{
		AccessToken: token,
		User:        api_models.UserResponse{ID: user.ID, Email: user.Email},
	})
}

// HandleLogout handles POST /v1/auth/logout. It signs the current session
// out of its chat state; the token itself stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if sessionID, ok := auth.GetSessionIDFromContext(r.Context()); ok && h.sessions != nil {
		h.sessions.Forget(r.Context(), userID, sessionID)
	}
	w.WriteHeader(http.StatusNoContent)
}
