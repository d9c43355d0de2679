package services

import (
	"agentchat-backend/internal/auth"
	"agentchat-backend/internal/config"
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/store"
	"agentchat-backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// Custom errors for auth service
var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrHashingPassword    = errors.New("failed to hash password")
	ErrCreatingToken      = errors.New("failed to create access token")
	ErrCreatingUser       = errors.New("failed to create user")
	ErrValidation         = errors.New("input validation failed")
)

const minPasswordLength = 8

type AuthService struct {
	store store.UserStore
	cfg   *config.Config
	log   logger.Logger
}

func NewAuthService(s store.UserStore, cfg *config.Config, log logger.Logger) *AuthService {
	return &AuthService{
		store: s,
		cfg:   cfg,
		log:   log.WithFields(logger.ComponentField("auth_service")),
	}
}

// Signup creates a new user account.
func (s *AuthService) Signup(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password cannot be empty", ErrValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: %q is not a valid email address", ErrValidation, email)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.log.Error("error checking user existence", logger.StringField("email", email), logger.ErrorField(err))
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		s.log.Error("error hashing password", logger.StringField("email", email), logger.ErrorField(err))
		return nil, ErrHashingPassword
	}

	user := &models.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hashedPassword,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		s.log.Error("error creating user", logger.StringField("email", email), logger.ErrorField(err))
		return nil, fmt.Errorf("%w: %v", ErrCreatingUser, err)
	}

	s.log.Info("signed up user", logger.StringField("user_id", user.ID.String()))
	return user, nil
}

// Login verifies user credentials and returns an access token and user info.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Don't reveal whether the account exists.
			return "", nil, ErrInvalidCredentials
		}
		s.log.Error("error retrieving user during login", logger.StringField("email", email), logger.ErrorField(err))
		return "", nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.HashedPassword) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.NewAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		s.log.Error("error generating token", logger.StringField("user_id", user.ID.String()), logger.ErrorField(err))
		return "", nil, ErrCreatingToken
	}

	s.log.Info("logged in user", logger.StringField("user_id", user.ID.String()))
	return token, user, nil
}

// Authenticate resolves the user behind a bearer token.
func (s *AuthService) Authenticate(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
