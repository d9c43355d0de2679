package postgres

import (
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/store"
	"agentchat-backend/pkg/logger"
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

type PostgresStore struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewPostgresStore(db *pgxpool.Pool, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log.WithFields(logger.ComponentField("postgres_store"))}
}

// EnsureSchema creates the tables and indexes if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("database error applying schema: %w", err)
	}
	return nil
}

// --- User Methods ---

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, email, hashed_password, created_at, updated_at
FROM users
WHERE email = $1;
`

// GetUserByEmail retrieves a user by their email address.
// Returns store.ErrNotFound if the user does not exist.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, getUserByEmail, email), "email", email)
}

const getUserByID = `-- name: GetUserByID :one
SELECT id, email, hashed_password, created_at, updated_at
FROM users
WHERE id = $1;
`

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, getUserByID, id), "id", id.String())
}

func (s *PostgresStore) scanUser(row pgx.Row, key, value string) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.HashedPassword, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.log.Error("failed to scan user", logger.StringField(key, value), logger.ErrorField(err))
		return nil, fmt.Errorf("database error fetching user by %s: %w", key, err)
	}
	return user, nil
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (id, email, hashed_password)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at;
`

// CreateUser inserts a new user record into the database.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db.QueryRow(ctx, createUser, user.ID, user.Email, user.HashedPassword).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			s.log.Error("postgres error inserting user",
				logger.StringField("email", user.Email),
				logger.StringField("code", pgErr.Code),
				logger.StringField("detail", pgErr.Detail))
			if pgErr.Code == uniqueViolation {
				return fmt.Errorf("user with email %s already exists: %w", user.Email, err)
			}
		}
		return fmt.Errorf("database error creating user: %w", err)
	}

	s.log.Info("inserted user", logger.StringField("user_id", user.ID.String()))
	return nil
}
