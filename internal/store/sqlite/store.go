// Package sqlite implements store.Store on a single SQLite file using
// modernc.org/sqlite. Timestamps are stored as unix nanoseconds.
package sqlite

import (
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/store"
	"agentchat-backend/pkg/logger"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	agent_id   TEXT NOT NULL,
	session_id TEXT NOT NULL,
	title      TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user_agent_created
	ON conversations(user_id, agent_id, created_at);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content         TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
	ON messages(conversation_id, created_at);
`

type Store struct {
	db  *sql.DB
	log logger.Logger
	now func() time.Time
}

// Open creates (or reuses) the database at path and applies the schema.
// Parent directories are created if needed.
func Open(path string, log logger.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps PRAGMA foreign_keys in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &Store{db: db, log: log.WithFields(logger.ComponentField("sqlite_store")), now: time.Now}
	s.log.Info("SQLite store initialized", logger.StringField("path", path))
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, hashed_password, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID.String(), user.Email, user.HashedPassword, now.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("database error creating user: %w", err)
	}
	user.CreatedAt, user.UpdatedAt = now, now
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, created_at, updated_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, created_at, updated_at FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                models.User
		id               string
		created, updated int64
	)
	if err := row.Scan(&id, &u.Email, &u.HashedPassword, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", id, err)
	}
	u.ID = parsed
	u.CreatedAt = time.Unix(0, created).UTC()
	u.UpdatedAt = time.Unix(0, updated).UTC()
	return &u, nil
}

func (s *Store) CreateConversation(ctx context.Context, userID uuid.UUID, sessionID, agentID string, title *string) (*models.Conversation, error) {
	t := store.InitialTitle(title)
	conv := &models.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		AgentID:   agentID,
		SessionID: sessionID,
		Title:     &t,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, agent_id, session_id, title, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID.String(), userID.String(), agentID, sessionID, t, conv.CreatedAt.UnixNano())
	if err != nil {
		s.log.Error("failed to create conversation",
			logger.StringField("user_id", userID.String()),
			logger.StringField("agent_id", agentID),
			logger.ErrorField(err))
		return nil, fmt.Errorf("database error creating conversation: %w", err)
	}
	return conv, nil
}

const conversationColumns = `id, user_id, agent_id, session_id, title, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		c          models.Conversation
		id, userID string
		title      sql.NullString
		created    int64
	)
	if err := row.Scan(&id, &userID, &c.AgentID, &c.SessionID, &title, &created); err != nil {
		return nil, err
	}
	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt conversation id %q: %w", id, err)
	}
	if c.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", userID, err)
	}
	if title.Valid {
		t := title.String
		c.Title = &t
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	return &c, nil
}

func (s *Store) GetConversations(ctx context.Context, userID uuid.UUID, agentID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE user_id = ? AND agent_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID.String(), agentID)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	items := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation row: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	return items, nil
}

func (s *Store) UpdateConversationTitle(ctx context.Context, conversationID uuid.UUID, title string) (*models.Conversation, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE id = ?`, store.TruncateTitle(title), conversationID.String())
	if err != nil {
		return nil, fmt.Errorf("error updating conversation title: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, store.ErrNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, conversationID.String())
	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error reading updated conversation: %w", err)
	}
	return c, nil
}

func (s *Store) SaveMessage(ctx context.Context, conversationID uuid.UUID, msg models.Message) error {
	id := msg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), conversationID.String(), string(msg.Role), msg.Content, created.UnixNano())
	if err != nil {
		s.log.Error("failed to save message",
			logger.StringField("conversation_id", conversationID.String()),
			logger.ErrorField(err))
		return fmt.Errorf("database error saving message: %w", err)
	}
	return nil
}

func (s *Store) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		conversationID.String())
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	items := []models.Message{}
	for rows.Next() {
		var (
			m          models.Message
			id, convID string
			role       string
			created    int64
		)
		if err := rows.Scan(&id, &convID, &role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt message id %q: %w", id, err)
		}
		if m.ConversationID, err = uuid.Parse(convID); err != nil {
			return nil, fmt.Errorf("corrupt conversation id %q: %w", convID, err)
		}
		m.Role = models.Role(strings.TrimSpace(role))
		m.CreatedAt = time.Unix(0, created).UTC()
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return items, nil
}
