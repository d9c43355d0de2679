package postgres

import (
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/store"
	"agentchat-backend/pkg/logger"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Conversation Methods ---

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (
    id, user_id, agent_id, session_id, title
) VALUES (
    $1, $2, $3, $4, $5
)
RETURNING id, user_id, agent_id, session_id, title, created_at;
`

func (s *PostgresStore) CreateConversation(ctx context.Context, userID uuid.UUID, sessionID, agentID string, title *string) (*models.Conversation, error) {
	row := s.db.QueryRow(ctx, createConversation,
		uuid.New(),
		userID,
		agentID,
		sessionID,
		store.InitialTitle(title),
	)
	conv, err := scanConversation(row)
	if err != nil {
		s.log.Error("failed to create conversation",
			logger.StringField("user_id", userID.String()),
			logger.StringField("agent_id", agentID),
			logger.ErrorField(err))
		return nil, fmt.Errorf("database error creating conversation: %w", err)
	}
	return conv, nil
}

const getConversations = `-- name: GetConversations :many
SELECT id, user_id, agent_id, session_id, title, created_at
FROM conversations
WHERE user_id = $1 AND agent_id = $2
ORDER BY created_at DESC;
`

func (s *PostgresStore) GetConversations(ctx context.Context, userID uuid.UUID, agentID string) ([]models.Conversation, error) {
	rows, err := s.db.Query(ctx, getConversations, userID, agentID)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	items := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation row: %w", err)
		}
		items = append(items, *conv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	return items, nil
}

const updateConversationTitle = `-- name: UpdateConversationTitle :one
UPDATE conversations
SET title = $1
WHERE id = $2
RETURNING id, user_id, agent_id, session_id, title, created_at;
`

func (s *PostgresStore) UpdateConversationTitle(ctx context.Context, conversationID uuid.UUID, title string) (*models.Conversation, error) {
	conv, err := scanConversation(s.db.QueryRow(ctx, updateConversationTitle, store.TruncateTitle(title), conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error updating conversation title: %w", err)
	}
	return conv, nil
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.AgentID, &c.SessionID, &c.Title, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Message Methods ---

const saveMessage = `-- name: SaveMessage :exec
INSERT INTO messages (
    id, conversation_id, role, content
) VALUES (
    $1, $2, $3, $4
);
`

func (s *PostgresStore) SaveMessage(ctx context.Context, conversationID uuid.UUID, msg models.Message) error {
	id := msg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	if _, err := s.db.Exec(ctx, saveMessage, id, conversationID, string(msg.Role), msg.Content); err != nil {
		s.log.Error("failed to save message",
			logger.StringField("conversation_id", conversationID.String()),
			logger.StringField("message_id", id.String()),
			logger.ErrorField(err))
		return fmt.Errorf("database error saving message: %w", err)
	}
	return nil
}

const getMessages = `-- name: GetMessages :many
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC;
`

func (s *PostgresStore) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, getMessages, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	items := []models.Message{}
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}
		m.Role = models.Role(role)
		items = append(items, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return items, nil
}
