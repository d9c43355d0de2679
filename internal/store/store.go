package store

import (
	"agentchat-backend/internal/models"
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// UserStore covers account records used by the auth service.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ConversationStore is the durable owner of conversations and messages.
// The chat orchestrator depends only on this contract.
type ConversationStore interface {
	// CreateConversation stores a new conversation for (userID, agentID).
	// A nil or empty title is stored as models.DefaultConversationTitle.
	CreateConversation(ctx context.Context, userID uuid.UUID, sessionID, agentID string, title *string) (*models.Conversation, error)

	// GetConversations lists the user's conversations with one agent, newest first.
	GetConversations(ctx context.Context, userID uuid.UUID, agentID string) ([]models.Conversation, error)

	// GetMessages returns a conversation's messages, oldest first.
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	// SaveMessage persists msg under conversationID, keeping msg.ID.
	SaveMessage(ctx context.Context, conversationID uuid.UUID, msg models.Message) error

	// UpdateConversationTitle stores TruncateTitle(title). Returns ErrNotFound
	// when the conversation does not exist.
	UpdateConversationTitle(ctx context.Context, conversationID uuid.UUID, title string) (*models.Conversation, error)
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	UserStore
	ConversationStore
}
