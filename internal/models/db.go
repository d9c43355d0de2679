package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultConversationTitle is stored when a conversation is created without a title.
const DefaultConversationTitle = "New Conversation"

// Role identifies who authored a message. Only two roles exist.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// User represents a user in the database.
type User struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Conversation is one chat thread scoped to exactly one (user, agent) pair.
type Conversation struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	AgentID   string    `db:"agent_id"`
	SessionID string    `db:"session_id"` // correlation token sent to the webhook
	Title     *string   `db:"title"`      // nullable
	CreatedAt time.Time `db:"created_at"`
}

// Message is a persisted chat message. The ID is generated by the client
// and kept as-is by the store.
type Message struct {
	ID             uuid.UUID `db:"id"`
	ConversationID uuid.UUID `db:"conversation_id"`
	Role           Role      `db:"role"`
	Content        string    `db:"content"`
	CreatedAt      time.Time `db:"created_at"`
}
