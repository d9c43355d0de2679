package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SelectAgentRequest switches the active agent.
type SelectAgentRequest struct {
	AgentID string `json:"agent_id"`
}

// SendMessageRequest carries the text typed by the user.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// UpdateConversationTitleRequest renames a conversation.
type UpdateConversationTitleRequest struct {
	Title string `json:"title"`
}

// --- Response Structs ---

// UserResponse defines the user information returned by the API.
// Avoid returning sensitive info like HashedPassword.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --- Agent DTOs ---

// AgentResponse is the public view of a catalog agent; it omits the webhook URL.
type AgentResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	IconKey  *string `json:"icon_key,omitempty"`
	ImageRef *string `json:"image_ref,omitempty"`
	Tagline  *string `json:"tagline,omitempty"`
}

// AgentCategoryResponse groups agents for display.
type AgentCategoryResponse struct {
	Name   string          `json:"name"`
	Agents []AgentResponse `json:"agents"`
}

// ListAgentsResponse is returned by GET /v1/agents.
type ListAgentsResponse struct {
	DefaultAgentID string                  `json:"default_agent_id"`
	Categories     []AgentCategoryResponse `json:"categories"`
}

// --- Chat DTOs ---

// ConversationResponse defines the representation of a conversation.
type ConversationResponse struct {
	ID        uuid.UUID `json:"id"`
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessageResponse is one entry of the in-memory message list.
type ChatMessageResponse struct {
	ID             uuid.UUID  `json:"id"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	CreatedAt      *time.Time `json:"created_at"`
	Pending        bool       `json:"pending,omitempty"`
	Error          bool       `json:"error,omitempty"`
	Persistence    string     `json:"persistence"`
}

// ChatStateResponse is the full view of a chat session.
type ChatStateResponse struct {
	State                 string                 `json:"state"`
	AgentID               string                 `json:"agent_id"`
	CurrentConversationID *uuid.UUID             `json:"current_conversation_id"`
	Conversations         []ConversationResponse `json:"conversations"`
	Messages              []ChatMessageResponse  `json:"messages"`
}

// SendMessageResponse reports whether a send was accepted plus the resulting state.
type SendMessageResponse struct {
	Accepted bool              `json:"accepted"`
	Chat     ChatStateResponse `json:"chat"`
}
