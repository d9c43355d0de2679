package handlers

import (
	"agentchat-backend/internal/chat"
	api_models "agentchat-backend/internal/models"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// conversationIDParam parses the {conversationID} URL parameter.
func conversationIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	return id, err == nil
}

func toConversationResponse(c api_models.Conversation) api_models.ConversationResponse {
	return api_models.ConversationResponse{
		ID:        c.ID,
		AgentID:   c.AgentID,
		SessionID: c.SessionID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
	}
}

func toChatState(s chat.Snapshot) api_models.ChatStateResponse {
	resp := api_models.ChatStateResponse{
		State:                 string(s.State),
		AgentID:               s.AgentID,
		CurrentConversationID: s.CurrentConversationID,
		Conversations:         make([]api_models.ConversationResponse, 0, len(s.Conversations)),
		Messages:              make([]api_models.ChatMessageResponse, 0, len(s.Messages)),
	}
	for _, c := range s.Conversations {
		resp.Conversations = append(resp.Conversations, toConversationResponse(c))
	}
	for _, m := range s.Messages {
		resp.Messages = append(resp.Messages, api_models.ChatMessageResponse{
			ID:             m.ID,
			Role:           m.Role,
			Content:        m.Content,
			ConversationID: m.ConversationID,
			CreatedAt:      m.CreatedAt,
			Pending:        m.Pending,
			Error:          m.Error,
			Persistence:    string(m.Persistence),
		})
	}
	return resp
}
