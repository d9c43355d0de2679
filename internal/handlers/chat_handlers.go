package handlers

import (
	"agentchat-backend/internal/auth"
	"agentchat-backend/internal/chat"
	api_models "agentchat-backend/internal/models"
	db_models "agentchat-backend/internal/models"
	"agentchat-backend/pkg/httputil"
	"agentchat-backend/pkg/logger"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// UserResolver loads the account behind an authenticated request.
type UserResolver interface {
	Authenticate(ctx context.Context, userID uuid.UUID) (*db_models.User, error)
}

// ChatSessions hands out the orchestrator of a (user, session) pair.
type ChatSessions interface {
	Get(ctx context.Context, user *db_models.User, sessionID string) *chat.Orchestrator
}

// ChatHandlers handles HTTP requests against a client's chat session.
type ChatHandlers struct {
	users    UserResolver
	sessions ChatSessions
	catalog  chat.Catalog
	log      logger.Logger
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(users UserResolver, sessions ChatSessions, catalog chat.Catalog, log logger.Logger) *ChatHandlers {
	return &ChatHandlers{
		users:    users,
		sessions: sessions,
		catalog:  catalog,
		log:      log.WithFields(logger.ComponentField("chat_handler")),
	}
}

// orchestrator resolves the caller's session or writes an error response.
func (h *ChatHandlers) orchestrator(w http.ResponseWriter, r *http.Request) (*chat.Orchestrator, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	sessionID, ok := auth.GetSessionIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusBadRequest, "Missing session")
		return nil, false
	}
	user, err := h.users.Authenticate(r.Context(), userID)
	if err != nil {
		h.log.Warn("unknown user behind valid token", logger.StringField("user_id", userID.String()), logger.ErrorField(err))
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return h.sessions.Get(r.Context(), user, sessionID), true
}

// HandleGetChat handles GET /v1/chat. The conversation list is refetched
// so conversations started in other sessions show up.
func (h *ChatHandlers) HandleGetChat(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	if err := o.Reload(r.Context()); err != nil {
		h.log.Error("failed to reload conversations", logger.ErrorField(err))
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to load conversations")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, toChatState(o.Snapshot()))
}

// HandleSelectAgent handles PUT /v1/chat/agent.
func (h *ChatHandlers) HandleSelectAgent(w http.ResponseWriter, r *http.Request) {
	var req api_models.SelectAgentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if _, found := h.catalog.Resolve(req.AgentID); !found {
		httputil.RespondError(w, http.StatusNotFound, "Agent not found")
		return
	}
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}

	if err := o.SelectAgent(r.Context(), req.AgentID); err != nil {
		h.log.Error("failed to load conversations for agent", logger.StringField("agent_id", req.AgentID), logger.ErrorField(err))
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to load conversations")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, toChatState(o.Snapshot()))
}

// HandleNewConversation handles POST /v1/chat/conversations.
func (h *ChatHandlers) HandleNewConversation(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	if _, err := o.NewConversation(r.Context()); err != nil {
		h.log.Error("failed to create conversation", logger.ErrorField(err))
		httputil.RespondError(w, http.StatusInternalServerError, chat.MsgConversationStart)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, toChatState(o.Snapshot()))
}

// HandleSelectConversation handles POST /v1/chat/conversations/{conversationID}/select.
func (h *ChatHandlers) HandleSelectConversation(w http.ResponseWriter, r *http.Request) {
	id, valid := conversationIDParam(r)
	if !valid {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}

	if err := o.SelectConversation(r.Context(), id); err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to select conversation")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, toChatState(o.Snapshot()))
}

// HandleRenameConversation handles PATCH /v1/chat/conversations/{conversationID}.
func (h *ChatHandlers) HandleRenameConversation(w http.ResponseWriter, r *http.Request) {
	id, valid := conversationIDParam(r)
	if !valid {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}
	var req api_models.UpdateConversationTitleRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Title is required")
		return
	}
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}

	conv, err := o.RenameConversation(r.Context(), id, req.Title)
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		h.log.Error("failed to rename conversation", logger.StringField("conversation_id", id.String()), logger.ErrorField(err))
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to rename conversation")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, toConversationResponse(*conv))
}

// HandleSendMessage handles POST /v1/chat/messages. The send is detached
// from the request context so a client disconnect cannot abort it midway.
func (h *ChatHandlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req api_models.SendMessageRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Message content is required")
		return
	}
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}

	accepted := o.SendMessage(context.WithoutCancel(r.Context()), req.Content)
	status := http.StatusOK
	if !accepted {
		status = http.StatusConflict
	}
	httputil.RespondJSON(w, status, api_models.SendMessageResponse{
		Accepted: accepted,
		Chat:     toChatState(o.Snapshot()),
	})
}
