package chat

import (
	"agentchat-backend/internal/metrics"
	"agentchat-backend/internal/models"
	"agentchat-backend/pkg/logger"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SendMessage runs one send. It returns false without touching state when
// there is no user, no current agent, text is blank or a send is already in
// flight. Otherwise it always ends Idle with either the assistant reply or
// one error-flagged assistant message appended.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (accepted bool) {
	o.mu.Lock()
	if o.user == nil || o.agentID == "" || o.state == StateSending || strings.TrimSpace(text) == "" {
		o.mu.Unlock()
		return false
	}

	agent, ok := o.catalog.Resolve(o.agentID)
	if !ok {
		o.messages = append(o.messages, o.noticeLocked(MsgAgentNotFound))
		agentID := o.agentID
		o.mu.Unlock()
		o.log.Error("selected agent not found", logger.StringField("agent_id", agentID))
		o.metrics.Send(metrics.SendConfigError)
		return true
	}

	o.state = StateSending
	accepted = true
	userID := o.user.ID
	target := &sendTarget{}
	if o.currentID != nil {
		target.id, target.ok = *o.currentID, true
	}
	o.mu.Unlock()

	outcome := metrics.SendFailure
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("panic during send", logger.StringField("panic", fmt.Sprint(r)))
			o.fail(target)
			outcome = metrics.SendFailure
		}
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
		o.metrics.Send(outcome)
	}()

	outcome, err := o.send(ctx, userID, agent.ID, agent.WebhookURL, target, text)
	if err != nil {
		o.log.Error("error sending message",
			logger.StringField("agent_id", agent.ID),
			logger.ErrorField(err))
		o.fail(target)
		outcome = metrics.SendFailure
	}
	return accepted
}

// sendTarget is the conversation a send writes into, once known.
type sendTarget struct {
	id uuid.UUID
	ok bool
}

func (o *Orchestrator) send(ctx context.Context, userID uuid.UUID, agentID, endpoint string, target *sendTarget, text string) (string, error) {
	// Step 1: make sure there is a conversation to write into.
	if !target.ok {
		conv, err := o.createConversation(ctx, userID, agentID)
		if err != nil {
			o.mu.Lock()
			o.messages = append(o.messages, o.noticeLocked(MsgConversationStart))
			o.mu.Unlock()
			return metrics.SendConversationError, nil
		}
		target.id, target.ok = conv.ID, true
	}
	convID := target.id

	// Step 2: optimistic user message.
	userMsg := Message{
		ID:             o.newID(),
		Role:           models.RoleUser,
		Content:        text,
		ConversationID: &convID,
		Persistence:    PersistenceOptimistic,
	}
	o.appendIfCurrent(convID, userMsg)

	if err := o.store.SaveMessage(ctx, convID, toStored(userMsg)); err != nil {
		o.setPersistence(userMsg.ID, PersistenceFailed)
		return metrics.SendFailure, fmt.Errorf("saving user message: %w", err)
	}
	o.setPersistence(userMsg.ID, PersistencePersisted)

	// Step 3: the single pending placeholder.
	o.mu.Lock()
	if o.isCurrentLocked(convID) {
		o.messages = append(o.messages, Message{
			ID:          o.newID(),
			Role:        models.RoleAssistant,
			Pending:     true,
			Persistence: PersistenceTransient,
		})
	}
	o.mu.Unlock()

	// Step 4: relay.
	sessionID, err := o.session.GetOrCreate()
	if err != nil {
		return metrics.SendFailure, fmt.Errorf("resolving session id: %w", err)
	}
	res := o.relay.Send(ctx, text, sessionID, endpoint)

	// Step 5: reconcile.
	content := res.ErrorText()
	if content == "" {
		content = res.Text
	}
	reply := Message{
		ID:             o.newID(),
		Role:           models.RoleAssistant,
		Content:        content,
		ConversationID: &convID,
		Error:          res.ErrorText() != "" || !res.OK(),
		Persistence:    PersistenceOptimistic,
	}

	o.mu.Lock()
	o.removePendingLocked()
	if o.isCurrentLocked(convID) {
		o.messages = append(o.messages, reply)
	}
	o.mu.Unlock()

	if err := o.store.SaveMessage(ctx, convID, toStored(reply)); err != nil {
		o.log.Error("error saving assistant message",
			logger.StringField("conversation_id", convID.String()),
			logger.ErrorField(err))
		o.setPersistence(reply.ID, PersistenceFailed)
	} else {
		o.setPersistence(reply.ID, PersistencePersisted)
	}

	if reply.Error {
		return metrics.SendRelayError, nil
	}
	return metrics.SendOK, nil
}

// fail is the catch-all path: drop any placeholder and append the generic
// error notice, unless the user has since moved to another conversation.
func (o *Orchestrator) fail(target *sendTarget) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removePendingLocked()
	if target.ok && !o.isCurrentLocked(target.id) {
		return
	}
	o.messages = append(o.messages, o.noticeLocked(MsgGenericFailure))
}

func (o *Orchestrator) noticeLocked(content string) Message {
	return Message{
		ID:          o.newID(),
		Role:        models.RoleAssistant,
		Content:     content,
		Error:       true,
		Persistence: PersistenceTransient,
	}
}

func (o *Orchestrator) removePendingLocked() {
	kept := o.messages[:0]
	for _, m := range o.messages {
		if !m.Pending {
			kept = append(kept, m)
		}
	}
	o.messages = kept
}

func (o *Orchestrator) isCurrentLocked(convID uuid.UUID) bool {
	return o.currentID != nil && *o.currentID == convID
}

func (o *Orchestrator) appendIfCurrent(convID uuid.UUID, m Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isCurrentLocked(convID) {
		o.messages = append(o.messages, m)
	}
}

func (o *Orchestrator) setPersistence(id uuid.UUID, p Persistence) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.messages {
		if o.messages[i].ID == id {
			o.messages[i].Persistence = p
			return
		}
	}
}

func toStored(m Message) models.Message {
	out := models.Message{ID: m.ID, Role: m.Role, Content: m.Content}
	if m.ConversationID != nil {
		out.ConversationID = *m.ConversationID
	}
	return out
}
