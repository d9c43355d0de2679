// Package chat holds the per-session message orchestrator: the state
// machine that turns a typed message into an optimistic update, a relay
// call and a reconciled, persisted history.
package chat

import (
	"agentchat-backend/internal/agents"
	"agentchat-backend/internal/metrics"
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/relay"
	"agentchat-backend/internal/sessionid"
	"agentchat-backend/internal/store"
	"agentchat-backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrConversationNotFound is returned when selecting or renaming a
	// conversation that is not in the loaded list.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrNoUser is returned by operations that need a signed-in user.
	ErrNoUser = errors.New("no signed-in user")
)

// User-visible failure texts.
const (
	MsgAgentNotFound     = "Error: Agent configuration not found."
	MsgConversationStart = "Error starting a new conversation. Please try again."
	MsgGenericFailure    = "An error occurred. Please try again."
)

type State string

const (
	StateIdle    State = "idle"
	StateSending State = "sending"
)

// Persistence tracks how an in-memory message relates to the store.
type Persistence string

const (
	// Transient messages are never written (placeholders, error notices).
	PersistenceTransient Persistence = "transient"
	// Optimistic messages are shown and their write is in flight.
	PersistenceOptimistic Persistence = "optimistic"
	PersistencePersisted  Persistence = "persisted"
	// Failed messages stay visible although the store rejected them.
	PersistenceFailed Persistence = "failed"
)

// Message is an entry of the in-memory list. Pending and Error are never
// stored.
type Message struct {
	ID             uuid.UUID
	Role           models.Role
	Content        string
	ConversationID *uuid.UUID
	CreatedAt      *time.Time
	Pending        bool
	Error          bool
	Persistence    Persistence
}

// Snapshot is a deep copy of an orchestrator's state.
type Snapshot struct {
	State                 State
	UserID                *uuid.UUID
	AgentID               string
	CurrentConversationID *uuid.UUID
	Conversations         []models.Conversation
	Messages              []Message
}

// Catalog is the subset of the agent catalog the orchestrator needs.
type Catalog interface {
	Resolve(id string) (agents.Agent, bool)
	DefaultAgentID() string
}

// Config wires an Orchestrator's collaborators. Metrics and Logger are
// optional.
type Config struct {
	Catalog Catalog
	Store   store.ConversationStore
	Relay   relay.Sender
	Session sessionid.Source
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// Orchestrator owns the chat state of one client session. The mutex guards
// state only and is never held across store or relay calls.
type Orchestrator struct {
	catalog Catalog
	store   store.ConversationStore
	relay   relay.Sender
	session sessionid.Source
	metrics *metrics.Metrics
	log     logger.Logger
	newID   func() uuid.UUID

	mu            sync.Mutex
	state         State
	user          *models.User
	agentID       string
	currentID     *uuid.UUID
	conversations []models.Conversation
	messages      []Message
}

func New(cfg Config) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		catalog: cfg.Catalog,
		store:   cfg.Store,
		relay:   cfg.Relay,
		session: cfg.Session,
		metrics: cfg.Metrics,
		log:     log.WithFields(logger.ComponentField("chat")),
		newID:   uuid.New,
		state:   StateIdle,
		agentID: cfg.Catalog.DefaultAgentID(),
	}
}

// SetUser applies an auth transition. A nil user fully resets the
// conversation state; a user triggers a load for the current agent and
// the load error, if any, is returned.
func (o *Orchestrator) SetUser(ctx context.Context, user *models.User) error {
	o.mu.Lock()
	if user == nil {
		o.user = nil
		o.resetLocked()
		o.mu.Unlock()
		return nil
	}
	u := *user
	o.user = &u
	agentID := o.agentID
	o.mu.Unlock()

	if err := o.LoadConversationsForAgent(ctx, u.ID, agentID); err != nil {
		o.log.Warn("initial conversation load failed",
			logger.StringField("user_id", u.ID.String()),
			logger.ErrorField(err))
		return err
	}
	return nil
}

// Reload refetches the conversation list for the current user and agent,
// picking up conversations created elsewhere. It does nothing while a send
// is in flight or when nobody is signed in.
func (o *Orchestrator) Reload(ctx context.Context) error {
	o.mu.Lock()
	if o.user == nil || o.state == StateSending {
		o.mu.Unlock()
		return nil
	}
	userID, agentID := o.user.ID, o.agentID
	o.mu.Unlock()

	return o.LoadConversationsForAgent(ctx, userID, agentID)
}

func (o *Orchestrator) resetLocked() {
	o.conversations = nil
	o.currentID = nil
	o.messages = nil
}

// SelectAgent switches agent, clearing the current conversation and
// messages, and reloads the list for the new agent. Selecting the current
// agent is a no-op.
func (o *Orchestrator) SelectAgent(ctx context.Context, agentID string) error {
	o.mu.Lock()
	if agentID == o.agentID {
		o.mu.Unlock()
		return nil
	}
	o.agentID = agentID
	o.currentID = nil
	o.messages = nil
	user := o.user
	o.mu.Unlock()

	if user == nil {
		return nil
	}
	return o.LoadConversationsForAgent(ctx, user.ID, agentID)
}

// LoadConversationsForAgent replaces the conversation list with the
// store's, newest first. The current conversation is kept if still listed,
// otherwise the newest is selected. A fetch failure clears the list, the
// selection and the messages.
func (o *Orchestrator) LoadConversationsForAgent(ctx context.Context, userID uuid.UUID, agentID string) error {
	convs, err := o.store.GetConversations(ctx, userID, agentID)

	o.mu.Lock()
	if !o.isActiveLocked(userID, agentID) {
		o.mu.Unlock()
		return nil
	}
	if err != nil {
		o.resetLocked()
		o.mu.Unlock()
		o.log.Error("error fetching conversations",
			logger.StringField("user_id", userID.String()),
			logger.StringField("agent_id", agentID),
			logger.ErrorField(err))
		return fmt.Errorf("fetching conversations: %w", err)
	}

	o.conversations = convs
	if len(convs) == 0 {
		o.currentID = nil
		o.messages = nil
		o.mu.Unlock()
		return nil
	}
	if o.currentID != nil && containsConversation(convs, *o.currentID) {
		o.mu.Unlock()
		return nil
	}
	newest := convs[0].ID
	o.mu.Unlock()

	return o.SelectConversation(ctx, newest)
}

// isActiveLocked guards against applying results after the user or agent
// changed underneath an in-flight fetch.
func (o *Orchestrator) isActiveLocked(userID uuid.UUID, agentID string) bool {
	return o.user != nil && o.user.ID == userID && o.agentID == agentID
}

func containsConversation(convs []models.Conversation, id uuid.UUID) bool {
	for _, c := range convs {
		if c.ID == id {
			return true
		}
	}
	return false
}

// SelectConversation makes id current and replaces the messages with the
// stored history. Only conversations in the loaded list can be selected. If
// the fetch fails the previous messages stay in place.
func (o *Orchestrator) SelectConversation(ctx context.Context, id uuid.UUID) error {
	o.mu.Lock()
	if !containsConversation(o.conversations, id) {
		o.mu.Unlock()
		return ErrConversationNotFound
	}
	current := id
	o.currentID = &current
	o.mu.Unlock()

	stored, err := o.store.GetMessages(ctx, id)
	if err != nil {
		o.log.Error("error fetching messages",
			logger.StringField("conversation_id", id.String()),
			logger.ErrorField(err))
		return nil
	}

	msgs := make([]Message, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, fromStored(m))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.currentID == nil || *o.currentID != id {
		return nil
	}
	o.messages = msgs
	return nil
}

func fromStored(m models.Message) Message {
	id := m.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	convID := m.ConversationID
	created := m.CreatedAt
	return Message{
		ID:             id,
		Role:           m.Role,
		Content:        m.Content,
		ConversationID: &convID,
		CreatedAt:      &created,
		Persistence:    PersistencePersisted,
	}
}

// NewConversation creates a conversation for the current user and agent,
// adds it to the list, selects it and clears the messages.
func (o *Orchestrator) NewConversation(ctx context.Context) (*models.Conversation, error) {
	o.mu.Lock()
	user := o.user
	agentID := o.agentID
	o.mu.Unlock()

	if user == nil {
		return nil, ErrNoUser
	}
	if agentID == "" {
		return nil, agents.ErrAgentNotFound
	}
	return o.createConversation(ctx, user.ID, agentID)
}

func (o *Orchestrator) createConversation(ctx context.Context, userID uuid.UUID, agentID string) (*models.Conversation, error) {
	sessionID, err := o.session.GetOrCreate()
	if err != nil {
		return nil, fmt.Errorf("resolving session id: %w", err)
	}
	conv, err := o.store.CreateConversation(ctx, userID, sessionID, agentID, nil)
	if err != nil {
		o.log.Error("error creating new conversation",
			logger.StringField("user_id", userID.String()),
			logger.StringField("agent_id", agentID),
			logger.ErrorField(err))
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isActiveLocked(userID, agentID) {
		list := append([]models.Conversation{*conv}, o.conversations...)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		})
		o.conversations = list
		id := conv.ID
		o.currentID = &id
		o.messages = nil
	}
	return conv, nil
}

// RenameConversation stores a new title and refreshes the listed copy.
func (o *Orchestrator) RenameConversation(ctx context.Context, id uuid.UUID, title string) (*models.Conversation, error) {
	o.mu.Lock()
	known := containsConversation(o.conversations, id)
	o.mu.Unlock()
	if !known {
		return nil, ErrConversationNotFound
	}

	updated, err := o.store.UpdateConversationTitle(ctx, id, title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("renaming conversation: %w", err)
	}

	o.mu.Lock()
	for i := range o.conversations {
		if o.conversations[i].ID == id {
			o.conversations[i] = *updated
		}
	}
	o.mu.Unlock()
	return updated, nil
}

// State reports whether a send is in flight.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Snapshot{
		State:         o.state,
		AgentID:       o.agentID,
		Conversations: make([]models.Conversation, len(o.conversations)),
		Messages:      make([]Message, len(o.messages)),
	}
	if o.user != nil {
		id := o.user.ID
		s.UserID = &id
	}
	if o.currentID != nil {
		id := *o.currentID
		s.CurrentConversationID = &id
	}
	for i, c := range o.conversations {
		if c.Title != nil {
			t := *c.Title
			c.Title = &t
		}
		s.Conversations[i] = c
	}
	for i, m := range o.messages {
		s.Messages[i] = copyMessage(m)
	}
	return s
}

func copyMessage(m Message) Message {
	if m.ConversationID != nil {
		id := *m.ConversationID
		m.ConversationID = &id
	}
	if m.CreatedAt != nil {
		t := *m.CreatedAt
		m.CreatedAt = &t
	}
	return m
}
