// Package memory is an in-process implementation of store.Store. Nothing
// survives a restart; it backs tests, the CLI and DATABASE_DRIVER=memory.
package memory

import (
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/store"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

type conversationRecord struct {
	conv models.Conversation
	seq  int64
}

type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]models.User
	emails        map[string]uuid.UUID
	conversations map[uuid.UUID]*conversationRecord
	messages      map[uuid.UUID][]models.Message
	messageIDs    map[uuid.UUID]struct{}
	seq           int64
	now           func() time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]models.User),
		emails:        make(map[string]uuid.UUID),
		conversations: make(map[uuid.UUID]*conversationRecord),
		messages:      make(map[uuid.UUID][]models.Message),
		messageIDs:    make(map[uuid.UUID]struct{}),
		now:           time.Now,
	}
}

// SetClock overrides the time source used for created_at values.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.emails[email]; exists {
		return fmt.Errorf("user with email %s already exists", user.Email)
	}
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}

	now := s.now()
	u := *user
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = u
	s.emails[email] = u.ID
	user.CreatedAt, user.UpdatedAt = now, now
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateConversation(ctx context.Context, userID uuid.UUID, sessionID, agentID string, title *string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := store.InitialTitle(title)
	s.seq++
	rec := &conversationRecord{
		conv: models.Conversation{
			ID:        uuid.New(),
			UserID:    userID,
			AgentID:   agentID,
			SessionID: sessionID,
			Title:     &t,
			CreatedAt: s.now(),
		},
		seq: s.seq,
	}
	s.conversations[rec.conv.ID] = rec
	return copyConversation(rec.conv), nil
}

func (s *Store) GetConversations(ctx context.Context, userID uuid.UUID, agentID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*conversationRecord
	for _, rec := range s.conversations {
		if rec.conv.UserID == userID && rec.conv.AgentID == agentID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.conv.CreatedAt.Equal(b.conv.CreatedAt) {
			return a.conv.CreatedAt.After(b.conv.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]models.Conversation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *copyConversation(rec.conv))
	}
	return out, nil
}

func (s *Store) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SaveMessage(ctx context.Context, conversationID uuid.UUID, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return fmt.Errorf("saving message to conversation %s: %w", conversationID, store.ErrNotFound)
	}
	if !msg.Role.Valid() {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if _, dup := s.messageIDs[msg.ID]; dup {
		return fmt.Errorf("message %s already exists", msg.ID)
	}

	msg.ConversationID = conversationID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.messageIDs[msg.ID] = struct{}{}
	return nil
}

func (s *Store) UpdateConversationTitle(ctx context.Context, conversationID uuid.UUID, title string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.conversations[conversationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	t := store.TruncateTitle(title)
	rec.conv.Title = &t
	return copyConversation(rec.conv), nil
}

func copyConversation(c models.Conversation) *models.Conversation {
	if c.Title != nil {
		t := *c.Title
		c.Title = &t
	}
	return &c
}
