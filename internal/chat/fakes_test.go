package chat

import (
	"agentchat-backend/internal/agents"
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/relay"
	"agentchat-backend/internal/sessionid"
	"agentchat-backend/internal/store/memory"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unreachable")

// flakyStore wraps the memory store with switchable failures.
type flakyStore struct {
	*memory.Store

	mu           sync.Mutex
	failCreate   bool
	failList     bool
	failMessages bool
	failSaveRole models.Role
}

func (f *flakyStore) set(fn func(f *flakyStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *flakyStore) CreateConversation(ctx context.Context, userID uuid.UUID, sessionID, agentID string, title *string) (*models.Conversation, error) {
	f.mu.Lock()
	fail := f.failCreate
	f.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return f.Store.CreateConversation(ctx, userID, sessionID, agentID, title)
}

func (f *flakyStore) GetConversations(ctx context.Context, userID uuid.UUID, agentID string) ([]models.Conversation, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.Store.GetConversations(ctx, userID, agentID)
}

func (f *flakyStore) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	fail := f.failMessages
	f.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return f.Store.GetMessages(ctx, conversationID)
}

func (f *flakyStore) SaveMessage(ctx context.Context, conversationID uuid.UUID, msg models.Message) error {
	f.mu.Lock()
	fail := f.failSaveRole != "" && f.failSaveRole == msg.Role
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.Store.SaveMessage(ctx, conversationID, msg)
}

type relayCall struct {
	content, sessionID, endpoint string
}

type fakeRelay struct {
	mu      sync.Mutex
	calls   []relayCall
	respond func(ctx context.Context, content string) relay.Result
}

func replyWith(res relay.Result) *fakeRelay {
	return &fakeRelay{respond: func(context.Context, string) relay.Result { return res }}
}

func (f *fakeRelay) Send(ctx context.Context, content, sessionID, endpoint string) relay.Result {
	f.mu.Lock()
	f.calls = append(f.calls, relayCall{content: content, sessionID: sessionID, endpoint: endpoint})
	respond := f.respond
	f.mu.Unlock()
	return respond(ctx, content)
}

func (f *fakeRelay) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// blockingRelay parks every Send until release is closed.
func blockingRelay(res relay.Result) (r *fakeRelay, started <-chan struct{}, release func()) {
	startedCh := make(chan struct{}, 8)
	releaseCh := make(chan struct{})
	r = &fakeRelay{respond: func(context.Context, string) relay.Result {
		startedCh <- struct{}{}
		<-releaseCh
		return res
	}}
	var once sync.Once
	return r, startedCh, func() { once.Do(func() { close(releaseCh) }) }
}

type harness struct {
	o     *Orchestrator
	store *flakyStore
	relay *fakeRelay
	user  *models.User
}

func newHarness(t *testing.T, r *fakeRelay) *harness {
	t.Helper()
	return newHarnessWithCatalog(t, agents.Default(), r)
}

// newHarnessWithCatalog leaves the relay unset when r is nil.
func newHarnessWithCatalog(t *testing.T, catalog Catalog, r *fakeRelay) *harness {
	t.Helper()
	st := &flakyStore{Store: memory.New()}
	user := &models.User{ID: uuid.New(), Email: "user@example.com"}
	require.NoError(t, st.CreateUser(context.Background(), user))
	cfg := Config{
		Catalog: catalog,
		Store:   st,
		Session: sessionid.Fixed("sess-1"),
	}
	if r != nil {
		cfg.Relay = r
	}
	o := New(cfg)
	return &harness{o: o, store: st, relay: r, user: user}
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	h.o.SetUser(context.Background(), h.user)
}

func (h *harness) seedConversation(t *testing.T, agentID string, contents ...string) *models.Conversation {
	t.Helper()
	ctx := context.Background()
	conv, err := h.store.Store.CreateConversation(ctx, h.user.ID, "sess-1", agentID, nil)
	require.NoError(t, err)
	for i, c := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		require.NoError(t, h.store.Store.SaveMessage(ctx, conv.ID, models.Message{ID: uuid.New(), Role: role, Content: c}))
	}
	return conv
}

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

func pendingCount(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.Pending {
			n++
		}
	}
	return n
}
