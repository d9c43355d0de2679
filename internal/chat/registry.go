package chat

import (
	"agentchat-backend/internal/metrics"
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/relay"
	"agentchat-backend/internal/sessionid"
	"agentchat-backend/internal/store"
	"agentchat-backend/pkg/logger"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultSessionIdleTTL = 30 * time.Minute
	DefaultMaxSessions    = 10000
)

type sessionKey struct {
	userID    uuid.UUID
	sessionID string
}

// Registry keeps one Orchestrator per (user, session token), the server
// side equivalent of one chat page per browser profile. Idle sessions are
// evicted after a TTL and the total is capped; a session that is sending
// is never evicted.
type Registry struct {
	catalog Catalog
	store   store.ConversationStore
	relay   relay.Sender
	metrics *metrics.Metrics
	log     logger.Logger

	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[sessionKey]*entry
}

type entry struct {
	o        *Orchestrator
	lastUsed time.Time // guarded by Registry.mu

	// mu serializes sign-in; loaded flips once a sign-in load succeeded.
	mu     sync.Mutex
	loaded bool
}

type RegistryOption func(*Registry)

// WithIdleTTL sets how long an unused session is kept. Zero disables expiry.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d >= 0 {
			r.idleTTL = d
		}
	}
}

// WithMaxSessions caps the number of live sessions. Zero disables the cap.
func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) {
		if n >= 0 {
			r.maxSessions = n
		}
	}
}

// WithClock replaces time.Now. Tests use it to age sessions.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(catalog Catalog, st store.ConversationStore, r relay.Sender, m *metrics.Metrics, log logger.Logger, opts ...RegistryOption) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	reg := &Registry{
		catalog:     catalog,
		store:       st,
		relay:       r,
		metrics:     m,
		log:         log.WithFields(logger.ComponentField("chat_registry")),
		idleTTL:     DefaultSessionIdleTTL,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		sessions:    make(map[sessionKey]*entry),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Get returns the orchestrator for (user, sessionID), creating it on first
// use. The sign-in load is retried on later calls until it succeeds, and it
// runs detached from ctx's cancellation so an abandoned request cannot
// leave the session empty.
func (r *Registry) Get(ctx context.Context, user *models.User, sessionID string) *Orchestrator {
	key := sessionKey{userID: user.ID, sessionID: sessionID}
	now := r.now()

	r.mu.Lock()
	e, ok := r.sessions[key]
	if !ok {
		r.evictLocked(now)
		e = &entry{o: New(Config{
			Catalog: r.catalog,
			Store:   r.store,
			Relay:   r.relay,
			Session: sessionid.Fixed(sessionID),
			Metrics: r.metrics,
			Logger:  r.log.WithFields(logger.StringField("session_id", sessionID)),
		})}
		r.sessions[key] = e
	}
	e.lastUsed = now
	r.mu.Unlock()

	// Concurrent callers wait here until the first load finished.
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded && e.o.State() != StateSending {
		if err := e.o.SetUser(context.WithoutCancel(ctx), user); err == nil {
			e.loaded = true
		}
	}
	return e.o
}

// evictLocked drops expired sessions and, if the registry is still full,
// the least recently used ones until there is room for one more.
func (r *Registry) evictLocked(now time.Time) {
	if r.idleTTL > 0 {
		for key, e := range r.sessions {
			if now.Sub(e.lastUsed) > r.idleTTL && e.o.State() != StateSending {
				delete(r.sessions, key)
			}
		}
	}
	if r.maxSessions <= 0 {
		return
	}
	for len(r.sessions) >= r.maxSessions {
		var (
			oldestKey sessionKey
			oldest    *entry
		)
		for key, e := range r.sessions {
			if e.o.State() == StateSending {
				continue
			}
			if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
				oldestKey, oldest = key, e
			}
		}
		if oldest == nil {
			r.log.Warn("session cap reached with every session sending", logger.IntField("sessions", len(r.sessions)))
			return
		}
		delete(r.sessions, oldestKey)
	}
}

// Forget signs the session out and drops it.
func (r *Registry) Forget(ctx context.Context, userID uuid.UUID, sessionID string) {
	key := sessionKey{userID: userID, sessionID: sessionID}

	r.mu.Lock()
	e, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if ok {
		_ = e.o.SetUser(ctx, nil)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
