// Package sessionid provides the stable per-client token sent with every
// webhook call so the automation backend can correlate a conversation.
// The token is a correlation key only and never an auth credential.
package sessionid

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StorageKey is the fixed key the token is stored under.
const StorageKey = "sessionId"

// Storage is durable client-side key/value storage.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Source hands out the session token for the current client.
type Source interface {
	GetOrCreate() (string, error)
}

// Provider creates the token lazily and caches it in its Storage.
type Provider struct {
	mu      sync.Mutex
	storage Storage
	newID   func() string
	valid   func(string) bool
}

type ProviderOption func(*Provider)

// RequireUUID makes the Provider replace stored values that do not parse
// as a UUID, such as a hand-edited cookie.
func RequireUUID() ProviderOption {
	return func(p *Provider) { p.valid = IsValid }
}

func NewProvider(storage Storage, opts ...ProviderOption) *Provider {
	p := &Provider{
		storage: storage,
		newID:   func() string { return uuid.New().String() },
		valid:   func(id string) bool { return id != "" },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsValid reports whether id has the shape of a generated token.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GetOrCreate returns the stored token, generating and storing a new v4
// UUID on first use.
func (p *Provider) GetOrCreate() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok, err := p.storage.Get(StorageKey); err != nil {
		return "", fmt.Errorf("reading session id: %w", err)
	} else if ok && p.valid(id) {
		return id, nil
	}

	id := p.newID()
	if err := p.storage.Set(StorageKey, id); err != nil {
		return "", fmt.Errorf("storing session id: %w", err)
	}
	return id, nil
}

// Fixed is a Source for a token that was already resolved elsewhere.
type Fixed string

func (f Fixed) GetOrCreate() (string, error) {
	if f == "" {
		return "", fmt.Errorf("empty session id")
	}
	return string(f), nil
}
