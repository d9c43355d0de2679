package sessionid

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MemoryStorage keeps values for the life of the process.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// FileStorage persists values as a JSON object in a single file. The CLI
// uses it as its profile storage.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("corrupt storage file %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileStorage) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// cookieMaxAge approximates "no expiry" for browsers.
const cookieMaxAge = 10 * 365 * 24 * time.Hour

// CookieStorage reads a value from the request's cookie and writes it back
// as a long-lived cookie on the response. The key is the cookie name; the
// Name field overrides it when set.
type CookieStorage struct {
	Name   string
	Secure bool
	w      http.ResponseWriter
	r      *http.Request
	set    map[string]string
}

func NewCookieStorage(w http.ResponseWriter, r *http.Request, name string, secure bool) *CookieStorage {
	return &CookieStorage{Name: name, Secure: secure, w: w, r: r, set: make(map[string]string)}
}

func (c *CookieStorage) cookieName(key string) string {
	if c.Name != "" {
		return c.Name
	}
	return key
}

func (c *CookieStorage) Get(key string) (string, bool, error) {
	name := c.cookieName(key)
	if v, ok := c.set[name]; ok {
		return v, true, nil
	}
	cookie, err := c.r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return cookie.Value, cookie.Value != "", nil
}

func (c *CookieStorage) Set(key, value string) error {
	name := c.cookieName(key)
	c.set[name] = value
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
