package sessionid

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStorage struct {
	*MemoryStorage
	sets int
}

func (c *countingStorage) Set(key, value string) error {
	c.sets++
	return c.MemoryStorage.Set(key, value)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	storage := &countingStorage{MemoryStorage: NewMemoryStorage()}
	p := NewProvider(storage)

	first, err := p.GetOrCreate()
	require.NoError(t, err)
	second, err := p.GetOrCreate()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, storage.sets)

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())

	stored, ok, _ := storage.Get(StorageKey)
	assert.True(t, ok)
	assert.Equal(t, first, stored)
}

func TestGetOrCreateReusesExistingValue(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey, "existing-token"))

	id, err := NewProvider(storage).GetOrCreate()
	require.NoError(t, err)
	assert.Equal(t, "existing-token", id)
}

func TestRequireUUIDReplacesForeignValue(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey, "attacker-1"))

	id, err := NewProvider(storage, RequireUUID()).GetOrCreate()
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-1", id)
	assert.True(t, IsValid(id))

	stored, _, _ := storage.Get(StorageKey)
	assert.Equal(t, id, stored)

	again, err := NewProvider(storage, RequireUUID()).GetOrCreate()
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

type brokenStorage struct{}

func (brokenStorage) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (brokenStorage) Set(string, string) error         { return errors.New("disk gone") }

func TestGetOrCreatePropagatesStorageErrors(t *testing.T) {
	_, err := NewProvider(brokenStorage{}).GetOrCreate()
	assert.Error(t, err)
}

func TestFileStorageSurvivesNewProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile", "state.json")

	first, err := NewProvider(NewFileStorage(path)).GetOrCreate()
	require.NoError(t, err)

	second, err := NewProvider(NewFileStorage(path)).GetOrCreate()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStorageRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := NewFileStorage(path).Get(StorageKey)
	assert.Error(t, err)
}

func TestCookieStorage(t *testing.T) {
	t.Run("issues cookie when missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		p := NewProvider(NewCookieStorage(rec, req, "sid", true))

		id, err := p.GetOrCreate()
		require.NoError(t, err)
		again, err := p.GetOrCreate()
		require.NoError(t, err)
		assert.Equal(t, id, again)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "sid", cookies[0].Name)
		assert.Equal(t, id, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
		assert.True(t, cookies[0].Secure)
	})

	t.Run("reads existing cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: StorageKey, Value: "from-browser"})

		id, err := NewProvider(NewCookieStorage(rec, req, "", false)).GetOrCreate()
		require.NoError(t, err)
		assert.Equal(t, "from-browser", id)
		assert.Empty(t, rec.Result().Cookies())
	})
}

func TestFixed(t *testing.T) {
	id, err := Fixed("abc").GetOrCreate()
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = Fixed("").GetOrCreate()
	assert.Error(t, err)
}
