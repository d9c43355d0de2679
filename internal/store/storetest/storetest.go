// Package storetest holds behaviour checks shared by every store.Store
// implementation.
package storetest

import (
	"agentchat-backend/internal/models"
	"agentchat-backend/internal/store"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s against the store contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("UserRoundTrip", func(t *testing.T) { testUserRoundTrip(t, newStore(t)) })
	t.Run("ConversationDefaults", func(t *testing.T) { testConversationDefaults(t, newStore(t)) })
	t.Run("ConversationsScopedAndNewestFirst", func(t *testing.T) { testConversationsScoped(t, newStore(t)) })
	t.Run("MessagesOldestFirstKeepIDs", func(t *testing.T) { testMessagesOrdered(t, newStore(t)) })
	t.Run("SaveMessageUnknownConversation", func(t *testing.T) { testSaveMessageUnknownConversation(t, newStore(t)) })
	t.Run("UpdateTitleTruncates", func(t *testing.T) { testUpdateTitle(t, newStore(t)) })
}

func mustUser(t *testing.T, s store.Store, email string) *models.User {
	t.Helper()
	u := &models.User{ID: uuid.New(), Email: email, HashedPassword: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func testUserRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "ada@example.com")

	byEmail, err := s.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.HashedPassword)

	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Email)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	dup := &models.User{ID: uuid.New(), Email: "ada@example.com", HashedPassword: "x"}
	assert.Error(t, s.CreateUser(ctx, dup))
}

func testConversationDefaults(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "bob@example.com")

	conv, err := s.CreateConversation(ctx, u.ID, "sess-1", "main", nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, conv.ID)
	assert.Equal(t, u.ID, conv.UserID)
	assert.Equal(t, "main", conv.AgentID)
	assert.Equal(t, "sess-1", conv.SessionID)
	require.NotNil(t, conv.Title)
	assert.Equal(t, models.DefaultConversationTitle, *conv.Title)
	assert.False(t, conv.CreatedAt.IsZero())
}

func testConversationsScoped(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "carol@example.com")
	other := mustUser(t, s, "dave@example.com")

	first, err := s.CreateConversation(ctx, u.ID, "sess", "main", nil)
	require.NoError(t, err)
	second, err := s.CreateConversation(ctx, u.ID, "sess", "main", nil)
	require.NoError(t, err)
	_, err = s.CreateConversation(ctx, u.ID, "sess", "pm", nil)
	require.NoError(t, err)
	_, err = s.CreateConversation(ctx, other.ID, "sess", "main", nil)
	require.NoError(t, err)

	convs, err := s.GetConversations(ctx, u.ID, "main")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)
	assert.Equal(t, first.ID, convs[1].ID)
	for _, c := range convs {
		assert.Equal(t, u.ID, c.UserID)
		assert.Equal(t, "main", c.AgentID)
	}

	none, err := s.GetConversations(ctx, u.ID, "kafd")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testMessagesOrdered(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "erin@example.com")
	conv, err := s.CreateConversation(ctx, u.ID, "sess", "main", nil)
	require.NoError(t, err)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	roles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser}
	for i, id := range ids {
		require.NoError(t, s.SaveMessage(ctx, conv.ID, models.Message{
			ID:      id,
			Role:    roles[i],
			Content: strings.Repeat("x", i+1),
		}))
	}

	msgs, err := s.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, ids[i], m.ID)
		assert.Equal(t, roles[i], m.Role)
		assert.Equal(t, conv.ID, m.ConversationID)
		assert.False(t, m.CreatedAt.IsZero())
	}

	empty, err := s.GetMessages(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testSaveMessageUnknownConversation(t *testing.T, s store.Store) {
	err := s.SaveMessage(context.Background(), uuid.New(), models.Message{
		ID:      uuid.New(),
		Role:    models.RoleUser,
		Content: "orphan",
	})
	assert.Error(t, err)
}

func testUpdateTitle(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "frank@example.com")
	conv, err := s.CreateConversation(ctx, u.ID, "sess", "main", nil)
	require.NoError(t, err)

	updated, err := s.UpdateConversationTitle(ctx, conv.ID, strings.Repeat("t", 120))
	require.NoError(t, err)
	require.NotNil(t, updated.Title)
	assert.Equal(t, strings.Repeat("t", 97)+"...", *updated.Title)

	convs, err := s.GetConversations(ctx, u.ID, "main")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, *updated.Title, *convs[0].Title)

	_, err = s.UpdateConversationTitle(ctx, uuid.New(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
