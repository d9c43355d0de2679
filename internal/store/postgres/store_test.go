package postgres

import (
	"agentchat-backend/internal/store"
	"agentchat-backend/internal/store/storetest"
	"agentchat-backend/pkg/logger"
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable database; every table is truncated per case.
func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool, logger.Nop())
	require.NoError(t, s.EnsureSchema(ctx))

	storetest.Run(t, func(t *testing.T) store.Store {
		_, err := pool.Exec(ctx, `TRUNCATE messages, conversations, users CASCADE`)
		require.NoError(t, err)
		return s
	})
}
