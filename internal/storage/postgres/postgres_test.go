package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping integration test")
	}

	storagetest.Run(t, func(t *testing.T) storage.Store {
		ctx := context.Background()
		s, err := New(ctx, Config{DSN: dsn}, nil)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, "TRUNCATE transactions, budgets")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestConnStringDefaults(t *testing.T) {
	got := Config{Host: "db", User: "u", Password: "p", Database: "fintrack"}.connString()
	require.Equal(t, "host=db port=5432 user=u password=p dbname=fintrack sslmode=disable", got)
	require.Equal(t, "postgres://x", Config{DSN: "postgres://x", Host: "ignored"}.connString())
}
