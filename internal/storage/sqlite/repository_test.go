package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "nested", "fintrack.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return newTestRepository(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	first, err := NewRepository(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewRepository(path, nil)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Ping(context.Background()))
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Close())

	_, err := repo.GetTransaction(context.Background(), "u1", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStoreUnavailable))
	assert.False(t, errors.Is(err, core.ErrNotFound))
}

func TestBatchInsertIsAtomic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	fixture := storagetest.Fixture()

	// Second insert of t1 collides on the primary key.
	batch := append(fixture[:2:2], fixture[0])
	err := repo.CreateTransactions(ctx, batch)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.NotErrorIs(t, err, core.ErrStoreUnavailable)

	_, total, err := repo.ListTransactions(ctx, storage.ListQuery{OwnerID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}
