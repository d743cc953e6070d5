package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/storagetest"
)

func newBudgets(t *testing.T) *BudgetService {
	t.Helper()
	svc := NewBudgetService(memory.New(storagetest.Fixture()...), nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func march(category, limit string) core.BudgetInput {
	return core.BudgetInput{Category: category, MonthlyLimit: core.MustMoney(limit), Year: 2025, Month: 3}
}

func TestBudgetService_CRUD(t *testing.T) {
	svc := newBudgets(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, "u1", march("Food", "300"))
	require.NoError(t, err)
	assert.True(t, b.IsActive)

	_, err = svc.Create(ctx, "u1", march("Food", "400"))
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = svc.Create(ctx, "u1", core.BudgetInput{Category: "Food", MonthlyLimit: core.MustMoney("10"), Year: 2025, Month: 13})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	limit := core.MustMoney("350")
	updated, err := svc.Update(ctx, "u1", b.ID, core.BudgetPatch{MonthlyLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, "350.00", updated.MonthlyLimit.String())

	list, err := svc.List(ctx, "u1", 2025, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.Get(ctx, "u2", b.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "u1", b.ID))
	list, err = svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestBudgetService_Status(t *testing.T) {
	svc := newBudgets(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", march("Food", "300"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", march("Transport", "100"))
	require.NoError(t, err)
	paused, err := svc.Create(ctx, "u1", march("Leisure", "50"))
	require.NoError(t, err)
	off := false
	_, err = svc.Update(ctx, "u1", paused.ID, core.BudgetPatch{IsActive: &off})
	require.NoError(t, err)

	statuses, err := svc.Status(ctx, "u1", 2025, 3)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	byCategory := map[string]core.BudgetStatus{}
	for _, s := range statuses {
		byCategory[s.Budget.Category] = s
	}

	food := byCategory["Food"]
	assert.Equal(t, "320.00", food.Spent.String())
	assert.Equal(t, "-20.00", food.Remaining.String())
	assert.Equal(t, 106.7, food.PercentageUsed)
	assert.True(t, food.IsExceeded)

	transport := byCategory["Transport"]
	assert.Equal(t, "50.50", transport.Spent.String())
	assert.Equal(t, "49.50", transport.Remaining.String())
	assert.Equal(t, 50.5, transport.PercentageUsed)
	assert.False(t, transport.IsExceeded)

	_, err = svc.Status(ctx, "u1", 2025, 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
