// Package storagetest is a conformance suite every storage.Store adapter
// must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/daterange"
	"fintrack/internal/pipeline"
	"fintrack/internal/storage"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Store

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func tx(id, owner string, amount string, kind core.Kind, category, method, desc string, when time.Time) core.Transaction {
	return core.Transaction{
		ID:            id,
		OwnerID:       owner,
		Amount:        core.MustMoney(amount),
		Kind:          kind,
		Category:      category,
		PaymentMethod: method,
		Description:   desc,
		OccurredAt:    when,
		CreatedAt:     when,
		UpdatedAt:     when,
	}
}

// Fixture is the shared dataset: five months of activity for u1 and one
// transaction for u2.
func Fixture() []core.Transaction {
	return []core.Transaction{
		tx("t1", "u1", "1000.00", core.KindCredit, "Salary", "Bank Transfer", "March salary", at(2025, 3, 1, 9)),
		tx("t2", "u1", "200.00", core.KindDebit, "Food", "Card", "Groceries at market", at(2025, 3, 2, 12)),
		tx("t3", "u1", "50.50", core.KindDebit, "Transport", "Cash", "Metro ticket", at(2025, 3, 2, 18)),
		tx("t4", "u1", "120.00", core.KindDebit, "Food", "Card", "Dinner", at(2025, 3, 10, 20)),
		tx("t5", "u1", "300.00", core.KindCredit, "Freelance", "Bank Transfer", "Logo design", at(2025, 2, 20, 10)),
		tx("t6", "u1", "80.00", core.KindDebit, "Utilities", "Card", "Electricity Bill", at(2025, 2, 25, 8)),
		tx("t7", "u2", "999.00", core.KindDebit, "Food", "Card", "Other owner", at(2025, 3, 5, 10)),
	}
}

var (
	march      = daterange.Interval{Start: at(2025, 3, 1, 0), End: daterange.EndOfDay(at(2025, 3, 31, 0))}
	febToMarch = daterange.Interval{Start: at(2025, 2, 1, 0), End: march.End}
)

func seeded(t *testing.T, newStore Factory) storage.Store {
	t.Helper()
	s := newStore(t)
	require.NoError(t, s.CreateTransactions(context.Background(), Fixture()))
	return s
}

func ids(ts []core.Transaction) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func money(s string) string { return core.MustMoney(s).String() }

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("TransactionCRUD", func(t *testing.T) { testTransactionCRUD(t, newStore) })
	t.Run("OwnerIsolation", func(t *testing.T) { testOwnerIsolation(t, newStore) })
	t.Run("BatchConflict", func(t *testing.T) { testBatchConflict(t, newStore) })
	t.Run("List", func(t *testing.T) { testList(t, newStore) })
	t.Run("KPITotals", func(t *testing.T) { testKPITotals(t, newStore) })
	t.Run("CategoryBreakdown", func(t *testing.T) { testCategoryBreakdown(t, newStore) })
	t.Run("Timeline", func(t *testing.T) { testTimeline(t, newStore) })
	t.Run("PaymentMethodsAndSavings", func(t *testing.T) { testPaymentMethodsAndSavings(t, newStore) })
	t.Run("Find", func(t *testing.T) { testFind(t, newStore) })
	t.Run("Balances", func(t *testing.T) { testBalances(t, newStore) })
	t.Run("UnscopedPipeline", func(t *testing.T) { testUnscopedPipeline(t, newStore) })
	t.Run("Budgets", func(t *testing.T) { testBudgets(t, newStore) })
}

func testTransactionCRUD(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	orig := tx("a1", "u1", "12.34", core.KindDebit, "Food", "Card", "lunch", at(2025, 1, 5, 12))
	require.NoError(t, s.CreateTransaction(ctx, orig))

	got, err := s.GetTransaction(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "12.34", got.Amount.String())
	assert.Equal(t, core.KindDebit, got.Kind)
	assert.True(t, orig.OccurredAt.Equal(got.OccurredAt))
	assert.Equal(t, "lunch", got.Description)

	got.Amount = core.MustMoney("20")
	got.Category = "Dining"
	got.OccurredAt = at(2025, 1, 6, 12)
	got.UpdatedAt = at(2025, 1, 7, 0)
	require.NoError(t, s.UpdateTransaction(ctx, got))

	again, err := s.GetTransaction(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "20.00", again.Amount.String())
	assert.Equal(t, "Dining", again.Category)
	assert.True(t, again.UpdatedAt.Equal(at(2025, 1, 7, 0)))
	assert.True(t, again.CreatedAt.Equal(orig.CreatedAt))

	// Moving the date must move its buckets too.
	rows, err := s.Aggregate(ctx, pipeline.Timeline("u1", daterange.Interval{Start: at(2025, 1, 1, 0), End: at(2025, 1, 31, 0)}, daterange.Day))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-01-06", rows[0].Bucket.Key())

	require.NoError(t, s.DeleteTransaction(ctx, "u1", "a1"))
	_, err = s.GetTransaction(ctx, "u1", "a1")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteTransaction(ctx, "u1", "a1"), core.ErrNotFound))
}

func testBatchConflict(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := seeded(t, newStore)

	fresh := tx("b1", "u1", "5", core.KindDebit, "Food", "Cash", "", at(2025, 3, 2, 9))
	dup := tx("t1", "u1", "5", core.KindDebit, "Food", "Cash", "", at(2025, 3, 2, 9))

	err := s.CreateTransactions(ctx, []core.Transaction{fresh, dup})
	assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)
	assert.False(t, errors.Is(err, core.ErrStoreUnavailable))

	_, err = s.GetTransaction(ctx, "u1", "b1")
	assert.True(t, errors.Is(err, core.ErrNotFound), "batch must be all or nothing")
	_, total, err := s.ListTransactions(ctx, storage.ListQuery{OwnerID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
}

func testOwnerIsolation(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := seeded(t, newStore)

	_, err := s.GetTransaction(ctx, "u2", "t1")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	foreign := tx("t1", "u2", "1", core.KindCredit, "X", "Y", "", at(2025, 3, 1, 0))
	assert.True(t, errors.Is(s.UpdateTransaction(ctx, foreign), core.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteTransaction(ctx, "u2", "t1"), core.ErrNotFound))

	still, err := s.GetTransaction(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", still.Amount.String())

	rows, err := s.Aggregate(ctx, pipeline.KPITotals("u2", march))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, core.KindDebit, rows[0].Kind)
	assert.Equal(t, money("999"), core.NewMoney(rows[0].Total).String())
}

func testList(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := seeded(t, newStore)

	page, total, err := s.ListTransactions(ctx, storage.ListQuery{OwnerID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Equal(t, []string{"t5", "t6", "t1", "t2", "t3", "t4"}, ids(page), "default sort is date ascending")

	page, total, err = s.ListTransactions(ctx, storage.ListQuery{OwnerID: "u1", SortBy: storage.SortByDate, Descending: true, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Equal(t, []string{"t4", "t3"}, ids(page))

	page, total, err = s.ListTransactions(ctx, storage.ListQuery{OwnerID: "u1", Kind: core.KindDebit, SortBy: storage.SortByAmount, Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []string{"t4", "t2"}, ids(page))

	page, _, err = s.ListTransactions(ctx, storage.ListQuery{OwnerID: "u1", Search: "bill"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t6"}, ids(page), "search is case-insensitive")

	page, total, err = s.ListTransactions(ctx, storage.ListQuery{OwnerID: "u1", Category: "Food", PaymentMethod: "Card", From: march.Start, To: march.End})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.ElementsMatch(t, []string{"t2", "t4"}, ids(page))

	page, total, err = s.ListTransactions(ctx, storage.ListQuery{OwnerID: "u1", Page: 9})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Empty(t, page)

	_, _, err = s.ListTransactions(ctx, storage.ListQuery{OwnerID: "u1", Limit: 101})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func testKPITotals(t *testing.T, newStore Factory) {
	s := seeded(t, newStore)
	rows, err := s.Aggregate(context.Background(), pipeline.KPITotals("u1", march))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byKind := map[core.Kind]pipeline.Row{}
	for _, r := range rows {
		byKind[r.Kind] = r
	}
	credit, debit := byKind[core.KindCredit], byKind[core.KindDebit]
	assert.Equal(t, money("1000"), core.NewMoney(credit.Total).String())
	assert.EqualValues(t, 1, credit.Count)
	assert.Equal(t, money("370.50"), core.NewMoney(debit.Total).String())
	assert.EqualValues(t, 3, debit.Count)
	assert.Equal(t, money("50.50"), core.NewMoney(debit.Min).String())
	assert.Equal(t, money("200"), core.NewMoney(debit.Max).String())
}

func testCategoryBreakdown(t *testing.T, newStore Factory) {
	s := seeded(t, newStore)
	rows, err := s.Aggregate(context.Background(), pipeline.CategoryBreakdown("u1", march, core.KindDebit))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Food", rows[0].Category)
	assert.Equal(t, money("320"), core.NewMoney(rows[0].Total).String())
	assert.Equal(t, money("160"), core.NewMoney(rows[0].Avg()).String())
	assert.Equal(t, "Transport", rows[1].Category)

	all, err := s.Aggregate(context.Background(), pipeline.CategoryBreakdown("u1", march, ""))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Salary", all[0].Category)
}

func testTimeline(t *testing.T, newStore Factory) {
	s := seeded(t, newStore)
	ctx := context.Background()

	rows, err := s.Aggregate(ctx, pipeline.Timeline("u1", march, daterange.Day))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2025-03-01", rows[0].Bucket.Key())
	assert.Equal(t, core.KindCredit, rows[0].Kind)
	assert.Equal(t, "2025-03-02", rows[1].Bucket.Key())
	assert.Equal(t, money("250.50"), core.NewMoney(rows[1].Total).String())
	assert.Equal(t, "2025-03-10", rows[2].Bucket.Key())

	weeks, err := s.Aggregate(ctx, pipeline.Timeline("u1", march, daterange.Week))
	require.NoError(t, err)
	require.Len(t, weeks, 3)
	assert.Equal(t, "2025-W09", weeks[0].Bucket.Key())
	assert.Equal(t, core.KindCredit, weeks[0].Kind)
	assert.Equal(t, "2025-W09", weeks[1].Bucket.Key())
	assert.Equal(t, core.KindDebit, weeks[1].Kind)
	assert.Equal(t, "2025-W11", weeks[2].Bucket.Key())
}

func testPaymentMethodsAndSavings(t *testing.T, newStore Factory) {
	s := seeded(t, newStore)
	ctx := context.Background()

	methods, err := s.Aggregate(ctx, pipeline.PaymentMethods("u1", march))
	require.NoError(t, err)
	require.Len(t, methods, 3)
	assert.Equal(t, []string{"Bank Transfer", "Card", "Cash"},
		[]string{methods[0].PaymentMethod, methods[1].PaymentMethod, methods[2].PaymentMethod})
	assert.EqualValues(t, 2, methods[1].Count)

	savings, err := s.Aggregate(ctx, pipeline.MonthlySavings("u1", febToMarch))
	require.NoError(t, err)
	require.Len(t, savings, 4)
	got := make([]string, len(savings))
	for i, r := range savings {
		got[i] = r.Bucket.Key() + "/" + string(r.Kind) + "/" + core.NewMoney(r.Total).String()
	}
	assert.Equal(t, []string{
		"2025-02/credit/300.00",
		"2025-02/debit/80.00",
		"2025-03/credit/1000.00",
		"2025-03/debit/370.50",
	}, got)
}

func testFind(t *testing.T, newStore Factory) {
	s := seeded(t, newStore)
	ctx := context.Background()

	hi, err := s.Find(ctx, pipeline.HighestExpense("u1", march))
	require.NoError(t, err)
	require.Len(t, hi, 1)
	assert.Equal(t, "t2", hi[0].ID)

	recent, err := s.Find(ctx, pipeline.RecentTransactions("u1", 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"t4", "t3", "t2"}, ids(recent))

	none, err := s.Find(ctx, pipeline.HighestExpense("u1", daterange.Interval{Start: at(2020, 1, 1, 0), End: at(2020, 1, 2, 0)}))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testBalances(t *testing.T, newStore Factory) {
	s := seeded(t, newStore)
	ctx := context.Background()

	opening, err := s.Aggregate(ctx, pipeline.OpeningBalance("u1", march.Start))
	require.NoError(t, err)
	require.Len(t, opening, 2)
	assert.Equal(t, core.KindCredit, opening[0].Kind)
	assert.Equal(t, money("300"), core.NewMoney(opening[0].Total).String())
	assert.Equal(t, money("80"), core.NewMoney(opening[1].Total).String())

	lifetime, err := s.Aggregate(ctx, pipeline.LifetimeTotals("u1"))
	require.NoError(t, err)
	require.Len(t, lifetime, 2)
	assert.Equal(t, money("1300"), core.NewMoney(lifetime[0].Total).String())
	assert.Equal(t, money("450.50"), core.NewMoney(lifetime[1].Total).String())

	spending, err := s.Aggregate(ctx, pipeline.BudgetSpending("u1", 2025, 2))
	require.NoError(t, err)
	require.Len(t, spending, 1)
	assert.Equal(t, "Utilities", spending[0].Category)
}

func testUnscopedPipeline(t *testing.T, newStore Factory) {
	s := seeded(t, newStore)
	ctx := context.Background()

	_, err := s.Aggregate(ctx, pipeline.KPITotals("", march))
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	_, err = s.Find(ctx, pipeline.RecentTransactions("", 10))
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func testBudgets(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	now := at(2025, 3, 1, 0)

	food, err := core.NewBudget("u1", core.BudgetInput{Category: "Food", MonthlyLimit: core.MustMoney("300"), Year: 2025, Month: 3}, now)
	require.NoError(t, err)
	require.NoError(t, s.CreateBudget(ctx, food))

	dup, err := core.NewBudget("u1", core.BudgetInput{Category: "Food", MonthlyLimit: core.MustMoney("100"), Year: 2025, Month: 3}, now)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.CreateBudget(ctx, dup), core.ErrConflict))

	rent, err := core.NewBudget("u1", core.BudgetInput{Category: "Rent", MonthlyLimit: core.MustMoney("900"), Year: 2025, Month: 2}, now)
	require.NoError(t, err)
	require.NoError(t, s.CreateBudget(ctx, rent))

	got, err := s.GetBudget(ctx, "u1", food.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", got.MonthlyLimit.String())
	assert.True(t, got.IsActive)

	_, err = s.GetBudget(ctx, "u2", food.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	got.MonthlyLimit = core.MustMoney("350")
	got.IsActive = false
	require.NoError(t, s.UpdateBudget(ctx, got))
	got, err = s.GetBudget(ctx, "u1", food.ID)
	require.NoError(t, err)
	assert.Equal(t, "350.00", got.MonthlyLimit.String())
	assert.False(t, got.IsActive)

	all, err := s.ListBudgets(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Food", all[0].Category, "newest month first")

	inMarch, err := s.ListBudgets(ctx, "u1", 2025, 3)
	require.NoError(t, err)
	require.Len(t, inMarch, 1)

	assert.True(t, errors.Is(s.DeleteBudget(ctx, "u2", rent.ID), core.ErrNotFound))
	require.NoError(t, s.DeleteBudget(ctx, "u1", rent.ID))
	all, err = s.ListBudgets(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
