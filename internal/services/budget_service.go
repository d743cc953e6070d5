package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/pipeline"
	"fintrack/internal/storage"
)

// BudgetStore is what the budget service needs from storage: budget CRUD
// plus the aggregation used for spending.
type BudgetStore interface {
	storage.BudgetStore
	storage.AnalyticsStore
}

type BudgetService struct {
	store  BudgetStore
	logger *slog.Logger
	now    func() time.Time
}

func NewBudgetService(store BudgetStore, logger *slog.Logger) *BudgetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BudgetService{store: store, logger: logger, now: time.Now}
}

// Create stores a budget. A second budget for the same category and month
// fails with core.ErrConflict.
func (s *BudgetService) Create(ctx context.Context, ownerID string, in core.BudgetInput) (core.Budget, error) {
	b, err := core.NewBudget(ownerID, in, s.now())
	if err != nil {
		return core.Budget{}, err
	}
	if err := s.store.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	s.logger.InfoContext(ctx, "Budget created", "user_id", ownerID, "category", b.Category, "year", b.Year, "month", b.Month)
	return b, nil
}

func (s *BudgetService) Get(ctx context.Context, ownerID, id string) (core.Budget, error) {
	if ownerID == "" {
		return core.Budget{}, core.ErrMissingOwner
	}
	b, err := s.store.GetBudget(ctx, ownerID, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// List returns the owner's budgets, optionally restricted to a year and
// month. Zero means any.
func (s *BudgetService) List(ctx context.Context, ownerID string, year, month int) ([]core.Budget, error) {
	if ownerID == "" {
		return nil, core.ErrMissingOwner
	}
	if month < 0 || month > 12 {
		return nil, core.ErrInvalidBudgetPeriod
	}
	bs, err := s.store.ListBudgets(ctx, ownerID, year, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if bs == nil {
		bs = []core.Budget{}
	}
	return bs, nil
}

func (s *BudgetService) Update(ctx context.Context, ownerID, id string, patch core.BudgetPatch) (core.Budget, error) {
	current, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.Budget{}, err
	}
	updated, err := patch.Apply(current, s.now())
	if err != nil {
		return core.Budget{}, err
	}
	if err := s.store.UpdateBudget(ctx, updated); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return updated, nil
}

func (s *BudgetService) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return core.ErrMissingOwner
	}
	if err := s.store.DeleteBudget(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// Status compares every active budget of the month with the debits
// recorded for its category.
func (s *BudgetService) Status(ctx context.Context, ownerID string, year, month int) ([]core.BudgetStatus, error) {
	if ownerID == "" {
		return nil, core.ErrMissingOwner
	}
	if year < 2020 || year > 2100 || month < 1 || month > 12 {
		return nil, core.ErrInvalidBudgetPeriod
	}

	budgets, err := s.store.ListBudgets(ctx, ownerID, year, month)
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}
	rows, err := s.store.Aggregate(ctx, pipeline.BudgetSpending(ownerID, year, month))
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}
	spent := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		spent[r.Category] = r.Total
	}

	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		if !b.IsActive {
			continue
		}
		out = append(out, budgetStatus(b, spent[b.Category]))
	}
	return out, nil
}

func budgetStatus(b core.Budget, spent decimal.Decimal) core.BudgetStatus {
	limit := b.MonthlyLimit.Decimal()
	used := 0.0
	if limit.IsPositive() {
		used = spent.Div(limit).Mul(hundred).Round(1).InexactFloat64()
	}
	return core.BudgetStatus{
		Budget:         b,
		Spent:          core.NewMoney(spent).Rounded(),
		Remaining:      core.NewMoney(limit.Sub(spent)).Rounded(),
		PercentageUsed: used,
		IsExceeded:     spent.GreaterThan(limit),
	}
}
