// Package storage declares the store ports used by the services and the
// helpers shared by every adapter. Adapters live in the sqlite, postgres
// and memory subpackages.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/pipeline"
)

// Ports for outbound adapters. Every operation is scoped to an owner.
type (
	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) error
		// CreateTransactions inserts all records or none.
		CreateTransactions(ctx context.Context, ts []core.Transaction) error
		GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, ownerID, id string) error
		ListTransactions(ctx context.Context, q ListQuery) (page []core.Transaction, total int64, err error)
	}

	// AnalyticsStore executes declarative pipelines.
	AnalyticsStore interface {
		// Aggregate runs a grouped pipeline.
		Aggregate(ctx context.Context, p pipeline.Pipeline) ([]pipeline.Row, error)
		// Find runs an ungrouped pipeline and returns matching documents.
		Find(ctx context.Context, p pipeline.Pipeline) ([]core.Transaction, error)
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) error
		GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, ownerID, id string) error
		// ListBudgets filters by year and month when they are non-zero.
		ListBudgets(ctx context.Context, ownerID string, year, month int) ([]core.Budget, error)
	}

	Store interface {
		TransactionStore
		AnalyticsStore
		BudgetStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// SortField is a sortable transaction column.
type SortField string

const (
	SortByDate     SortField = "date"
	SortByAmount   SortField = "amount"
	SortByCategory SortField = "category"
	SortByType     SortField = "type"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListQuery filters and paginates transactions.
type ListQuery struct {
	OwnerID       string
	Kind          core.Kind
	Category      string
	PaymentMethod string
	// From and To bound the occurrence date inclusively. Zero is unbounded.
	From time.Time
	To   time.Time
	// Search matches description substrings, case-insensitively.
	Search string

	Page       int
	Limit      int
	SortBy     SortField
	Descending bool
}

// Normalize applies defaults and validates the query.
func (q ListQuery) Normalize() (ListQuery, error) {
	if strings.TrimSpace(q.OwnerID) == "" {
		return q, core.ErrMissingOwner
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return q, core.ErrInvalidKind
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Page < 1 {
		return q, fmt.Errorf("%w: page must be at least 1", core.ErrInvalidArgument)
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit < 1 || q.Limit > MaxPageSize {
		return q, fmt.Errorf("%w: limit must be between 1 and %d", core.ErrInvalidArgument, MaxPageSize)
	}
	switch q.SortBy {
	case "":
		q.SortBy = SortByDate
	case SortByDate, SortByAmount, SortByCategory, SortByType:
	default:
		return q, fmt.Errorf("%w: cannot sort by %q", core.ErrInvalidArgument, q.SortBy)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, fmt.Errorf("%w: start_date must not be after end_date", core.ErrInvalidArgument)
	}
	q.Search = strings.TrimSpace(q.Search)
	return q, nil
}

// Offset is the number of records skipped before the page.
func (q ListQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Matches evaluates the filters in memory.
func (q ListQuery) Matches(t core.Transaction) bool {
	switch {
	case t.OwnerID != q.OwnerID:
		return false
	case q.Kind != "" && t.Kind != q.Kind:
		return false
	case q.Category != "" && t.Category != q.Category:
		return false
	case q.PaymentMethod != "" && t.PaymentMethod != q.PaymentMethod:
		return false
	case !q.From.IsZero() && t.OccurredAt.Before(q.From):
		return false
	case !q.To.IsZero() && t.OccurredAt.After(q.To):
		return false
	case q.Search != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(q.Search)):
		return false
	}
	return true
}

// Unavailable classifies a driver failure as ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStoreUnavailable, op, err)
}

// NotFound reports a missing transaction or budget.
func NotFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
}
