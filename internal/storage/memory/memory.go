// Package memory is an in-process store adapter. It evaluates pipelines
// directly over a slice of transactions and backs the memory data backend
// and service tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/pipeline"
	"fintrack/internal/storage"
)

type Store struct {
	mu      sync.RWMutex
	items   []core.Transaction
	budgets []core.Budget
}

var _ storage.Store = (*Store)(nil)

func New(seed ...core.Transaction) *Store {
	return &Store{items: append([]core.Transaction(nil), seed...)}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(t.OwnerID, t.ID) >= 0 {
		return core.ErrConflict
	}
	s.items = append(s.items, t)
	return nil
}

func (s *Store) CreateTransactions(_ context.Context, ts []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(ts))
	for _, t := range ts {
		if seen[t.ID] || s.indexOf(t.OwnerID, t.ID) >= 0 {
			return core.ErrConflict
		}
		seen[t.ID] = true
	}
	s.items = append(s.items, ts...)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(ownerID, id)
	if i < 0 {
		return core.Transaction{}, storage.NotFound("transaction", id)
	}
	return s.items[i], nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(t.OwnerID, t.ID)
	if i < 0 {
		return storage.NotFound("transaction", t.ID)
	}
	t.CreatedAt = s.items[i].CreatedAt
	s.items[i] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(ownerID, id)
	if i < 0 {
		return storage.NotFound("transaction", id)
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

func (s *Store) indexOf(ownerID, id string) int {
	return slices.IndexFunc(s.items, func(t core.Transaction) bool {
		return t.OwnerID == ownerID && t.ID == id
	})
}

func (s *Store) ListTransactions(_ context.Context, q storage.ListQuery) ([]core.Transaction, int64, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	var matched []core.Transaction
	for _, t := range s.items {
		if q.Matches(t) {
			matched = append(matched, t)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b core.Transaction) int {
		c := compareListField(a, b, q.SortBy)
		if q.Descending {
			c = -c
		}
		return cmp.Or(c, strings.Compare(a.ID, b.ID))
	})

	total := int64(len(matched))
	from := min(q.Offset(), len(matched))
	to := min(from+q.Limit, len(matched))
	return matched[from:to], total, nil
}

func compareListField(a, b core.Transaction, f storage.SortField) int {
	switch f {
	case storage.SortByAmount:
		return a.Amount.Decimal().Cmp(b.Amount.Decimal())
	case storage.SortByCategory:
		return strings.Compare(a.Category, b.Category)
	case storage.SortByType:
		return strings.Compare(string(a.Kind), string(b.Kind))
	default:
		return a.OccurredAt.Compare(b.OccurredAt)
	}
}

type groupKey struct {
	kind          core.Kind
	category      string
	paymentMethod string
	bucket        pipeline.Bucket
}

func (s *Store) Aggregate(_ context.Context, p pipeline.Pipeline) ([]pipeline.Row, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !p.Grouped() {
		return nil, fmt.Errorf("%w: pipeline %s has no group", core.ErrInvalidArgument, p.Name)
	}

	s.mu.RLock()
	groups := map[groupKey]*pipeline.Row{}
	var order []groupKey
	for _, t := range s.items {
		if !p.Match.Matches(t) {
			continue
		}
		k := keyOf(t, p.Group)
		row, ok := groups[k]
		if !ok {
			row = &pipeline.Row{Kind: k.kind, Category: k.category, PaymentMethod: k.paymentMethod, Bucket: k.bucket}
			groups[k] = row
			order = append(order, k)
		}
		accumulate(row, t.Amount.Decimal())
	}
	s.mu.RUnlock()

	out := make([]pipeline.Row, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	slices.SortFunc(out, func(a, b pipeline.Row) int { return compareRows(a, b, p) })
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func keyOf(t core.Transaction, group []pipeline.Field) groupKey {
	var k groupKey
	for _, f := range group {
		switch f {
		case pipeline.FieldKind:
			k.kind = t.Kind
		case pipeline.FieldCategory:
			k.category = t.Category
		case pipeline.FieldPaymentMethod:
			k.paymentMethod = t.PaymentMethod
		default:
			k.bucket = pipeline.BucketOf(t.OccurredAt, f)
		}
	}
	return k
}

func accumulate(row *pipeline.Row, amount decimal.Decimal) {
	if row.Count == 0 {
		row.Min, row.Max = amount, amount
	} else {
		row.Min = decimal.Min(row.Min, amount)
		row.Max = decimal.Max(row.Max, amount)
	}
	row.Total = row.Total.Add(amount)
	row.Count++
}

// compareRows mirrors the ORDER BY clauses emitted by sqlquery.Aggregate.
func compareRows(a, b pipeline.Row, p pipeline.Pipeline) int {
	if p.Order == pipeline.OrderTotalDesc {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
	}
	fields := p.Group
	if p.Order == pipeline.OrderBucketAsc {
		fields = make([]pipeline.Field, 0, len(p.Group))
		for _, f := range p.Group {
			if f.IsBucket() {
				fields = append(fields, f)
			}
		}
		for _, f := range p.Group {
			if !f.IsBucket() {
				fields = append(fields, f)
			}
		}
	}
	for _, f := range fields {
		var c int
		switch f {
		case pipeline.FieldKind:
			c = strings.Compare(string(a.Kind), string(b.Kind))
		case pipeline.FieldCategory:
			c = strings.Compare(a.Category, b.Category)
		case pipeline.FieldPaymentMethod:
			c = strings.Compare(a.PaymentMethod, b.PaymentMethod)
		default:
			switch {
			case a.Bucket.Less(b.Bucket):
				c = -1
			case b.Bucket.Less(a.Bucket):
				c = 1
			}
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func (s *Store) Find(_ context.Context, p pipeline.Pipeline) ([]core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []core.Transaction
	for _, t := range s.items {
		if p.Match.Matches(t) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b core.Transaction) int {
		switch p.Order {
		case pipeline.OrderAmountDesc:
			return cmp.Or(
				b.Amount.Decimal().Cmp(a.Amount.Decimal()),
				b.OccurredAt.Compare(a.OccurredAt),
				strings.Compare(a.ID, b.ID))
		case pipeline.OrderOccurredDesc:
			return cmp.Or(
				b.OccurredAt.Compare(a.OccurredAt),
				b.CreatedAt.Compare(a.CreatedAt),
				strings.Compare(a.ID, b.ID))
		default:
			return cmp.Or(a.OccurredAt.Compare(b.OccurredAt), strings.Compare(a.ID, b.ID))
		}
	})
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.budgets {
		if existing.OwnerID == b.OwnerID && existing.Year == b.Year && existing.Month == b.Month && existing.Category == b.Category {
			return core.ErrConflict
		}
	}
	s.budgets = append(s.budgets, b)
	return nil
}

func (s *Store) GetBudget(_ context.Context, ownerID, id string) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.budgetIndex(ownerID, id)
	if i < 0 {
		return core.Budget{}, storage.NotFound("budget", id)
	}
	return s.budgets[i], nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.budgetIndex(b.OwnerID, b.ID)
	if i < 0 {
		return storage.NotFound("budget", b.ID)
	}
	cur := &s.budgets[i]
	cur.MonthlyLimit, cur.IsActive, cur.UpdatedAt = b.MonthlyLimit, b.IsActive, b.UpdatedAt
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.budgetIndex(ownerID, id)
	if i < 0 {
		return storage.NotFound("budget", id)
	}
	s.budgets = slices.Delete(s.budgets, i, i+1)
	return nil
}

func (s *Store) ListBudgets(_ context.Context, ownerID string, year, month int) ([]core.Budget, error) {
	s.mu.RLock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.OwnerID != ownerID || (year != 0 && b.Year != year) || (month != 0 && b.Month != month) {
			continue
		}
		out = append(out, b)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b core.Budget) int {
		return cmp.Or(cmp.Compare(b.Year, a.Year), cmp.Compare(b.Month, a.Month), strings.Compare(a.Category, b.Category))
	})
	return out, nil
}

func (s *Store) budgetIndex(ownerID, id string) int {
	return slices.IndexFunc(s.budgets, func(b core.Budget) bool {
		return b.OwnerID == ownerID && b.ID == id
	})
}
