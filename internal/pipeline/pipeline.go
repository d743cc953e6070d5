// Package pipeline describes dashboard aggregations declaratively. A
// Pipeline names its match predicates, grouping keys, ordering and limit;
// store adapters translate it to their own query language and return Rows.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/daterange"
)

// Field is a grouping key.
type Field string

const (
	FieldKind          Field = "kind"
	FieldCategory      Field = "category"
	FieldPaymentMethod Field = "payment_method"
	// FieldDay groups by calendar (year, month, day).
	FieldDay Field = "day"
	// FieldWeek groups by (ISO year, ISO week).
	FieldWeek Field = "week"
	// FieldMonth groups by calendar (year, month).
	FieldMonth Field = "month"
)

// IsBucket reports whether f is a time bucket.
func (f Field) IsBucket() bool {
	return f == FieldDay || f == FieldWeek || f == FieldMonth
}

// Order selects the result ordering.
type Order int

const (
	OrderNone Order = iota
	// OrderTotalDesc sorts grouped rows by summed amount, largest first.
	OrderTotalDesc
	// OrderBucketAsc sorts grouped rows chronologically.
	OrderBucketAsc
	// OrderAmountDesc sorts documents by amount, largest first.
	OrderAmountDesc
	// OrderOccurredDesc sorts documents by occurrence date, newest first.
	OrderOccurredDesc
)

// Match holds the predicates of a pipeline. OwnerID is mandatory and is
// always the first predicate an adapter applies.
type Match struct {
	OwnerID string
	// Range restricts occurrence dates to an inclusive interval.
	Range *daterange.Interval
	// Before restricts occurrence dates to strictly earlier instants.
	Before time.Time
	// Kind restricts to one direction. Empty means both.
	Kind core.Kind
}

// Pipeline is a declarative aggregation. A pipeline with no Group fields
// returns documents instead of rows.
type Pipeline struct {
	Name  string
	Match Match
	Group []Field
	Order Order
	Limit int
}

// Grouped reports whether the pipeline produces Rows.
func (p Pipeline) Grouped() bool { return len(p.Group) > 0 }

// Validate rejects pipelines that are not scoped to an owner or that mix
// document and row orderings.
func (p Pipeline) Validate() error {
	if strings.TrimSpace(p.Match.OwnerID) == "" {
		return fmt.Errorf("pipeline %s: %w", p.Name, core.ErrMissingOwner)
	}
	if !p.Match.Kind.Valid() && p.Match.Kind != "" {
		return fmt.Errorf("pipeline %s: %w", p.Name, core.ErrInvalidKind)
	}
	switch p.Order {
	case OrderTotalDesc, OrderBucketAsc:
		if !p.Grouped() {
			return fmt.Errorf("%w: pipeline %s orders rows but has no group", core.ErrInvalidArgument, p.Name)
		}
	case OrderAmountDesc, OrderOccurredDesc:
		if p.Grouped() {
			return fmt.Errorf("%w: pipeline %s orders documents but is grouped", core.ErrInvalidArgument, p.Name)
		}
	}
	buckets := 0
	for _, f := range p.Group {
		if f.IsBucket() {
			buckets++
		}
	}
	if buckets > 1 {
		return fmt.Errorf("%w: pipeline %s groups by more than one bucket", core.ErrInvalidArgument, p.Name)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: pipeline %s has negative limit", core.ErrInvalidArgument, p.Name)
	}
	return nil
}

// Matches evaluates the predicates against a transaction in memory.
func (m Match) Matches(t core.Transaction) bool {
	if t.OwnerID != m.OwnerID {
		return false
	}
	if m.Range != nil && !m.Range.Contains(t.OccurredAt) {
		return false
	}
	if !m.Before.IsZero() && !t.OccurredAt.Before(m.Before) {
		return false
	}
	if m.Kind != "" && t.Kind != m.Kind {
		return false
	}
	return true
}

// Bucket identifies a time bucket. Unused components are zero.
type Bucket struct {
	Granularity daterange.Granularity `json:"granularity,omitempty"`
	Year        int                   `json:"year,omitempty"`
	Month       int                   `json:"month,omitempty"`
	Day         int                   `json:"day,omitempty"`
	Week        int                   `json:"week,omitempty"`
}

// BucketOf places t (in UTC) into the bucket of the given field.
func BucketOf(t time.Time, f Field) Bucket {
	t = t.UTC()
	switch f {
	case FieldDay:
		return Bucket{Granularity: daterange.Day, Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
	case FieldWeek:
		y, w := t.ISOWeek()
		return Bucket{Granularity: daterange.Week, Year: y, Week: w}
	case FieldMonth:
		return Bucket{Granularity: daterange.Month, Year: t.Year(), Month: int(t.Month())}
	}
	return Bucket{}
}

// Key renders the bucket label: 2025-01-05, 2025-W03 or 2025-01.
func (b Bucket) Key() string {
	switch b.Granularity {
	case daterange.Day:
		return fmt.Sprintf("%04d-%02d-%02d", b.Year, b.Month, b.Day)
	case daterange.Week:
		return fmt.Sprintf("%04d-W%02d", b.Year, b.Week)
	case daterange.Month:
		return fmt.Sprintf("%04d-%02d", b.Year, b.Month)
	}
	return ""
}

// Less orders buckets chronologically.
func (b Bucket) Less(o Bucket) bool {
	if b.Year != o.Year {
		return b.Year < o.Year
	}
	if b.Month != o.Month {
		return b.Month < o.Month
	}
	if b.Week != o.Week {
		return b.Week < o.Week
	}
	return b.Day < o.Day
}

// Row is one group of an aggregation. Only the fields named in the
// pipeline's Group are populated.
type Row struct {
	Kind          core.Kind
	Category      string
	PaymentMethod string
	Bucket        Bucket

	Total decimal.Decimal
	Count int64
	Min   decimal.Decimal
	Max   decimal.Decimal
}

// Avg is Total / Count, or zero for an empty group.
func (r Row) Avg() decimal.Decimal {
	if r.Count == 0 {
		return decimal.Zero
	}
	return r.Total.Div(decimal.NewFromInt(r.Count))
}
