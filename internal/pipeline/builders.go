package pipeline

import (
	"time"

	"fintrack/internal/core"
	"fintrack/internal/daterange"
)

// BucketField maps a granularity to its grouping field.
func BucketField(g daterange.Granularity) Field {
	switch g {
	case daterange.Week:
		return FieldWeek
	case daterange.Month:
		return FieldMonth
	default:
		return FieldDay
	}
}

func inRange(ownerID string, iv daterange.Interval) Match {
	return Match{OwnerID: ownerID, Range: &iv}
}

// KPITotals groups the interval by kind (sum, count, min, max).
func KPITotals(ownerID string, iv daterange.Interval) Pipeline {
	return Pipeline{
		Name:  "kpi_totals",
		Match: inRange(ownerID, iv),
		Group: []Field{FieldKind},
	}
}

// CategoryBreakdown groups by category, largest total first. An empty kind
// includes both directions.
func CategoryBreakdown(ownerID string, iv daterange.Interval, kind core.Kind) Pipeline {
	m := inRange(ownerID, iv)
	m.Kind = kind
	return Pipeline{
		Name:  "category_breakdown",
		Match: m,
		Group: []Field{FieldCategory},
		Order: OrderTotalDesc,
	}
}

// Timeline groups by time bucket and kind in chronological order.
func Timeline(ownerID string, iv daterange.Interval, g daterange.Granularity) Pipeline {
	return Pipeline{
		Name:  "timeline",
		Match: inRange(ownerID, iv),
		Group: []Field{BucketField(g), FieldKind},
		Order: OrderBucketAsc,
	}
}

// PaymentMethods groups by payment method, largest total first.
func PaymentMethods(ownerID string, iv daterange.Interval) Pipeline {
	return Pipeline{
		Name:  "payment_methods",
		Match: inRange(ownerID, iv),
		Group: []Field{FieldPaymentMethod},
		Order: OrderTotalDesc,
	}
}

// MonthlySavings groups by calendar month and kind.
func MonthlySavings(ownerID string, iv daterange.Interval) Pipeline {
	return Pipeline{
		Name:  "monthly_savings",
		Match: inRange(ownerID, iv),
		Group: []Field{FieldMonth, FieldKind},
		Order: OrderBucketAsc,
	}
}

// HighestExpense returns the single largest debit of the interval.
func HighestExpense(ownerID string, iv daterange.Interval) Pipeline {
	m := inRange(ownerID, iv)
	m.Kind = core.KindDebit
	return Pipeline{
		Name:  "highest_expense",
		Match: m,
		Order: OrderAmountDesc,
		Limit: 1,
	}
}

// RecentTransactions returns the newest n transactions regardless of period.
func RecentTransactions(ownerID string, n int) Pipeline {
	return Pipeline{
		Name:  "recent_transactions",
		Match: Match{OwnerID: ownerID},
		Order: OrderOccurredDesc,
		Limit: n,
	}
}

// LifetimeTotals groups every transaction of the owner by kind.
func LifetimeTotals(ownerID string) Pipeline {
	return Pipeline{
		Name:  "lifetime_totals",
		Match: Match{OwnerID: ownerID},
		Group: []Field{FieldKind},
	}
}

// OpeningBalance groups by kind everything strictly before the instant.
func OpeningBalance(ownerID string, before time.Time) Pipeline {
	return Pipeline{
		Name:  "opening_balance",
		Match: Match{OwnerID: ownerID, Before: before},
		Group: []Field{FieldKind},
	}
}

// BudgetSpending groups a calendar month's debits by category.
func BudgetSpending(ownerID string, year, month int) Pipeline {
	start, end := core.MonthBounds(year, month)
	m := inRange(ownerID, daterange.Interval{Start: start, End: end})
	m.Kind = core.KindDebit
	return Pipeline{
		Name:  "budget_spending",
		Match: m,
		Group: []Field{FieldCategory},
		Order: OrderTotalDesc,
	}
}
