package sqlquery

import (
	"strings"

	"fintrack/internal/core"
)

func placeholders(d Dialect, from, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = d.Placeholder(from + i)
	}
	return strings.Join(out, ", ")
}

const insertTransactionColumns = "id, owner_id, amount_cents, kind, category, payment_method, description, occurred_at, occurred_year, occurred_month, occurred_day, iso_year, iso_week, created_at, updated_at"

// InsertTransaction binds every column including the bucket columns.
func InsertTransaction(d Dialect, t core.Transaction) Query {
	c := CalendarOf(t.OccurredAt)
	return Query{
		SQL: "INSERT INTO transactions (" + insertTransactionColumns + ") VALUES (" + placeholders(d, 1, 15) + ")",
		Args: []any{
			t.ID, t.OwnerID, t.Amount.Cents(), string(t.Kind), t.Category, t.PaymentMethod, t.Description,
			d.Time(t.OccurredAt), c.Year, c.Month, c.Day, c.ISOYear, c.ISOWeek,
			d.Time(t.CreatedAt), d.Time(t.UpdatedAt),
		},
	}
}

// UpdateTransaction rewrites the mutable columns of a record owned by
// t.OwnerID. Zero affected rows means not found.
func UpdateTransaction(d Dialect, t core.Transaction) Query {
	b := &builder{d: d}
	c := CalendarOf(t.OccurredAt)
	b.sb.WriteString("UPDATE transactions SET ")
	sets := []string{
		"amount_cents = " + b.bind(t.Amount.Cents()),
		"kind = " + b.bind(string(t.Kind)),
		"category = " + b.bind(t.Category),
		"payment_method = " + b.bind(t.PaymentMethod),
		"description = " + b.bind(t.Description),
		"occurred_at = " + b.bind(d.Time(t.OccurredAt)),
		"occurred_year = " + b.bind(c.Year),
		"occurred_month = " + b.bind(c.Month),
		"occurred_day = " + b.bind(c.Day),
		"iso_year = " + b.bind(c.ISOYear),
		"iso_week = " + b.bind(c.ISOWeek),
		"updated_at = " + b.bind(d.Time(t.UpdatedAt)),
	}
	b.sb.WriteString(strings.Join(sets, ", "))
	b.sb.WriteString(" WHERE owner_id = " + b.bind(t.OwnerID) + " AND id = " + b.bind(t.ID))
	return b.query()
}

func GetTransaction(d Dialect, ownerID, id string) Query {
	return Query{
		SQL:  "SELECT " + TransactionColumns + " FROM transactions WHERE owner_id = " + d.Placeholder(1) + " AND id = " + d.Placeholder(2),
		Args: []any{ownerID, id},
	}
}

func DeleteTransaction(d Dialect, ownerID, id string) Query {
	return Query{
		SQL:  "DELETE FROM transactions WHERE owner_id = " + d.Placeholder(1) + " AND id = " + d.Placeholder(2),
		Args: []any{ownerID, id},
	}
}

// ScanTransaction reads a row laid out as TransactionColumns.
func ScanTransaction(s Scanner, d Dialect) (core.Transaction, error) {
	var (
		t     core.Transaction
		cents int64
		kind  string
	)
	err := s.Scan(&t.ID, &t.OwnerID, &cents, &kind, &t.Category, &t.PaymentMethod, &t.Description,
		d.TimeDest(&t.OccurredAt), d.TimeDest(&t.CreatedAt), d.TimeDest(&t.UpdatedAt))
	if err != nil {
		return core.Transaction{}, err
	}
	t.Amount = core.MoneyFromCents(cents)
	t.Kind = core.Kind(kind)
	t.OccurredAt, t.CreatedAt, t.UpdatedAt = t.OccurredAt.UTC(), t.CreatedAt.UTC(), t.UpdatedAt.UTC()
	return t, nil
}

func InsertBudget(d Dialect, b core.Budget) Query {
	return Query{
		SQL: "INSERT INTO budgets (" + BudgetColumns + ") VALUES (" + placeholders(d, 1, 9) + ")",
		Args: []any{
			b.ID, b.OwnerID, b.Category, b.MonthlyLimit.Cents(), b.Year, b.Month, b.IsActive,
			d.Time(b.CreatedAt), d.Time(b.UpdatedAt),
		},
	}
}

func UpdateBudget(d Dialect, b core.Budget) Query {
	return Query{
		SQL: "UPDATE budgets SET limit_cents = " + d.Placeholder(1) + ", is_active = " + d.Placeholder(2) +
			", updated_at = " + d.Placeholder(3) + " WHERE owner_id = " + d.Placeholder(4) + " AND id = " + d.Placeholder(5),
		Args: []any{b.MonthlyLimit.Cents(), b.IsActive, d.Time(b.UpdatedAt), b.OwnerID, b.ID},
	}
}

func GetBudget(d Dialect, ownerID, id string) Query {
	return Query{
		SQL:  "SELECT " + BudgetColumns + " FROM budgets WHERE owner_id = " + d.Placeholder(1) + " AND id = " + d.Placeholder(2),
		Args: []any{ownerID, id},
	}
}

func DeleteBudget(d Dialect, ownerID, id string) Query {
	return Query{
		SQL:  "DELETE FROM budgets WHERE owner_id = " + d.Placeholder(1) + " AND id = " + d.Placeholder(2),
		Args: []any{ownerID, id},
	}
}

// ListBudgets filters by year and month when non-zero.
func ListBudgets(d Dialect, ownerID string, year, month int) Query {
	b := &builder{d: d}
	b.sb.WriteString("SELECT " + BudgetColumns + " FROM budgets WHERE owner_id = " + b.bind(ownerID))
	if year != 0 {
		b.sb.WriteString(" AND year = " + b.bind(year))
	}
	if month != 0 {
		b.sb.WriteString(" AND month = " + b.bind(month))
	}
	b.sb.WriteString(" ORDER BY year DESC, month DESC, category ASC")
	return b.query()
}

// ScanBudget reads a row laid out as BudgetColumns.
func ScanBudget(s Scanner, d Dialect) (core.Budget, error) {
	var (
		b     core.Budget
		cents int64
	)
	err := s.Scan(&b.ID, &b.OwnerID, &b.Category, &cents, &b.Year, &b.Month, &b.IsActive,
		d.TimeDest(&b.CreatedAt), d.TimeDest(&b.UpdatedAt))
	if err != nil {
		return core.Budget{}, err
	}
	b.MonthlyLimit = core.MoneyFromCents(cents)
	b.CreatedAt, b.UpdatedAt = b.CreatedAt.UTC(), b.UpdatedAt.UTC()
	return b, nil
}
