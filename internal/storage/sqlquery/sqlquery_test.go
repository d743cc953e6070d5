package sqlquery

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/daterange"
	"fintrack/internal/pipeline"
	"fintrack/internal/storage"
)

var iv = daterange.Interval{
	Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 1, 31, 23, 59, 59, 999999000, time.UTC),
}

func TestOwnerPredicateFirst(t *testing.T) {
	pipelines := []pipeline.Pipeline{
		pipeline.KPITotals("u1", iv),
		pipeline.CategoryBreakdown("u1", iv, core.KindDebit),
		pipeline.Timeline("u1", iv, daterange.Week),
		pipeline.PaymentMethods("u1", iv),
		pipeline.MonthlySavings("u1", iv),
		pipeline.OpeningBalance("u1", iv.Start),
		pipeline.LifetimeTotals("u1"),
	}
	for _, p := range pipelines {
		for _, d := range []Dialect{SQLite{}, Postgres{}} {
			q, err := Aggregate(d, p)
			require.NoError(t, err, p.Name)
			where := q.SQL[strings.Index(q.SQL, " WHERE ")+len(" WHERE "):]
			assert.True(t, strings.HasPrefix(where, "owner_id = "), "%s: %s", p.Name, q.SQL)
			assert.Equal(t, "u1", q.Args[0])
		}
	}

	for _, p := range []pipeline.Pipeline{pipeline.HighestExpense("u1", iv), pipeline.RecentTransactions("u1", 10)} {
		q, err := Find(SQLite{}, p)
		require.NoError(t, err)
		assert.Contains(t, q.SQL, " WHERE owner_id = ?")
		assert.Equal(t, "u1", q.Args[0])
	}
}

func TestAggregateRejectsUnscoped(t *testing.T) {
	_, err := Aggregate(SQLite{}, pipeline.KPITotals("", iv))
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	_, err = Find(Postgres{}, pipeline.RecentTransactions("", 5))
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestAggregateShape(t *testing.T) {
	q, err := Aggregate(Postgres{}, pipeline.Timeline("u1", iv, daterange.Week))
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT iso_year, iso_week, kind, SUM(amount_cents)::BIGINT AS total, COUNT(*) AS cnt, MIN(amount_cents) AS min_cents, MAX(amount_cents) AS max_cents"+
			" FROM transactions WHERE owner_id = $1 AND occurred_at >= $2 AND occurred_at <= $3"+
			" GROUP BY iso_year, iso_week, kind ORDER BY iso_year ASC, iso_week ASC, kind ASC",
		q.SQL)
	require.Len(t, q.Args, 3)
	assert.Equal(t, iv.Start, q.Args[1])

	q, err = Aggregate(SQLite{}, pipeline.CategoryBreakdown("u1", iv, core.KindDebit))
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "AND kind = ?")
	assert.Contains(t, q.SQL, "ORDER BY total DESC, category ASC")
	assert.Equal(t, iv.Start.UnixMicro(), q.Args[1])
	assert.Equal(t, "debit", q.Args[3])

	_, err = Aggregate(SQLite{}, pipeline.RecentTransactions("u1", 3))
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "ungrouped pipelines go through Find")
}

func TestFindShape(t *testing.T) {
	q, err := Find(SQLite{}, pipeline.HighestExpense("u1", iv))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(q.SQL, "ORDER BY amount_cents DESC, occurred_at DESC, id ASC LIMIT 1"), q.SQL)

	q, err = Find(SQLite{}, pipeline.RecentTransactions("u1", 10))
	require.NoError(t, err)
	assert.NotContains(t, q.SQL, "occurred_at >=")
	assert.True(t, strings.HasSuffix(q.SQL, "LIMIT 10"))
}

func TestList(t *testing.T) {
	lq, err := storage.ListQuery{
		OwnerID:    "u1",
		Kind:       core.KindCredit,
		Search:     "50%_off",
		SortBy:     storage.SortByAmount,
		Descending: true,
		Page:       3,
		Limit:      10,
	}.Normalize()
	require.NoError(t, err)

	page, count := List(Postgres{}, lq)
	assert.Equal(t,
		`SELECT `+TransactionColumns+` FROM transactions WHERE owner_id = $1 AND kind = $2 AND LOWER(description) LIKE $3 ESCAPE '\' ORDER BY amount_cents DESC, id ASC LIMIT $4 OFFSET $5`,
		page.SQL)
	assert.Equal(t, []any{"u1", "credit", `%50\%\_off%`, 10, 20}, page.Args)
	assert.Equal(t, `SELECT COUNT(*) FROM transactions WHERE owner_id = $1 AND kind = $2 AND LOWER(description) LIKE $3 ESCAPE '\'`, count.SQL)
	assert.Len(t, count.Args, 3)
}

func TestCalendarOf(t *testing.T) {
	c := CalendarOf(time.Date(2024, 12, 30, 23, 0, 0, 0, time.FixedZone("X", -2*3600)))
	// 2024-12-31 01:00 UTC
	assert.Equal(t, Calendar{Year: 2024, Month: 12, Day: 31, ISOYear: 2025, ISOWeek: 1}, c)
}
