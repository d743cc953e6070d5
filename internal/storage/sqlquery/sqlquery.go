// Package sqlquery compiles pipelines and list queries into SQL shared by
// the SQLite and PostgreSQL adapters. Both schemas store amounts as integer
// cents and carry precomputed calendar and ISO-week columns, so bucketing
// never depends on engine date functions.
package sqlquery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/daterange"
	"fintrack/internal/pipeline"
	"fintrack/internal/storage"
)

// Dialect captures the engine differences the compiler cares about.
type Dialect interface {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string
	// Time converts an instant to the engine's column representation.
	Time(t time.Time) any
	// Sum renders an integer SUM over col.
	Sum(col string) string
	// TimeDest returns a scan destination that fills dst.
	TimeDest(dst *time.Time) any
}

// SQLite binds with ? and stores instants as unix microseconds.
type SQLite struct{}

func (SQLite) Placeholder(int) string { return "?" }
func (SQLite) Time(t time.Time) any   { return t.UTC().UnixMicro() }
func (SQLite) Sum(col string) string  { return "SUM(" + col + ")" }
func (SQLite) TimeDest(dst *time.Time) any {
	return unixMicro{dst: dst}
}

type unixMicro struct{ dst *time.Time }

func (u unixMicro) Scan(src any) error {
	v, ok := src.(int64)
	if !ok {
		return fmt.Errorf("scan time: unexpected %T", src)
	}
	*u.dst = time.UnixMicro(v).UTC()
	return nil
}

// Postgres binds with $n and stores instants as timestamptz.
type Postgres struct{}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (Postgres) Time(t time.Time) any     { return t.UTC() }
func (Postgres) Sum(col string) string    { return "SUM(" + col + ")::BIGINT" }
func (Postgres) TimeDest(dst *time.Time) any {
	return dst
}

// TransactionColumns is the select list scanned by adapters, in order.
const TransactionColumns = "id, owner_id, amount_cents, kind, category, payment_method, description, occurred_at, created_at, updated_at"

// BudgetColumns is the budget select list, in order.
const BudgetColumns = "id, owner_id, category, limit_cents, year, month, is_active, created_at, updated_at"

// Query is compiled SQL plus its bind arguments.
type Query struct {
	SQL  string
	Args []any
}

type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func (b *builder) query() Query { return Query{SQL: b.sb.String(), Args: b.args} }

// where writes the owner predicate first, then the optional ones.
func (b *builder) where(m pipeline.Match) {
	conds := []string{"owner_id = " + b.bind(m.OwnerID)}
	if m.Range != nil {
		conds = append(conds,
			"occurred_at >= "+b.bind(b.d.Time(m.Range.Start)),
			"occurred_at <= "+b.bind(b.d.Time(m.Range.End)))
	}
	if !m.Before.IsZero() {
		conds = append(conds, "occurred_at < "+b.bind(b.d.Time(m.Before)))
	}
	if m.Kind != "" {
		conds = append(conds, "kind = "+b.bind(string(m.Kind)))
	}
	b.sb.WriteString(" WHERE ")
	b.sb.WriteString(strings.Join(conds, " AND "))
}

func (b *builder) limit(n int) {
	if n > 0 {
		b.sb.WriteString(" LIMIT " + strconv.Itoa(n))
	}
}

// columns returns the SQL columns a grouping field expands to.
func columns(f pipeline.Field) []string {
	switch f {
	case pipeline.FieldKind:
		return []string{"kind"}
	case pipeline.FieldCategory:
		return []string{"category"}
	case pipeline.FieldPaymentMethod:
		return []string{"payment_method"}
	case pipeline.FieldDay:
		return []string{"occurred_year", "occurred_month", "occurred_day"}
	case pipeline.FieldWeek:
		return []string{"iso_year", "iso_week"}
	case pipeline.FieldMonth:
		return []string{"occurred_year", "occurred_month"}
	}
	return nil
}

// Aggregate compiles a grouped pipeline.
func Aggregate(d Dialect, p pipeline.Pipeline) (Query, error) {
	if err := p.Validate(); err != nil {
		return Query{}, err
	}
	if !p.Grouped() {
		return Query{}, fmt.Errorf("%w: pipeline %s has no group", core.ErrInvalidArgument, p.Name)
	}

	var groupCols, bucketCols, otherCols []string
	for _, f := range p.Group {
		cols := columns(f)
		groupCols = append(groupCols, cols...)
		if f.IsBucket() {
			bucketCols = append(bucketCols, cols...)
		} else {
			otherCols = append(otherCols, cols...)
		}
	}

	b := &builder{d: d}
	group := strings.Join(groupCols, ", ")
	fmt.Fprintf(&b.sb, "SELECT %s, %s AS total, COUNT(*) AS cnt, MIN(amount_cents) AS min_cents, MAX(amount_cents) AS max_cents FROM transactions",
		group, d.Sum("amount_cents"))
	b.where(p.Match)
	b.sb.WriteString(" GROUP BY " + group)

	switch p.Order {
	case pipeline.OrderTotalDesc:
		b.sb.WriteString(" ORDER BY total DESC, " + ascending(groupCols))
	case pipeline.OrderBucketAsc:
		b.sb.WriteString(" ORDER BY " + ascending(append(bucketCols, otherCols...)))
	default:
		b.sb.WriteString(" ORDER BY " + ascending(groupCols))
	}
	b.limit(p.Limit)
	return b.query(), nil
}

// Find compiles an ungrouped pipeline.
func Find(d Dialect, p pipeline.Pipeline) (Query, error) {
	if err := p.Validate(); err != nil {
		return Query{}, err
	}
	if p.Grouped() {
		return Query{}, fmt.Errorf("%w: pipeline %s is grouped", core.ErrInvalidArgument, p.Name)
	}
	b := &builder{d: d}
	b.sb.WriteString("SELECT " + TransactionColumns + " FROM transactions")
	b.where(p.Match)
	switch p.Order {
	case pipeline.OrderAmountDesc:
		b.sb.WriteString(" ORDER BY amount_cents DESC, occurred_at DESC, id ASC")
	case pipeline.OrderOccurredDesc:
		b.sb.WriteString(" ORDER BY occurred_at DESC, created_at DESC, id ASC")
	default:
		b.sb.WriteString(" ORDER BY occurred_at ASC, id ASC")
	}
	b.limit(p.Limit)
	return b.query(), nil
}

var sortColumns = map[storage.SortField]string{
	storage.SortByDate:     "occurred_at",
	storage.SortByAmount:   "amount_cents",
	storage.SortByCategory: "category",
	storage.SortByType:     "kind",
}

// List compiles a page query and its matching count query. q must be
// normalized.
func List(d Dialect, q storage.ListQuery) (page Query, count Query) {
	pb := &builder{d: d}
	pb.sb.WriteString("SELECT " + TransactionColumns + " FROM transactions")
	listWhere(pb, q)
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	fmt.Fprintf(&pb.sb, " ORDER BY %s %s, id ASC LIMIT %s OFFSET %s",
		sortColumns[q.SortBy], dir, pb.bind(q.Limit), pb.bind(q.Offset()))

	cb := &builder{d: d}
	cb.sb.WriteString("SELECT COUNT(*) FROM transactions")
	listWhere(cb, q)
	return pb.query(), cb.query()
}

func listWhere(b *builder, q storage.ListQuery) {
	conds := []string{"owner_id = " + b.bind(q.OwnerID)}
	if q.Kind != "" {
		conds = append(conds, "kind = "+b.bind(string(q.Kind)))
	}
	if q.Category != "" {
		conds = append(conds, "category = "+b.bind(q.Category))
	}
	if q.PaymentMethod != "" {
		conds = append(conds, "payment_method = "+b.bind(q.PaymentMethod))
	}
	if !q.From.IsZero() {
		conds = append(conds, "occurred_at >= "+b.bind(b.d.Time(q.From)))
	}
	if !q.To.IsZero() {
		conds = append(conds, "occurred_at <= "+b.bind(b.d.Time(q.To)))
	}
	if q.Search != "" {
		conds = append(conds, `LOWER(description) LIKE `+b.bind(likePattern(q.Search))+` ESCAPE '\'`)
	}
	b.sb.WriteString(" WHERE ")
	b.sb.WriteString(strings.Join(conds, " AND "))
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

func ascending(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c + " ASC"
	}
	return strings.Join(out, ", ")
}

// Scanner is satisfied by *sql.Row, *sql.Rows and pgx.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanRow reads one aggregate row laid out by Aggregate for group.
func ScanRow(s Scanner, group []pipeline.Field) (pipeline.Row, error) {
	var (
		row                      pipeline.Row
		kind                     string
		year, month, day, week   int
		total, count, minC, maxC int64
		dest                     []any
	)
	for _, f := range group {
		switch f {
		case pipeline.FieldKind:
			dest = append(dest, &kind)
		case pipeline.FieldCategory:
			dest = append(dest, &row.Category)
		case pipeline.FieldPaymentMethod:
			dest = append(dest, &row.PaymentMethod)
		case pipeline.FieldDay:
			dest = append(dest, &year, &month, &day)
		case pipeline.FieldWeek:
			dest = append(dest, &year, &week)
		case pipeline.FieldMonth:
			dest = append(dest, &year, &month)
		}
	}
	dest = append(dest, &total, &count, &minC, &maxC)
	if err := s.Scan(dest...); err != nil {
		return pipeline.Row{}, err
	}

	row.Kind = core.Kind(kind)
	for _, f := range group {
		if f.IsBucket() {
			row.Bucket = bucket(f, year, month, day, week)
		}
	}
	row.Total = decimal.New(total, -2)
	row.Count = count
	row.Min = decimal.New(minC, -2)
	row.Max = decimal.New(maxC, -2)
	return row, nil
}

func bucket(f pipeline.Field, year, month, day, week int) pipeline.Bucket {
	switch f {
	case pipeline.FieldDay:
		return pipeline.Bucket{Granularity: daterange.Day, Year: year, Month: month, Day: day}
	case pipeline.FieldWeek:
		return pipeline.Bucket{Granularity: daterange.Week, Year: year, Week: week}
	default:
		return pipeline.Bucket{Granularity: daterange.Month, Year: year, Month: month}
	}
}

// Calendar holds the precomputed bucket columns of an occurrence instant.
type Calendar struct {
	Year, Month, Day int
	ISOYear, ISOWeek int
}

// CalendarOf derives bucket columns from t in UTC.
func CalendarOf(t time.Time) Calendar {
	t = t.UTC()
	iy, iw := t.ISOWeek()
	return Calendar{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), ISOYear: iy, ISOWeek: iw}
}
