package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/daterange"
	"fintrack/internal/pipeline"
	"fintrack/internal/storage"
)

const (
	recentTransactionsLimit = 10
	topCategoriesLimit      = 5
	noCategory              = "N/A"
)

var (
	hundred     = decimal.NewFromInt(100)
	daysInMonth = decimal.NewFromInt(30)
)

// Trend is the direction of a period-over-period change.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// KPIValue compares a metric between the current and previous periods.
type KPIValue struct {
	Current       core.Money `json:"current"`
	Previous      core.Money `json:"previous"`
	ChangePercent float64    `json:"change_percent"`
	Trend         Trend      `json:"trend"`
}

type HighestCategory struct {
	Current string     `json:"current"`
	Amount  core.Money `json:"amount"`
}

type KPISet struct {
	TotalCredits           KPIValue        `json:"total_credits"`
	TotalDebits            KPIValue        `json:"total_debits"`
	NetBalance             KPIValue        `json:"net_balance"`
	TotalTransactions      KPIValue        `json:"total_transactions"`
	HighestExpenseCategory HighestCategory `json:"highest_expense_category"`
	AverageMonthlyExpense  KPIValue        `json:"average_monthly_expense"`
	AvailableBalance       core.Money      `json:"available_balance"`
}

type TimelinePoint struct {
	Date    string     `json:"date"`
	Credits core.Money `json:"credits"`
	Debits  core.Money `json:"debits"`
	Balance core.Money `json:"balance"`
}

type CategoryAmount struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
	Count    int64      `json:"count"`
}

// DistributionSlice is a category's share of total debits, in percent.
type DistributionSlice struct {
	Name   string     `json:"name"`
	Value  float64    `json:"value"`
	Amount core.Money `json:"amount"`
}

type PaymentMethodAmount struct {
	PaymentMethod string     `json:"payment_method"`
	Amount        core.Money `json:"amount"`
	Count         int64      `json:"count"`
}

type Charts struct {
	CreditVsDebit       []TimelinePoint       `json:"credit_vs_debit"`
	CategoryBreakdown   []CategoryAmount      `json:"category_breakdown"`
	ExpenseDistribution []DistributionSlice   `json:"expense_distribution"`
	PaymentMethods      []PaymentMethodAmount `json:"payment_methods"`
}

type MonthlySaving struct {
	Month   string     `json:"month"`
	Credits core.Money `json:"credits"`
	Debits  core.Money `json:"debits"`
	Savings core.Money `json:"savings"`
}

type Widgets struct {
	RecentTransactions []core.Transaction `json:"recent_transactions"`
	TopCategories      []CategoryAmount   `json:"top_categories"`
	HighestExpense     *core.Transaction  `json:"highest_expense"`
	MonthlySavings     []MonthlySaving    `json:"monthly_savings"`
}

// DashboardService turns pipeline results into KPIs, chart series and
// widgets. It holds no state besides its collaborators.
type DashboardService struct {
	store    storage.AnalyticsStore
	resolver *daterange.Resolver
	logger   *slog.Logger
}

func NewDashboardService(store storage.AnalyticsStore, resolver *daterange.Resolver, logger *slog.Logger) *DashboardService {
	if resolver == nil {
		resolver = daterange.NewResolver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{store: store, resolver: resolver, logger: logger}
}

// Resolver exposes the date range resolver used by the service.
func (s *DashboardService) Resolver() *daterange.Resolver { return s.resolver }

type periodStats struct {
	credits, debits decimal.Decimal
	count           int64
	highest         HighestCategory
	avgMonthly      decimal.Decimal
}

// GetKPIs computes the headline figures of the period and compares them
// with the preceding period of equal length.
func (s *DashboardService) GetKPIs(ctx context.Context, ownerID string, filter daterange.Filter, start, end *time.Time) (KPISet, error) {
	current, err := s.interval(ownerID, filter, start, end)
	if err != nil {
		return KPISet{}, err
	}
	previous := daterange.PreviousOf(current)

	var (
		cur, prev periodStats
		lifetime  decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cur, err = s.periodStats(gctx, ownerID, current)
		return err
	})
	g.Go(func() (err error) {
		prev, err = s.periodStats(gctx, ownerID, previous)
		return err
	})
	g.Go(func() (err error) {
		lifetime, err = s.balance(gctx, pipeline.LifetimeTotals(ownerID))
		return err
	})
	if err := g.Wait(); err != nil {
		return KPISet{}, s.fail(ctx, "kpis", ownerID, err)
	}

	return KPISet{
		TotalCredits:           compare(cur.credits, prev.credits),
		TotalDebits:            compare(cur.debits, prev.debits),
		NetBalance:             compare(cur.credits.Sub(cur.debits), prev.credits.Sub(prev.debits)),
		TotalTransactions:      compare(decimal.NewFromInt(cur.count), decimal.NewFromInt(prev.count)),
		HighestExpenseCategory: cur.highest,
		AverageMonthlyExpense:  compare(cur.avgMonthly, prev.avgMonthly),
		AvailableBalance:       core.NewMoney(lifetime).Rounded(),
	}, nil
}

func (s *DashboardService) periodStats(ctx context.Context, ownerID string, iv daterange.Interval) (periodStats, error) {
	var st periodStats
	rows, err := s.store.Aggregate(ctx, pipeline.KPITotals(ownerID, iv))
	if err != nil {
		return st, err
	}
	for _, r := range rows {
		switch r.Kind {
		case core.KindCredit:
			st.credits = r.Total
		case core.KindDebit:
			st.debits = r.Total
		}
		st.count += r.Count
	}

	top := pipeline.CategoryBreakdown(ownerID, iv, core.KindDebit)
	top.Limit = 1
	cats, err := s.store.Aggregate(ctx, top)
	if err != nil {
		return st, err
	}
	st.highest = HighestCategory{Current: noCategory, Amount: core.Zero}
	if len(cats) > 0 {
		st.highest = HighestCategory{Current: cats[0].Category, Amount: core.NewMoney(cats[0].Total).Rounded()}
	}

	st.avgMonthly = st.debits
	if days := iv.Days() + 1; days > 0 {
		st.avgMonthly = st.debits.Mul(daysInMonth).Div(decimal.NewFromInt(int64(days)))
	}
	return st, nil
}

// balance folds a by-kind aggregation into credits minus debits.
func (s *DashboardService) balance(ctx context.Context, p pipeline.Pipeline) (decimal.Decimal, error) {
	rows, err := s.store.Aggregate(ctx, p)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rows {
		if r.Kind == core.KindDebit {
			total = total.Sub(r.Total)
		} else {
			total = total.Add(r.Total)
		}
	}
	return total, nil
}

// GetCharts returns the chart series of the period.
func (s *DashboardService) GetCharts(ctx context.Context, ownerID string, filter daterange.Filter, start, end *time.Time) (Charts, error) {
	iv, err := s.interval(ownerID, filter, start, end)
	if err != nil {
		return Charts{}, err
	}
	granularity := daterange.GranularityOf(filter)

	var (
		timeline, categories, methods []pipeline.Row
		opening                       decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		timeline, err = s.store.Aggregate(gctx, pipeline.Timeline(ownerID, iv, granularity))
		return err
	})
	g.Go(func() (err error) {
		opening, err = s.balance(gctx, pipeline.OpeningBalance(ownerID, iv.Start))
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.store.Aggregate(gctx, pipeline.CategoryBreakdown(ownerID, iv, core.KindDebit))
		return err
	})
	g.Go(func() (err error) {
		methods, err = s.store.Aggregate(gctx, pipeline.PaymentMethods(ownerID, iv))
		return err
	})
	if err := g.Wait(); err != nil {
		return Charts{}, s.fail(ctx, "charts", ownerID, err)
	}

	return Charts{
		CreditVsDebit:       runningBalance(timeline, opening),
		CategoryBreakdown:   categoryAmounts(categories),
		ExpenseDistribution: distribution(categories),
		PaymentMethods:      paymentMethods(methods),
	}, nil
}

// GetWidgets returns the widget panel. Recent transactions ignore the
// period; everything else is scoped to it.
func (s *DashboardService) GetWidgets(ctx context.Context, ownerID string, filter daterange.Filter, start, end *time.Time) (Widgets, error) {
	iv, err := s.interval(ownerID, filter, start, end)
	if err != nil {
		return Widgets{}, err
	}

	var (
		recent, highest []core.Transaction
		top, savings    []pipeline.Row
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		recent, err = s.store.Find(gctx, pipeline.RecentTransactions(ownerID, recentTransactionsLimit))
		return err
	})
	g.Go(func() (err error) {
		p := pipeline.CategoryBreakdown(ownerID, iv, "")
		p.Limit = topCategoriesLimit
		top, err = s.store.Aggregate(gctx, p)
		return err
	})
	g.Go(func() (err error) {
		highest, err = s.store.Find(gctx, pipeline.HighestExpense(ownerID, iv))
		return err
	})
	g.Go(func() (err error) {
		savings, err = s.store.Aggregate(gctx, pipeline.MonthlySavings(ownerID, iv))
		return err
	})
	if err := g.Wait(); err != nil {
		return Widgets{}, s.fail(ctx, "widgets", ownerID, err)
	}

	w := Widgets{
		RecentTransactions: recent,
		TopCategories:      categoryAmounts(top),
		MonthlySavings:     monthlySavings(savings),
	}
	if w.RecentTransactions == nil {
		w.RecentTransactions = []core.Transaction{}
	}
	if len(highest) > 0 {
		w.HighestExpense = &highest[0]
	}
	return w, nil
}

func (s *DashboardService) interval(ownerID string, filter daterange.Filter, start, end *time.Time) (daterange.Interval, error) {
	if ownerID == "" {
		return daterange.Interval{}, core.ErrMissingOwner
	}
	return s.resolver.Resolve(filter, start, end)
}

// fail logs a failed computation and classifies it. Anything that is not an
// argument error is reported as the store being unavailable.
func (s *DashboardService) fail(ctx context.Context, op, ownerID string, err error) error {
	if errors.Is(err, core.ErrInvalidArgument) {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.ErrorContext(ctx, "dashboard query failed", "operation", op, "user_id", ownerID, "error", err)
	if errors.Is(err, core.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return storage.Unavailable(op, err)
}

// compare builds a KPI value. A zero previous value yields 100% growth for
// a positive current value and 0% otherwise.
func compare(current, previous decimal.Decimal) KPIValue {
	var change decimal.Decimal
	switch {
	case previous.IsZero() && current.IsPositive():
		change = hundred
	case previous.IsZero():
		change = decimal.Zero
	default:
		change = current.Sub(previous).Div(previous).Mul(hundred)
	}

	trend := TrendNeutral
	switch change.Sign() {
	case 1:
		trend = TrendUp
	case -1:
		trend = TrendDown
	}

	return KPIValue{
		Current:       core.NewMoney(current).Rounded(),
		Previous:      core.NewMoney(previous).Rounded(),
		ChangePercent: change.Round(1).InexactFloat64(),
		Trend:         trend,
	}
}

// runningBalance merges the per-kind timeline rows into points and carries
// a cumulative balance seeded with the opening balance.
func runningBalance(rows []pipeline.Row, opening decimal.Decimal) []TimelinePoint {
	type point struct {
		bucket          pipeline.Bucket
		credits, debits decimal.Decimal
	}
	byKey := make(map[string]*point)
	var keys []string
	for _, r := range rows {
		k := r.Bucket.Key()
		p, ok := byKey[k]
		if !ok {
			p = &point{bucket: r.Bucket}
			byKey[k] = p
			keys = append(keys, k)
		}
		if r.Kind == core.KindCredit {
			p.credits = p.credits.Add(r.Total)
		} else {
			p.debits = p.debits.Add(r.Total)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return byKey[keys[i]].bucket.Less(byKey[keys[j]].bucket) })

	out := make([]TimelinePoint, 0, len(keys))
	balance := opening
	for _, k := range keys {
		p := byKey[k]
		balance = balance.Add(p.credits).Sub(p.debits)
		out = append(out, TimelinePoint{
			Date:    k,
			Credits: core.NewMoney(p.credits).Rounded(),
			Debits:  core.NewMoney(p.debits).Rounded(),
			Balance: core.NewMoney(balance).Rounded(),
		})
	}
	return out
}

func categoryAmounts(rows []pipeline.Row) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryAmount{Category: r.Category, Amount: core.NewMoney(r.Total).Rounded(), Count: r.Count})
	}
	return out
}

func distribution(rows []pipeline.Row) []DistributionSlice {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Total)
	}
	out := make([]DistributionSlice, 0, len(rows))
	for _, r := range rows {
		share := 0.0
		if total.IsPositive() {
			share = r.Total.Div(total).Mul(hundred).Round(1).InexactFloat64()
		}
		out = append(out, DistributionSlice{Name: r.Category, Value: share, Amount: core.NewMoney(r.Total).Rounded()})
	}
	return out
}

func paymentMethods(rows []pipeline.Row) []PaymentMethodAmount {
	out := make([]PaymentMethodAmount, 0, len(rows))
	for _, r := range rows {
		out = append(out, PaymentMethodAmount{PaymentMethod: r.PaymentMethod, Amount: core.NewMoney(r.Total).Rounded(), Count: r.Count})
	}
	return out
}

func monthlySavings(rows []pipeline.Row) []MonthlySaving {
	type month struct{ credits, debits decimal.Decimal }
	byKey := make(map[string]*month)
	var keys []string
	for _, r := range rows {
		k := r.Bucket.Key()
		m, ok := byKey[k]
		if !ok {
			m = &month{}
			byKey[k] = m
			keys = append(keys, k)
		}
		if r.Kind == core.KindCredit {
			m.credits = m.credits.Add(r.Total)
		} else {
			m.debits = m.debits.Add(r.Total)
		}
	}
	sort.Strings(keys)

	out := make([]MonthlySaving, 0, len(keys))
	for _, k := range keys {
		m := byKey[k]
		out = append(out, MonthlySaving{
			Month:   k,
			Credits: core.NewMoney(m.credits).Rounded(),
			Debits:  core.NewMoney(m.debits).Rounded(),
			Savings: core.NewMoney(m.credits.Sub(m.debits)).Rounded(),
		})
	}
	return out
}
