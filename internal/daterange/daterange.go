// Package daterange turns named period filters into concrete intervals and
// derives the comparison window and bucket granularity for each filter.
package daterange

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Filter names a reporting period.
type Filter string

const (
	Filter6Days   Filter = "6days"
	FilterWeek    Filter = "week"
	FilterMonth   Filter = "month"
	Filter6Months Filter = "6months"
	FilterYear    Filter = "year"
	FilterCustom  Filter = "custom"
)

// Granularity is the time bucket used for timeline aggregations.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// lookback is the number of days each relative filter reaches back from now.
var lookback = map[Filter]int{
	Filter6Days:   6,
	FilterWeek:    7,
	FilterMonth:   30,
	Filter6Months: 180,
	FilterYear:    365,
}

var labels = map[Filter]string{
	Filter6Days:   "Last 6 Days",
	FilterWeek:    "Last Week",
	FilterMonth:   "Last Month",
	Filter6Months: "Last 6 Months",
	FilterYear:    "Last Year",
	FilterCustom:  "Custom Period",
}

// Interval is an inclusive [Start, End] range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration is End - Start.
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Days is the number of whole days between Start and End.
func (i Interval) Days() int { return int(i.Duration() / (24 * time.Hour)) }

// Contains reports whether t falls inside the interval, bounds included.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// Resolver computes intervals against an injectable clock.
type Resolver struct {
	now func() time.Time
	loc *time.Location
}

type Option func(*Resolver)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLocation sets the zone used for day boundaries. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) { r.loc = loc }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the resolver's current instant in its location.
func (r *Resolver) Now() time.Time { return r.now().In(r.loc) }

// Resolve maps a filter to a normalized interval. Custom filters require
// both bounds; other filters ignore them.
func (r *Resolver) Resolve(filter Filter, start, end *time.Time) (Interval, error) {
	var from, to time.Time
	if filter == FilterCustom {
		if start == nil || end == nil || start.IsZero() || end.IsZero() {
			return Interval{}, fmt.Errorf("%w: start_date and end_date required for custom filter", core.ErrInvalidArgument)
		}
		from, to = start.In(r.loc), end.In(r.loc)
	} else {
		days, ok := lookback[filter]
		if !ok {
			return Interval{}, fmt.Errorf("%w: invalid filter_type %q", core.ErrInvalidArgument, filter)
		}
		to = r.Now()
		from = to.AddDate(0, 0, -days)
	}
	iv := Interval{Start: StartOfDay(from), End: EndOfDay(to)}
	if iv.End.Before(iv.Start) {
		return Interval{}, fmt.Errorf("%w: start_date must not be after end_date", core.ErrInvalidArgument)
	}
	return iv, nil
}

// PreviousOf returns the window of equal duration ending one second before
// current starts.
func PreviousOf(current Interval) Interval {
	length := current.End.Sub(current.Start)
	end := current.Start.Add(-time.Second)
	return Interval{Start: end.Add(-length), End: end}
}

// GranularityOf picks the timeline bucket for a filter. Unknown and custom
// filters use daily buckets.
func GranularityOf(filter Filter) Granularity {
	switch filter {
	case Filter6Months:
		return Week
	case FilterYear:
		return Month
	default:
		return Day
	}
}

// Label is the human-readable name of a filter.
func Label(filter Filter) string {
	if l, ok := labels[filter]; ok {
		return l
	}
	return "Unknown Period"
}

// StartOfDay truncates t to 00:00:00.000000 in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay moves t to 23:59:59.999999 in its own location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999000, t.Location())
}
