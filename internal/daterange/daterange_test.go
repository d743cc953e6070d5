package daterange

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

var fixedNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestResolver() *Resolver {
	return NewResolver(WithClock(func() time.Time { return fixedNow }))
}

func TestResolveRelativeFilters(t *testing.T) {
	r := newTestResolver()
	cases := []struct {
		filter Filter
		start  time.Time
	}{
		{Filter6Days, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)},
		{FilterWeek, time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)},
		{FilterMonth, time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC)},
		{Filter6Months, time.Date(2024, 12, 17, 0, 0, 0, 0, time.UTC)},
		{FilterYear, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
	}
	wantEnd := time.Date(2025, 6, 15, 23, 59, 59, 999999000, time.UTC)
	for _, tc := range cases {
		t.Run(string(tc.filter), func(t *testing.T) {
			iv, err := r.Resolve(tc.filter, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.start, iv.Start)
			assert.Equal(t, wantEnd, iv.End)
			assert.True(t, iv.Contains(fixedNow))
		})
	}
}

func TestResolveWeekSpan(t *testing.T) {
	iv, err := newTestResolver().Resolve(FilterWeek, nil, nil)
	require.NoError(t, err)
	d := iv.Duration()
	assert.True(t, d >= 7*24*time.Hour && d <= 8*24*time.Hour, "unexpected duration %v", d)
	assert.Equal(t, 7, iv.Days())
}

func TestResolveCustom(t *testing.T) {
	r := newTestResolver()
	start := time.Date(2025, 1, 10, 15, 4, 5, 0, time.UTC)
	end := time.Date(2025, 1, 20, 1, 0, 0, 0, time.UTC)

	iv, err := r.Resolve(FilterCustom, &start, &end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), iv.Start)
	assert.Equal(t, time.Date(2025, 1, 20, 23, 59, 59, 999999000, time.UTC), iv.End)

	_, err = r.Resolve(FilterCustom, &start, nil)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	_, err = r.Resolve(FilterCustom, nil, nil)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	_, err = r.Resolve(FilterCustom, &end, &start)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "inverted bounds")
}

func TestResolveUnknownFilter(t *testing.T) {
	_, err := newTestResolver().Resolve("fortnight", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestResolveUsesLocation(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 23:30 UTC is already the next day in Rome.
	clock := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	r := NewResolver(WithClock(func() time.Time { return clock }), WithLocation(rome))
	iv, err := r.Resolve(Filter6Days, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 16, iv.End.Day())
	assert.Equal(t, rome, iv.End.Location())
}

func TestPreviousOf(t *testing.T) {
	r := newTestResolver()
	for _, f := range []Filter{Filter6Days, FilterWeek, FilterMonth, Filter6Months, FilterYear} {
		cur, err := r.Resolve(f, nil, nil)
		require.NoError(t, err)
		prev := PreviousOf(cur)
		assert.Equal(t, cur.Start.Add(-time.Second), prev.End, string(f))
		assert.Equal(t, cur.Duration(), prev.Duration(), string(f))
		assert.True(t, prev.End.Before(cur.Start))
	}
}

func TestGranularityOf(t *testing.T) {
	cases := map[Filter]Granularity{
		Filter6Days:   Day,
		FilterWeek:    Day,
		FilterMonth:   Day,
		Filter6Months: Week,
		FilterYear:    Month,
		FilterCustom:  Day,
		"whatever":    Day,
	}
	for f, want := range cases {
		assert.Equal(t, want, GranularityOf(f), string(f))
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Last Week", Label(FilterWeek))
	assert.Equal(t, "Custom Period", Label(FilterCustom))
	assert.Equal(t, "Unknown Period", Label("x"))
}
