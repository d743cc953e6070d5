// Package core holds the domain types of the finance tracker: transactions,
// budgets, money and the error taxonomy used across layers.
//
// Amounts are carried as shopspring decimals at full precision and are only
// rounded to two places when exposed (JSON) or persisted (cents).
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount that serializes as a JSON number rounded to
// two decimal places.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// MaxAmount is the largest amount a transaction or budget may carry. It keeps
// persisted cents, and their sums, far inside int64.
var MaxAmount = Money{d: decimal.New(1, 9)}

// NewMoney wraps d without rounding.
func NewMoney(d decimal.Decimal) Money { return Money{d: d} }

// MoneyFromCents converts a persisted integer amount.
func MoneyFromCents(cents int64) Money { return Money{d: decimal.New(cents, -2)} }

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney accepts dot or comma decimal separators ("12.34", "12,34").
// Negative values are accepted here; Transaction validation enforces sign.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("%w: empty amount", ErrInvalidArgument)
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: invalid amount %q", ErrInvalidArgument, s)
	}
	return Money{d: d}, nil
}

func (m Money) Decimal() decimal.Decimal { return m.d }

// WithinLimit reports whether m, rounded to cents, lies in
// [-MaxAmount, MaxAmount].
func (m Money) WithinLimit() bool { return m.d.Round(2).Abs().LessThanOrEqual(MaxAmount.d) }

// Cents rounds half away from zero to the nearest cent. Callers must check
// WithinLimit first; larger values do not fit int64.
func (m Money) Cents() int64 { return m.d.Round(2).Shift(2).IntPart() }

// Rounded returns m rounded to two decimal places.
func (m Money) Rounded() Money { return Money{d: m.d.Round(2)} }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Abs() Money        { return Money{d: m.d.Abs()} }
func (m Money) IsZero() bool      { return m.d.IsZero() }
func (m Money) IsPositive() bool  { return m.d.IsPositive() }
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) String() string { return m.d.Round(2).StringFixed(2) }

// MarshalJSON writes an unquoted number, e.g. 800 or 12.5.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.Round(2).String()), nil
}

// UnmarshalJSON accepts numbers and numeric strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: invalid amount", ErrInvalidArgument)
	}
	m.d = d
	return nil
}
