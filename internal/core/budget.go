package core

import (
	"strings"
	"time"
)

// Budget is a monthly spending limit for one category.
type Budget struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"user_id"`
	Category     string    `json:"category"`
	MonthlyLimit Money     `json:"monthly_limit"`
	Year         int       `json:"year"`
	Month        int       `json:"month"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type BudgetInput struct {
	Category     string `json:"category"`
	MonthlyLimit Money  `json:"monthly_limit"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
}

type BudgetPatch struct {
	MonthlyLimit *Money `json:"monthly_limit,omitempty"`
	IsActive     *bool  `json:"is_active,omitempty"`
}

// BudgetStatus compares a budget with the debits recorded for its month.
type BudgetStatus struct {
	Budget         Budget  `json:"budget"`
	Spent          Money   `json:"spent"`
	Remaining      Money   `json:"remaining"`
	PercentageUsed float64 `json:"percentage_used"`
	IsExceeded     bool    `json:"is_exceeded"`
}

func NewBudget(ownerID string, in BudgetInput, now time.Time) (Budget, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Budget{}, ErrMissingOwner
	}
	b := Budget{
		ID:           NewID(),
		OwnerID:      ownerID,
		Category:     strings.TrimSpace(in.Category),
		MonthlyLimit: in.MonthlyLimit.Rounded(),
		Year:         in.Year,
		Month:        in.Month,
		IsActive:     true,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	return b, nil
}

func (b Budget) Validate() error {
	if err := validateLabel(b.Category, ErrEmptyCategory, ErrCategoryTooLong); err != nil {
		return err
	}
	if !b.MonthlyLimit.IsPositive() || !b.MonthlyLimit.WithinLimit() {
		return ErrInvalidBudgetLimit
	}
	if b.Year < 2020 || b.Year > 2100 || b.Month < 1 || b.Month > 12 {
		return ErrInvalidBudgetPeriod
	}
	return nil
}

func (p BudgetPatch) Apply(b Budget, now time.Time) (Budget, error) {
	if p.MonthlyLimit == nil && p.IsActive == nil {
		return Budget{}, ErrNoFieldsToUpdate
	}
	if p.MonthlyLimit != nil {
		b.MonthlyLimit = p.MonthlyLimit.Rounded()
	}
	if p.IsActive != nil {
		b.IsActive = *p.IsActive
	}
	b.UpdatedAt = now.UTC()
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	return b, nil
}

// MonthRange returns the first and last instant of the budget's month in UTC.
func (b Budget) MonthRange() (time.Time, time.Time) {
	return MonthBounds(b.Year, b.Month)
}

// MonthBounds returns [first day 00:00, last day 23:59:59.999999] in UTC.
func MonthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Microsecond)
	return start, end
}
