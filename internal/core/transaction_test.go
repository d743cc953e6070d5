package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func validInput() TransactionInput {
	return TransactionInput{
		Amount:        MustMoney("12.345"),
		Kind:          KindDebit,
		Category:      " Food ",
		PaymentMethod: "Card",
		Description:   "lunch",
		OccurredAt:    time.Date(2025, 3, 14, 13, 0, 0, 0, time.FixedZone("CET", 3600)),
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"credit", KindCredit, true},
		{"debit", KindDebit, true},
		{" Debit ", KindDebit, true},
		{"CREDIT", KindCredit, true},
		{"refund", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: want %q, got %q (%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%q: expected invalid argument, got %v", tc.in, err)
		}
	}
}

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction("u1", validInput(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.ID == "" {
		t.Fatalf("expected generated id")
	}
	if tx.Amount.Cents() != 1235 {
		t.Fatalf("expected amount rounded to 12.35, got %s", tx.Amount)
	}
	if tx.Category != "Food" {
		t.Fatalf("expected trimmed category, got %q", tx.Category)
	}
	if tx.OccurredAt.Location() != time.UTC || tx.OccurredAt.Hour() != 12 {
		t.Fatalf("expected UTC occurrence, got %v", tx.OccurredAt)
	}
	if !tx.CreatedAt.Equal(now) || !tx.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps %v %v", tx.CreatedAt, tx.UpdatedAt)
	}
}

func TestNewTransactionRejects(t *testing.T) {
	mutate := []struct {
		name  string
		owner string
		edit  func(*TransactionInput)
		want  error
	}{
		{"missing owner", "", func(*TransactionInput) {}, ErrMissingOwner},
		{"zero amount", "u1", func(in *TransactionInput) { in.Amount = Zero }, ErrInvalidAmount},
		{"negative amount", "u1", func(in *TransactionInput) { in.Amount = MustMoney("-3") }, ErrInvalidAmount},
		{"amount above cap", "u1", func(in *TransactionInput) { in.Amount = MaxAmount.Add(MustMoney("0.01")) }, ErrInvalidAmount},
		{"amount overflowing cents", "u1", func(in *TransactionInput) { in.Amount = MustMoney("100000000000000000") }, ErrInvalidAmount},
		{"unknown kind", "u1", func(in *TransactionInput) { in.Kind = "refund" }, ErrInvalidKind},
		{"empty category", "u1", func(in *TransactionInput) { in.Category = "  " }, ErrEmptyCategory},
		{"long category", "u1", func(in *TransactionInput) { in.Category = strings.Repeat("x", 51) }, ErrCategoryTooLong},
		{"empty payment method", "u1", func(in *TransactionInput) { in.PaymentMethod = "" }, ErrEmptyPaymentMethod},
		{"long description", "u1", func(in *TransactionInput) { in.Description = strings.Repeat("x", 501) }, ErrDescriptionTooLong},
		{"missing date", "u1", func(in *TransactionInput) { in.OccurredAt = time.Time{} }, ErrMissingDate},
	}
	for _, tc := range mutate {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.edit(&in)
			_, err := NewTransaction(tc.owner, in, now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected invalid argument classification, got %v", err)
			}
		})
	}
}

func TestTransactionPatchApply(t *testing.T) {
	tx, err := NewTransaction("u1", validInput(), now)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := (TransactionPatch{}).Apply(tx, now); !errors.Is(err, ErrNoFieldsToUpdate) {
		t.Fatalf("expected no fields error, got %v", err)
	}

	later := now.Add(time.Hour)
	amount := MustMoney("99.999")
	kind := KindCredit
	updated, err := TransactionPatch{Amount: &amount, Kind: &kind}.Apply(tx, later)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if updated.Amount.Cents() != 10000 || updated.Kind != KindCredit {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Category != tx.Category || updated.ID != tx.ID {
		t.Fatalf("untouched fields changed")
	}
	if !updated.UpdatedAt.Equal(later) || !updated.CreatedAt.Equal(tx.CreatedAt) {
		t.Fatalf("expected only updated_at refreshed")
	}

	empty := ""
	if _, err := (TransactionPatch{Category: &empty}).Apply(tx, later); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected validation on patched result, got %v", err)
	}
}

func TestBudget(t *testing.T) {
	b, err := NewBudget("u1", BudgetInput{Category: "Food", MonthlyLimit: MustMoney("300"), Year: 2025, Month: 2}, now)
	if err != nil {
		t.Fatalf("new budget: %v", err)
	}
	if !b.IsActive {
		t.Fatalf("new budgets start active")
	}
	start, end := b.MonthRange()
	if start != time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected start %v", start)
	}
	if end != time.Date(2025, 2, 28, 23, 59, 59, 999999000, time.UTC) {
		t.Fatalf("unexpected end %v", end)
	}

	for _, in := range []BudgetInput{
		{Category: "Food", MonthlyLimit: MustMoney("300"), Year: 2019, Month: 2},
		{Category: "Food", MonthlyLimit: MustMoney("300"), Year: 2025, Month: 13},
		{Category: "Food", MonthlyLimit: Zero, Year: 2025, Month: 1},
		{Category: "Food", MonthlyLimit: MustMoney("100000000000000000"), Year: 2025, Month: 1},
		{Category: "", MonthlyLimit: MustMoney("1"), Year: 2025, Month: 1},
	} {
		if _, err := NewBudget("u1", in, now); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected invalid argument for %+v, got %v", in, err)
		}
	}
}
