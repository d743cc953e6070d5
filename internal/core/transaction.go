package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxLabelLength       = 50
	MaxDescriptionLength = 500
)

// Transaction is a single owner-scoped credit or debit.
type Transaction struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"user_id"`
	Amount        Money     `json:"amount"`
	Kind          Kind      `json:"type"`
	Category      string    `json:"category"`
	PaymentMethod string    `json:"payment_method"`
	Description   string    `json:"description,omitempty"`
	OccurredAt    time.Time `json:"transaction_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TransactionInput carries the caller-supplied fields of a new transaction.
type TransactionInput struct {
	Amount        Money     `json:"amount"`
	Kind          Kind      `json:"type"`
	Category      string    `json:"category"`
	PaymentMethod string    `json:"payment_method"`
	Description   string    `json:"description,omitempty"`
	OccurredAt    time.Time `json:"transaction_date"`
}

// TransactionPatch is a partial update. Nil fields are left untouched.
type TransactionPatch struct {
	Amount        *Money     `json:"amount,omitempty"`
	Kind          *Kind      `json:"type,omitempty"`
	Category      *string    `json:"category,omitempty"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
	Description   *string    `json:"description,omitempty"`
	OccurredAt    *time.Time `json:"transaction_date,omitempty"`
}

// NewID returns a fresh opaque record identifier.
func NewID() string { return uuid.NewString() }

// NewTransaction validates in and builds a transaction owned by ownerID.
// The amount is rounded to cents and the occurrence date stored in UTC.
func NewTransaction(ownerID string, in TransactionInput, now time.Time) (Transaction, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Transaction{}, ErrMissingOwner
	}
	t := Transaction{
		ID:            NewID(),
		OwnerID:       ownerID,
		Amount:        in.Amount.Rounded(),
		Kind:          in.Kind,
		Category:      strings.TrimSpace(in.Category),
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		Description:   strings.TrimSpace(in.Description),
		OccurredAt:    in.OccurredAt.UTC(),
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (t Transaction) Validate() error {
	if !t.Amount.IsPositive() || !t.Amount.WithinLimit() {
		return ErrInvalidAmount
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := validateLabel(t.Category, ErrEmptyCategory, ErrCategoryTooLong); err != nil {
		return err
	}
	if err := validateLabel(t.PaymentMethod, ErrEmptyPaymentMethod, ErrPaymentMethodTooLong); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if t.OccurredAt.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// Empty reports whether the patch sets no field.
func (p TransactionPatch) Empty() bool {
	return p.Amount == nil && p.Kind == nil && p.Category == nil &&
		p.PaymentMethod == nil && p.Description == nil && p.OccurredAt == nil
}

// Apply returns a copy of t with the patch applied and UpdatedAt refreshed.
func (p TransactionPatch) Apply(t Transaction, now time.Time) (Transaction, error) {
	if p.Empty() {
		return Transaction{}, ErrNoFieldsToUpdate
	}
	if p.Amount != nil {
		t.Amount = p.Amount.Rounded()
	}
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.PaymentMethod != nil {
		t.PaymentMethod = strings.TrimSpace(*p.PaymentMethod)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.OccurredAt != nil {
		t.OccurredAt = p.OccurredAt.UTC()
	}
	t.UpdatedAt = now.UTC()
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func validateLabel(s string, empty, tooLong error) error {
	if strings.TrimSpace(s) == "" {
		return empty
	}
	if utf8.RuneCountInString(s) > MaxLabelLength {
		return tooLong
	}
	return nil
}
