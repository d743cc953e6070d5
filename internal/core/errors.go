package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Callers classify with errors.Is and
// wrap with fmt.Errorf("...: %w", err) to add context.
var (
	// ErrInvalidArgument marks malformed input: unknown filters, missing
	// custom bounds, failed field validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a record does not exist or belongs to a
	// different owner. Callers cannot tell the two cases apart.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation, e.g. a second budget for the
	// same category and month.
	ErrConflict = errors.New("conflict")

	// ErrStoreUnavailable wraps any failure of the underlying store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotConfigured marks an optional integration, such as the language
	// model, that has no credentials.
	ErrNotConfigured = errors.New("not configured")
)

var (
	ErrInvalidAmount        = fmt.Errorf("%w: amount must be greater than zero and at most %s", ErrInvalidArgument, MaxAmount)
	ErrInvalidKind          = fmt.Errorf("%w: type must be 'credit' or 'debit'", ErrInvalidArgument)
	ErrEmptyCategory        = fmt.Errorf("%w: category is required", ErrInvalidArgument)
	ErrEmptyPaymentMethod   = fmt.Errorf("%w: payment method is required", ErrInvalidArgument)
	ErrMissingDate          = fmt.Errorf("%w: transaction date is required", ErrInvalidArgument)
	ErrMissingOwner         = fmt.Errorf("%w: owner id is required", ErrInvalidArgument)
	ErrNoFieldsToUpdate     = fmt.Errorf("%w: no fields to update", ErrInvalidArgument)
	ErrInvalidBudgetPeriod  = fmt.Errorf("%w: budget year must be 2020-2100 and month 1-12", ErrInvalidArgument)
	ErrInvalidBudgetLimit   = fmt.Errorf("%w: monthly limit must be greater than zero and at most %s", ErrInvalidArgument, MaxAmount)
	ErrDescriptionTooLong   = fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidArgument, MaxDescriptionLength)
	ErrCategoryTooLong      = fmt.Errorf("%w: category too long (max %d characters)", ErrInvalidArgument, MaxLabelLength)
	ErrPaymentMethodTooLong = fmt.Errorf("%w: payment method too long (max %d characters)", ErrInvalidArgument, MaxLabelLength)
)
