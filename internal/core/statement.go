package core

import "strings"

// ImportPaymentMethod is recorded for every transaction confirmed from a
// statement import.
const ImportPaymentMethod = "Other"

// ImportCandidate is a transaction extracted from a statement and awaiting
// review. Fields stay loosely typed until confirmation.
type ImportCandidate struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
}

// Input converts a reviewed candidate. The amount sign is dropped; the type
// carries the direction.
func (c ImportCandidate) Input() (TransactionInput, error) {
	when, err := ParseDate(c.Date)
	if err != nil {
		return TransactionInput{}, err
	}
	kind, err := ParseKind(c.Type)
	if err != nil {
		return TransactionInput{}, err
	}
	return TransactionInput{
		Amount:        c.Amount.Abs(),
		Kind:          kind,
		Category:      strings.TrimSpace(c.Category),
		PaymentMethod: ImportPaymentMethod,
		Description:   strings.TrimSpace(c.Description),
		OccurredAt:    when,
	}, nil
}
