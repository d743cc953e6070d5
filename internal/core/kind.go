package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the direction of a transaction. Only the two declared values are
// valid; ParseKind rejects everything else.
type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

// Kinds lists every valid Kind in a stable order.
var Kinds = []Kind{KindCredit, KindDebit}

// ParseKind normalizes case and surrounding whitespace and returns the
// canonical Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCredit:
		return KindCredit, nil
	case KindDebit:
		return KindDebit, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool {
	return k == KindCredit || k == KindDebit
}

func (k Kind) String() string { return string(k) }

// UnmarshalJSON validates the value at the decoding boundary.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: type must be a string", ErrInvalidArgument)
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
