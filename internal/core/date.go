package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted alongside RFC 3339.
const DateLayout = "2006-01-02"

// ParseDate accepts RFC 3339 timestamps or YYYY-MM-DD dates, which are read
// as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrInvalidArgument)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q (use YYYY-MM-DD or RFC 3339)", ErrInvalidArgument, s)
}
