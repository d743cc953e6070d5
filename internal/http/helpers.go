package http

import (
	"net/http"
	"strings"
)

// UserIDHeader identifies the owner of every request outside health checks.
const UserIDHeader = "X-User-ID"

// ownerFromRequest reads the owner header.
func ownerFromRequest(r *http.Request) string {
	return sanitizeInput(r.Header.Get(UserIDHeader))
}

// ownedHandler receives the authenticated owner explicitly.
type ownedHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}
