// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request
// data: dashboard filters, list queries, budget periods and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/daterange"
	"fintrack/internal/storage"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errMalformedBody marks bodies that are not valid JSON for the target type.
var errMalformedBody = errors.New("malformed request body")

// DashboardParams holds the period selection of a dashboard request.
type DashboardParams struct {
	Filter daterange.Filter
	Start  *time.Time
	End    *time.Time
}

// ParseDashboardParams reads filter_type (default month), start_date and
// end_date. Bound validation is left to the resolver.
func ParseDashboardParams(query url.Values) (DashboardParams, error) {
	params := DashboardParams{Filter: daterange.FilterMonth}
	if v := strings.TrimSpace(query.Get("filter_type")); v != "" {
		params.Filter = daterange.Filter(strings.ToLower(v))
	}
	var err error
	if params.Start, err = optionalDate(query, "start_date"); err != nil {
		return DashboardParams{}, err
	}
	if params.End, err = optionalDate(query, "end_date"); err != nil {
		return DashboardParams{}, err
	}
	return params, nil
}

func optionalDate(query url.Values, name string) (*time.Time, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return nil, nil
	}
	t, err := core.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &t, nil
}

// ParseListQuery builds a transaction list query for ownerID. Listing sorts
// newest first unless sort_order=asc. A calendar end_date covers the whole
// day.
func ParseListQuery(ownerID string, query url.Values) (storage.ListQuery, error) {
	q := storage.ListQuery{
		OwnerID:       ownerID,
		Category:      sanitizeInput(query.Get("category")),
		PaymentMethod: sanitizeInput(query.Get("payment_method")),
		Search:        sanitizeInput(query.Get("search")),
		SortBy:        storage.SortField(strings.ToLower(strings.TrimSpace(query.Get("sort_by")))),
		Descending:    true,
	}

	var err error
	if q.Page, err = optionalInt(query, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = optionalInt(query, "limit"); err != nil {
		return q, err
	}

	switch strings.ToLower(strings.TrimSpace(query.Get("sort_order"))) {
	case "", "desc":
	case "asc":
		q.Descending = false
	default:
		return q, fmt.Errorf("%w: sort_order must be asc or desc", core.ErrInvalidArgument)
	}

	if v := strings.TrimSpace(query.Get("type")); v != "" {
		if q.Kind, err = core.ParseKind(v); err != nil {
			return q, err
		}
	}

	if v := strings.TrimSpace(query.Get("start_date")); v != "" {
		t, err := core.ParseDate(v)
		if err != nil {
			return q, fmt.Errorf("start_date: %w", err)
		}
		q.From = t
	}
	if v := strings.TrimSpace(query.Get("end_date")); v != "" {
		t, err := core.ParseDate(v)
		if err != nil {
			return q, fmt.Errorf("end_date: %w", err)
		}
		if len(v) == len(core.DateLayout) {
			t = daterange.EndOfDay(t)
		}
		q.To = t
	}
	return q, nil
}

func optionalInt(query url.Values, name string) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidArgument, name)
	}
	return n, nil
}

// ParseBudgetPeriod reads year and month. Missing values default to the
// current UTC month when defaultToNow is set and to zero otherwise.
func ParseBudgetPeriod(query url.Values, now time.Time, defaultToNow bool) (year, month int, err error) {
	if defaultToNow {
		year, month = now.UTC().Year(), int(now.UTC().Month())
	}
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: year must be an integer", core.ErrInvalidArgument)
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: month must be an integer", core.ErrInvalidArgument)
		}
	}
	return year, month, nil
}

// DecodeJSON reads a bounded JSON body into v. Syntax and type errors are
// reported as errMalformedBody; field validation errors raised by custom
// unmarshalers keep their InvalidArgument classification.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformedBody)
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// transactionRequest is the create body. Dates accept RFC 3339 or
// YYYY-MM-DD.
type transactionRequest struct {
	Amount          core.Money `json:"amount"`
	Type            core.Kind  `json:"type"`
	Category        string     `json:"category"`
	PaymentMethod   string     `json:"payment_method"`
	Description     string     `json:"description"`
	TransactionDate string     `json:"transaction_date"`
}

func (req transactionRequest) Input() (core.TransactionInput, error) {
	in := core.TransactionInput{
		Amount:        req.Amount,
		Kind:          req.Type,
		Category:      sanitizeInput(req.Category),
		PaymentMethod: sanitizeInput(req.PaymentMethod),
		Description:   sanitizeInput(req.Description),
	}
	if strings.TrimSpace(req.TransactionDate) == "" {
		return in, core.ErrMissingDate
	}
	when, err := core.ParseDate(req.TransactionDate)
	if err != nil {
		return in, fmt.Errorf("transaction_date: %w", err)
	}
	in.OccurredAt = when
	return in, nil
}

// transactionPatchRequest is the partial update body.
type transactionPatchRequest struct {
	Amount          *core.Money `json:"amount"`
	Type            *core.Kind  `json:"type"`
	Category        *string     `json:"category"`
	PaymentMethod   *string     `json:"payment_method"`
	Description     *string     `json:"description"`
	TransactionDate *string     `json:"transaction_date"`
}

func (req transactionPatchRequest) Patch() (core.TransactionPatch, error) {
	p := core.TransactionPatch{
		Amount:        req.Amount,
		Kind:          req.Type,
		Category:      sanitizePtr(req.Category),
		PaymentMethod: sanitizePtr(req.PaymentMethod),
		Description:   sanitizePtr(req.Description),
	}
	if req.TransactionDate != nil {
		when, err := core.ParseDate(*req.TransactionDate)
		if err != nil {
			return p, fmt.Errorf("transaction_date: %w", err)
		}
		p.OccurredAt = &when
	}
	return p, nil
}

type confirmRequest struct {
	Transactions []core.ImportCandidate `json:"transactions"`
}

type chatRequest struct {
	Message string             `json:"message"`
	History []core.ChatMessage `json:"history"`
}
