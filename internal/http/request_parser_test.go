package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/daterange"
	"fintrack/internal/storage"
)

func TestParseDashboardParams(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		want      daterange.Filter
		wantStart *time.Time
		wantErr   bool
	}{
		{
			name:  "defaults to month",
			query: url.Values{},
			want:  daterange.FilterMonth,
		},
		{
			name:  "filter is case insensitive",
			query: url.Values{"filter_type": {" Week "}},
			want:  daterange.FilterWeek,
		},
		{
			name:      "custom bounds",
			query:     url.Values{"filter_type": {"custom"}, "start_date": {"2025-03-01"}, "end_date": {"2025-03-31"}},
			want:      daterange.FilterCustom,
			wantStart: ptr(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:    "unparseable date",
			query:   url.Values{"start_date": {"01/03/2025"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDashboardParams(tt.query)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Filter)
			if tt.wantStart != nil {
				require.NotNil(t, got.Start)
				assert.True(t, tt.wantStart.Equal(*got.Start))
			} else {
				assert.Nil(t, got.Start)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestParseListQuery(t *testing.T) {
	q, err := ParseListQuery("u1", url.Values{
		"page":           {"2"},
		"limit":          {"5"},
		"sort_by":        {"Amount"},
		"sort_order":     {"asc"},
		"type":           {"CREDIT"},
		"category":       {" Salary\x00 "},
		"payment_method": {"Bank Transfer"},
		"start_date":     {"2025-03-01"},
		"end_date":       {"2025-03-31"},
		"search":         {"march"},
	})
	require.NoError(t, err)

	assert.Equal(t, "u1", q.OwnerID)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, storage.SortByAmount, q.SortBy)
	assert.False(t, q.Descending)
	assert.Equal(t, core.KindCredit, q.Kind)
	assert.Equal(t, "Salary", q.Category)
	assert.Equal(t, "Bank Transfer", q.PaymentMethod)
	assert.Equal(t, "march", q.Search)
	assert.True(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Equal(q.From))
	assert.True(t, daterange.EndOfDay(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)).Equal(q.To))
}

func TestParseListQueryDefaults(t *testing.T) {
	q, err := ParseListQuery("u1", url.Values{"end_date": {"2025-03-31T10:00:00Z"}})
	require.NoError(t, err)
	assert.True(t, q.Descending)
	assert.Zero(t, q.Page)
	// timestamps are used as given
	assert.True(t, time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC).Equal(q.To))
}

func TestParseListQueryErrors(t *testing.T) {
	for _, v := range []url.Values{
		{"page": {"first"}},
		{"limit": {"1.5"}},
		{"sort_order": {"sideways"}},
		{"type": {"refund"}},
		{"end_date": {"tomorrow"}},
	} {
		_, err := ParseListQuery("u1", v)
		assert.ErrorIs(t, err, core.ErrInvalidArgument, v.Encode())
	}
}

func TestParseBudgetPeriod(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	year, month, err := ParseBudgetPeriod(url.Values{}, now, true)
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 3, month)

	year, month, err = ParseBudgetPeriod(url.Values{"month": {"7"}}, now, false)
	require.NoError(t, err)
	assert.Zero(t, year)
	assert.Equal(t, 7, month)

	_, _, err = ParseBudgetPeriod(url.Values{"year": {"twenty"}}, now, true)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string) (transactionRequest, error) {
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
		var out transactionRequest
		err := DecodeJSON(req, &out)
		return out, err
	}

	out, err := decode(`{"amount":"10.50","type":"debit"}`)
	require.NoError(t, err)
	assert.Equal(t, "10.50", out.Amount.String())
	assert.Equal(t, core.KindDebit, out.Type)

	_, err = decode(``)
	assert.ErrorIs(t, err, errMalformedBody)

	_, err = decode(`{"amount":true}`)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = decode(`[1,2]`)
	assert.ErrorIs(t, err, errMalformedBody)
}

func TestTransactionRequestInput(t *testing.T) {
	req := transactionRequest{
		Amount:          core.MustMoney("5"),
		Type:            core.KindCredit,
		Category:        "  Gift\x07",
		PaymentMethod:   "Cash",
		TransactionDate: "2025-03-05",
	}
	in, err := req.Input()
	require.NoError(t, err)
	assert.Equal(t, "Gift", in.Category)
	assert.True(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC).Equal(in.OccurredAt))

	req.TransactionDate = ""
	_, err = req.Input()
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestTransactionPatchRequest(t *testing.T) {
	date := "2025-03-20T08:30:00Z"
	desc := " Late fee "
	p, err := transactionPatchRequest{TransactionDate: &date, Description: &desc}.Patch()
	require.NoError(t, err)
	require.NotNil(t, p.OccurredAt)
	assert.Equal(t, 8, p.OccurredAt.Hour())
	assert.Equal(t, "Late fee", *p.Description)
	assert.Nil(t, p.Category)

	bad := "later"
	_, err = transactionPatchRequest{TransactionDate: &bad}.Patch()
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
