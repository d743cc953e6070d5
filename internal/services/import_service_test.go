package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

type stubParser struct {
	text       string
	year       int
	candidates []core.ImportCandidate
	err        error
}

func (p *stubParser) ParseStatement(_ context.Context, text string, year int) ([]core.ImportCandidate, error) {
	p.text, p.year = text, year
	return p.candidates, p.err
}

func newImports(t *testing.T, parser StatementParser) (*ImportService, *TransactionService, *cache.ResponseCache) {
	t.Helper()
	c := cache.New(10, time.Minute)
	txs := NewTransactionService(memory.New(), c, nil, nil)
	svc := NewImportService(parser, txs, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, txs, c
}

func TestImportService_Analyze(t *testing.T) {
	parser := &stubParser{candidates: []core.ImportCandidate{
		{Date: "2025-03-01", Description: "Coffee", Amount: core.MustMoney("3.50"), Type: "debit", Category: "Dining"},
	}}
	svc, _, _ := newImports(t, parser)

	a, err := svc.Analyze(context.Background(), "u1", "march.CSV", []byte("date,amount\n2025-03-01,-3.50\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Count)
	assert.Equal(t, "Coffee", a.Transactions[0].Description)
	assert.Equal(t, 2025, parser.year)
	assert.True(t, strings.HasPrefix(parser.text, "date,amount"))
}

func TestImportService_AnalyzeRejects(t *testing.T) {
	svc, _, _ := newImports(t, &stubParser{})
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"binary format", "statement.pdf", []byte("%PDF-1.7")},
		{"no extension", "statement", []byte("a,b")},
		{"blank file", "statement.csv", []byte("  \n\t")},
		{"not utf-8", "statement.txt", []byte{0xff, 0xfe, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Analyze(ctx, "u1", tt.filename, tt.content)
			assert.ErrorIs(t, err, core.ErrInvalidArgument)
		})
	}
}

func TestImportService_AnalyzeTruncatesLongStatements(t *testing.T) {
	parser := &stubParser{}
	svc, _, _ := newImports(t, parser)

	_, err := svc.Analyze(context.Background(), "u1", "big.txt", []byte(strings.Repeat("é", MaxStatementChars+10)))
	require.NoError(t, err)
	assert.Equal(t, MaxStatementChars, len([]rune(parser.text)))
}

func TestImportService_AnalyzeWithoutParser(t *testing.T) {
	svc, _, _ := newImports(t, nil)
	_, err := svc.Analyze(context.Background(), "u1", "a.csv", []byte("x"))
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestImportService_AnalyzeParserFailure(t *testing.T) {
	svc, _, _ := newImports(t, &stubParser{err: errors.New("model returned prose")})
	_, err := svc.Analyze(context.Background(), "u1", "a.csv", []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrInvalidArgument)
}

func TestImportService_Confirm(t *testing.T) {
	svc, txs, c := newImports(t, nil)
	ctx := context.Background()
	c.Set(cache.OwnerPrefix("u1")+"widgets", "stale", 0)

	res, err := svc.Confirm(ctx, "u1", []core.ImportCandidate{
		{Date: "2025-03-01", Description: " Coffee ", Amount: core.MustMoney("-3.50"), Type: "Debit", Category: "Dining"},
		{Date: "2025-03-02T09:00:00Z", Description: "Salary", Amount: core.MustMoney("2000"), Type: "credit", Category: "Salary"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Zero(t, c.Size())

	page, err := txs.List(ctx, storage.ListQuery{OwnerID: "u1", SortBy: storage.SortByDate})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	coffee := page.Items[0]
	assert.Equal(t, "3.50", coffee.Amount.String())
	assert.Equal(t, core.KindDebit, coffee.Kind)
	assert.Equal(t, core.ImportPaymentMethod, coffee.PaymentMethod)
	assert.Equal(t, "Coffee", coffee.Description)
}

func TestImportService_ConfirmValidation(t *testing.T) {
	svc, txs, _ := newImports(t, nil)
	ctx := context.Background()

	res, err := svc.Confirm(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, res.Count)

	_, err = svc.Confirm(ctx, "u1", []core.ImportCandidate{
		{Date: "2025-03-01", Amount: core.MustMoney("1"), Type: "debit", Category: "Food"},
		{Date: "yesterday", Amount: core.MustMoney("1"), Type: "debit", Category: "Food"},
	})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	page, err := txs.List(ctx, storage.ListQuery{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}
