package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"fintrack/internal/core"
)

// MaxStatementChars bounds the statement text handed to the parser.
const MaxStatementChars = 20000

var statementExtensions = map[string]bool{".csv": true, ".txt": true, ".tsv": true}

// StatementParser extracts candidate transactions from statement text.
// year is assumed for dates that omit it.
type StatementParser interface {
	ParseStatement(ctx context.Context, text string, year int) ([]core.ImportCandidate, error)
}

type Analysis struct {
	Message      string                 `json:"message"`
	Count        int                    `json:"count"`
	Transactions []core.ImportCandidate `json:"transactions"`
}

type ImportResult struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ImportService turns uploaded statements into transactions in two steps:
// Analyze proposes candidates without saving, Confirm stores the reviewed
// ones.
type ImportService struct {
	parser       StatementParser
	transactions *TransactionService
	logger       *slog.Logger
	now          func() time.Time
}

func NewImportService(parser StatementParser, transactions *TransactionService, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{parser: parser, transactions: transactions, logger: logger, now: time.Now}
}

func (s *ImportService) Analyze(ctx context.Context, ownerID, filename string, content []byte) (Analysis, error) {
	if ownerID == "" {
		return Analysis{}, core.ErrMissingOwner
	}
	text, err := statementText(filename, content)
	if err != nil {
		return Analysis{}, err
	}
	if s.parser == nil {
		return Analysis{}, fmt.Errorf("statement analysis: %w", core.ErrNotConfigured)
	}

	s.logger.InfoContext(ctx, "Analyzing statement", "user_id", ownerID, "filename", filename, "chars", utf8.RuneCountInString(text))
	candidates, err := s.parser.ParseStatement(ctx, text, s.now().Year())
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze statement: %w", err)
	}
	if candidates == nil {
		candidates = []core.ImportCandidate{}
	}
	return Analysis{
		Message:      "Analysis successful. Please review the transactions.",
		Count:        len(candidates),
		Transactions: candidates,
	}, nil
}

// Confirm stores the reviewed candidates with the import payment method.
// Any invalid candidate rejects the whole batch.
func (s *ImportService) Confirm(ctx context.Context, ownerID string, candidates []core.ImportCandidate) (ImportResult, error) {
	if ownerID == "" {
		return ImportResult{}, core.ErrMissingOwner
	}
	if len(candidates) == 0 {
		return ImportResult{Message: "No transactions to import.", Count: 0}, nil
	}
	ins := make([]core.TransactionInput, 0, len(candidates))
	for i, c := range candidates {
		in, err := c.Input()
		if err != nil {
			return ImportResult{}, fmt.Errorf("transaction %d: %w", i+1, err)
		}
		ins = append(ins, in)
	}
	saved, err := s.transactions.CreateMany(ctx, ownerID, ins)
	if err != nil {
		return ImportResult{}, err
	}
	s.logger.InfoContext(ctx, "Imported transactions", "user_id", ownerID, "count", len(saved))
	return ImportResult{Message: "Transactions imported successfully!", Count: len(saved)}, nil
}

// statementText checks the file type and returns the text to analyze,
// truncated to MaxStatementChars.
func statementText(filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !statementExtensions[ext] {
		return "", fmt.Errorf("%w: unsupported file format %q, upload CSV, TSV or TXT", core.ErrInvalidArgument, ext)
	}
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: statement is not valid UTF-8 text", core.ErrInvalidArgument)
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", fmt.Errorf("%w: could not extract any text from the uploaded file", core.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(text) > MaxStatementChars {
		text = string([]rune(text)[:MaxStatementChars])
	}
	return text, nil
}
