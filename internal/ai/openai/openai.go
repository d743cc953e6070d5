// Package openai adapts an OpenAI-compatible chat completion API to the
// statement parser and chat model ports.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"fintrack/internal/core"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second
)

// ErrMalformedResponse is returned when the model's answer cannot be used.
var ErrMalformedResponse = errors.New("model response was not valid JSON")

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	api     completer
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New returns nil when no API key is configured, so callers can treat the
// integration as absent.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Complete sends the conversation and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []core.ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role(m.Role), Content: m.Content})
	}
	return c.complete(ctx, req)
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	c.logger.DebugContext(ctx, "Chat completion finished",
		"model", req.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func role(r string) string {
	switch r {
	case core.RoleSystem:
		return openai.ChatMessageRoleSystem
	case core.RoleUser:
		return openai.ChatMessageRoleUser
	default:
		return openai.ChatMessageRoleAssistant
	}
}

const statementPrompt = `You are an intelligent financial assistant. I will provide you with text extracted from a bank statement or transaction file.
Your task is to identify and extract all financial transactions from this text.

For each transaction, extract:
- date: The date of the transaction in ISO 8601 format (YYYY-MM-DD). If the year is missing, assume %d.
- description: A brief description or payee name. Clean up extra whitespace or codes.
- amount: The absolute numeric value of the transaction (positive number).
- type: 'credit' if it is a deposit/income, 'debit' if it is a withdrawal/expense.
- category: An educated guess based on the description (e.g. 'Groceries', 'Rent', 'Salary', 'Utilities', 'Entertainment', 'Dining', 'Shopping', 'Transfer', 'Other').

Return the output ONLY as a valid JSON array of objects. Do not include markdown formatting.

Example output:
[{"date": "2023-10-15", "description": "Starbucks Coffee", "amount": 5.50, "type": "debit", "category": "Dining"},
 {"date": "2023-10-16", "description": "Salary Deposit", "amount": 3000.00, "type": "credit", "category": "Salary"}]`

// ParseStatement asks the model to extract transactions from statement
// text. Markdown code fences around the answer are tolerated.
func (c *Client) ParseStatement(ctx context.Context, text string, year int) ([]core.ImportCandidate, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(statementPrompt, year)},
			{Role: openai.ChatMessageRoleUser, Content: "Here is the text content:\n" + text},
		},
	}
	raw, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	var out []core.ImportCandidate
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		c.logger.ErrorContext(ctx, "Statement parse failed", "error", err, "response_prefix", prefix(raw, 200))
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	c.logger.InfoContext(ctx, "Parsed statement", "transactions", len(out))
	return out, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
