package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

// fakeAPI serves /chat/completions with a fixed answer and records the
// last request.
func fakeAPI(t *testing.T, answer string, status int) (*Client, *openai.ChatCompletionRequest) {
	t.Helper()
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   got.Model,
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": answer}}},
			"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)

	c := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "test-model"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NotNil(t, c)
	return c, &got
}

func TestNew_WithoutKey(t *testing.T) {
	assert.Nil(t, New(Config{}, nil))
}

func TestComplete(t *testing.T) {
	c, got := fakeAPI(t, "  Your balance is 849.50.\n", http.StatusOK)

	reply, err := c.Complete(context.Background(), []core.ChatMessage{
		{Role: core.RoleSystem, Content: "rules"},
		{Role: core.RoleUser, Content: "balance?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Your balance is 849.50.", reply)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "balance?", got.Messages[1].Content)
}

func TestComplete_APIError(t *testing.T) {
	c, _ := fakeAPI(t, "", http.StatusTooManyRequests)

	_, err := c.Complete(context.Background(), []core.ChatMessage{{Role: core.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestParseStatement(t *testing.T) {
	answer := "```json\n[{\"date\":\"2025-03-01\",\"description\":\"Coffee\",\"amount\":3.5,\"type\":\"debit\",\"category\":\"Dining\"}]\n```"
	c, got := fakeAPI(t, answer, http.StatusOK)

	out, err := c.ParseStatement(context.Background(), "01/03 COFFEE -3.50", 2025)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Coffee", out[0].Description)
	assert.Equal(t, "3.50", out[0].Amount.String())
	assert.Equal(t, "debit", out[0].Type)

	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[0].Content, "assume 2025")
	assert.Contains(t, got.Messages[1].Content, "COFFEE")
}

func TestParseStatement_Malformed(t *testing.T) {
	c, _ := fakeAPI(t, "Sure! Here are your transactions.", http.StatusOK)

	_, err := c.ParseStatement(context.Background(), "text", 2025)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"[]":                  "[]",
		"```json\n[1]\n```":   "[1]",
		"```\n[2]```":         "[2]",
		"  ```json [3] ```  ": "[3]",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripCodeFence(in), in)
	}
}
