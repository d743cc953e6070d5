package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Format: FormatJSON, Component: ComponentApp, Output: buf})
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, slog.LevelInfo).With("service", "fintrack")

	logger.WithComponent(ComponentCache).Info("hello")

	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "cache", entries[0][FieldComponent])
	assert.Equal(t, "fintrack", entries[0]["service"])
	assert.Equal(t, 1, strings.Count(buf.String(), `"component"`))
}

func TestStructuredLogger_HTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, slog.LevelInfo))
	r := httptest.NewRequest(http.MethodGet, "/dashboard/kpis?filter_type=week", nil)

	sl.LogHTTPEnd(context.Background(), r, "req_1", http.StatusOK, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, "req_2", http.StatusNotFound, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, "req_3", http.StatusInternalServerError, 3, "10.0.0.1")

	entries := lines(t, &buf)
	require.Len(t, entries, 3)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "WARN", entries[1]["level"])
	assert.Equal(t, "ERROR", entries[2]["level"])
	assert.Equal(t, "filter_type=week", entries[0][FieldQuery])
	assert.Equal(t, "req_2", entries[1][FieldRequestID])
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, slog.LevelInfo))

	sl.LogError(context.Background(), "Request failed", errors.New("boom"), OpList, NewFields().WithUserID("u1"))
	sl.LogError(context.Background(), "Request failed", errors.New("bang"), OpRead, nil)

	entries := lines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "boom", entries[0][FieldError])
	assert.Equal(t, "u1", entries[0][FieldUserID])
	assert.Equal(t, OpRead, entries[1][FieldOperation])
}

func TestRequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, slog.LevelInfo)

	handler := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_abc" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req_abc", entries[0][FieldRequestID])
	assert.Equal(t, "app", entries[0][FieldComponent])
}

func TestFromContextDefault(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, "unknown", logger.Component())
}
