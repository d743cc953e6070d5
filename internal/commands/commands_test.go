package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/storage"
	"fintrack/internal/storage/sqlite"
)

func isolateEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DATA_BACKEND", "SQLITE_DB_PATH", "POSTGRES_DSN", "AMQP_URL",
		"AMQP_EXCHANGE", "CACHE_TTL", "CACHE_MAX_ENTRIES", "REQUEST_TIMEOUT",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "LOG_LEVEL",
		"LOG_FORMAT", "RATE_LIMIT_PER_MINUTE", "TRUSTED_PROXIES",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "import"}, names)
}

func TestMigrate_Memory(t *testing.T) {
	isolateEnv(t, nil)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to migrate")
}

func TestMigrate_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	isolateEnv(t, map[string]string{"DATA_BACKEND": "sqlite", "SQLITE_DB_PATH": path})

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")
	assert.FileExists(t, path)
}

func TestMigrate_InvalidConfig(t *testing.T) {
	isolateEnv(t, map[string]string{"DATA_BACKEND": "sheets"})

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestImport_Reviewed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fintrack.db")
	isolateEnv(t, map[string]string{"DATA_BACKEND": "sqlite", "SQLITE_DB_PATH": path})

	reviewed := filepath.Join(dir, "reviewed.json")
	require.NoError(t, os.WriteFile(reviewed, []byte(`{
		"transactions": [
			{"date": "2025-03-03", "description": "Coffee", "amount": -3.5, "type": "debit", "category": "Food"},
			{"date": "2025-03-04", "description": "Refund", "amount": 12, "type": "credit", "category": "Other"}
		]
	}`), 0o644))

	out, err := execute(t, "import", "--user", "u1", "--file", reviewed, "--reviewed")
	require.NoError(t, err)

	var result struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Count)

	repo, err := sqlite.NewRepository(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	page, total, err := repo.ListTransactions(context.Background(), storage.ListQuery{OwnerID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, tx := range page {
		assert.Equal(t, "Other", tx.PaymentMethod)
	}
}

func TestImport_StatementWithoutModel(t *testing.T) {
	dir := t.TempDir()
	isolateEnv(t, nil)

	statement := filepath.Join(dir, "march.csv")
	require.NoError(t, os.WriteFile(statement, []byte("date,amount\n2025-03-01,10\n"), 0o644))

	_, err := execute(t, "import", "--user", "u1", "--file", statement)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestImport_RequiresUser(t *testing.T) {
	isolateEnv(t, nil)

	_, err := execute(t, "import", "--file", "x.csv")
	assert.Error(t, err)
}
