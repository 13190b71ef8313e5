package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendrag/internal/budget"
	"spendrag/internal/core"
	"spendrag/internal/router"
	"spendrag/internal/storage"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	expected := []string{
		"ask", "serve", "import", "index", "report", "subscriptions",
		"upcoming", "anomalies", "budget", "cache", "sheets-auth", "alerts",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestNestedCommands(t *testing.T) {
	tests := []struct {
		parent   string
		children []string
	}{
		{"index", []string{"build"}},
		{"report", []string{"build", "show"}},
		{"budget", []string{"set", "import", "list", "delete", "check", "alerts"}},
		{"cache", []string{"stats", "clear"}},
		{"alerts", []string{"watch"}},
	}
	for _, tt := range tests {
		t.Run(tt.parent, func(t *testing.T) {
			parent, _, err := rootCmd.Find([]string{tt.parent})
			require.NoError(t, err)
			names := make(map[string]bool)
			for _, c := range parent.Commands() {
				names[c.Name()] = true
			}
			for _, name := range tt.children {
				assert.True(t, names[name], "expected %s %s", tt.parent, name)
			}
		})
	}
}

func TestCommandFlags(t *testing.T) {
	flag := cacheClearCmd.Flags().Lookup("older-than")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)

	flag = budgetSetCmd.Flags().Lookup("threshold")
	require.NotNil(t, flag)
	assert.Equal(t, "0.8", flag.DefValue)

	flag = upcomingCmd.Flags().Lookup("days")
	require.NotNil(t, flag)
	assert.Equal(t, "7", flag.DefValue)

	flag = indexBuildCmd.Flags().Lookup("batch-size")
	require.NotNil(t, flag)
	assert.Equal(t, "32", flag.DefValue)

	require.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
}

const fixtureReceipts = `[
  {
    "source_path": "receipts/a.jpg",
    "merchant": "MIGROS",
    "date": "2025-03-04",
    "items": [
      {"name": "SU 1,5L", "qty": 6, "unit": "adet", "amount": "45,00", "category": "icecek"},
      {"name": "EKMEK", "qty": 1, "amount": 20.5, "category": "gida"}
    ]
  },
  {
    "source_path": "receipts/b.jpg",
    "merchant": "A101",
    "date": "2025-03-20",
    "items": [
      {"name": "DETERJAN", "qty": 1, "amount": 80, "category": "temizlik"}
    ]
  }
]`

func setupEnv(t *testing.T) string {
	dir := t.TempDir()
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "ledger.sqlite"))
	t.Setenv("INDEX_PATH", filepath.Join(dir, "items.vec"))
	t.Setenv("INDEX_META_PATH", filepath.Join(dir, "items.meta.jsonl"))
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("REPORT_SOURCE", "sqlite")
	t.Setenv("CACHE_BACKEND", "sqlite")
	t.Setenv("CACHE_ENABLED", "true")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEndToEnd(t *testing.T) {
	dir := setupEnv(t)
	receipts := filepath.Join(dir, "receipts.json")
	require.NoError(t, os.WriteFile(receipts, []byte(fixtureReceipts), 0644))

	out, err := run(t, "import", "--json", receipts)
	require.NoError(t, err)
	var stats storage.ImportStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Receipts)
	assert.Equal(t, 3, stats.Items)

	out, err = run(t, "import", "--json", receipts)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 0, stats.Receipts)
	assert.Equal(t, 2, stats.Duplicates)

	out, err = run(t, "report", "build")
	require.NoError(t, err)
	assert.Contains(t, out, "built reports for 1 months")

	out, err = run(t, "report", "show", "--json", "2025-03")
	require.NoError(t, err)
	var report core.MonthlyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.ItemCount)
	assert.InDelta(t, 145.5, report.Total, 0.001)

	_, err = run(t, "report", "show", "2024-01")
	assert.Error(t, err)

	_, err = run(t, "budget", "set", "icecek", "50")
	require.NoError(t, err)

	out, err = run(t, "budget", "check", "--json", "2025-03")
	require.NoError(t, err)
	var res budget.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Statuses, 1)
	assert.Equal(t, core.BudgetWarning, res.Statuses[0].Level)
	assert.Len(t, res.Alerts, 1)

	out, err = run(t, "budget", "check", "--json", "2025-03")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.Alerts)

	_, err = run(t, "budget", "set", "icecek", "0")
	assert.ErrorIs(t, err, core.ErrInvalidLimit)

	out, err = run(t, "ask", "--json", "kaç litre su aldım?")
	require.NoError(t, err)
	var ans router.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	assert.Equal(t, core.OutcomeOK.String(), ans.Outcome)
	assert.False(t, ans.Cached)

	out, err = run(t, "ask", "--json", "kaç litre su aldım?")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	assert.True(t, ans.Cached)

	out, err = run(t, "cache", "stats", "--json")
	require.NoError(t, err)
	var cs core.CacheStats
	require.NoError(t, json.Unmarshal([]byte(out), &cs))
	assert.Equal(t, 1, cs.Entries)
	assert.Equal(t, 1, cs.TotalHits)

	out, err = run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 cached answers")
}

func TestInvalidConfigFailsBeforeRunning(t *testing.T) {
	setupEnv(t)
	t.Setenv("LLM_PROVIDER", "openai")

	_, err := run(t, "cache", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid LLM provider 'openai'")
}
