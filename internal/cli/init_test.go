package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendrag/internal/log"
)

func TestGracefulShutdown_RunsCleanupWhenParentCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cleaned := make(chan bool, 1)

	ctx, done := GracefulShutdown(parent, log.Discard(), time.Second, func(drainCtx context.Context) {
		_, hasDeadline := drainCtx.Deadline()
		cleaned <- hasDeadline
	})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	WaitForShutdown(ctx, done)
	assert.Error(t, ctx.Err())
	assert.True(t, <-cleaned, "cleanup context should carry the shutdown timeout")
}

func TestLoadEnvFile_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SPENDRAG_TEST_ONLY=from-file\nLOG_LEVEL=debug\n"), 0600))
	t.Setenv(EnvFileVar, path)
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("SPENDRAG_TEST_ONLY") })

	LoadEnvFile()

	assert.Equal(t, "from-file", os.Getenv("SPENDRAG_TEST_ONLY"))
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"), "existing variables are not overridden")
}

func TestInitSQLite_ReportsSchemaVersion(t *testing.T) {
	repo, err := InitSQLite(log.Discard(), filepath.Join(t.TempDir(), "nested", "ledger.sqlite"))
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, uint(4), repo.SchemaVersion())
}
