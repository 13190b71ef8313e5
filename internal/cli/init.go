// Package cli provides common CLI initialization utilities.
// This package consolidates the initialization shared by cmd/spendrag and
// cmd/detector-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendrag/internal/config"
	"spendrag/internal/log"
	"spendrag/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(level, format string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Format:    format,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// EnvFileVar names a dotenv file to load instead of ./.env.
const EnvFileVar = "SPENDRAG_ENV_FILE"

// LoadEnvFile loads dotenv settings for local development. Variables already
// present in the environment win. A missing file is not an error.
func LoadEnvFile() {
	if path := os.Getenv(EnvFileVar); path != "" {
		_ = godotenv.Load(path)
		return
	}
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite opens the ledger at dbPath, applying pending migrations.
func InitSQLite(logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "path", dbPath)
		return nil, fmt.Errorf("open ledger %s: %w", dbPath, err)
	}
	logger.Debug("Ledger opened", "path", dbPath, "schema_version", repo.SchemaVersion())
	return repo, nil
}

// GracefulShutdown returns a context cancelled by SIGINT, SIGTERM or parent.
// Once it is cancelled, cleanup runs with its own timeout and the returned
// channel closes.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown, "timeout", timeout)

		drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if cleanup != nil {
			cleanup(drainCtx)
		}
		if errors.Is(drainCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until ctx is cancelled and cleanup has finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
