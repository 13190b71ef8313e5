package main

import (
	"context"
	"os"
	"time"

	"spendrag/internal/amqp"
	"spendrag/internal/budget"
	"spendrag/internal/cli"
	"spendrag/internal/detect"
	"spendrag/internal/log"
	"spendrag/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		bootLogger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting detector-worker", log.FieldOperation, log.OpStartup)

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		os.Exit(1)
	}
	defer repo.Close()

	// Alerts go to AMQP when configured; otherwise findings are only logged
	var publisher amqp.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, findings will only be logged", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - findings will only be logged")
	}

	runCfg := detect.RunConfig{
		MinOccurrences: cfg.SubscriptionMinOccurrences,
		UpcomingDays:   cfg.UpcomingWindowDays,
		TrailingDays:   cfg.AnomalyTrailingDays,
	}
	runner := detect.NewRunner(repo,
		detect.WithMinOccurrences(cfg.SubscriptionMinOccurrences),
		detect.WithLogger(logger))
	w := worker.NewDetectorWorker(runner, budget.NewChecker(repo, logger), publisher, runCfg, worker.WithLogger(logger))

	logger.Info("Detector worker configured",
		"interval", cfg.DetectorInterval,
		"min_occurrences", runCfg.MinOccurrences,
		"upcoming_days", runCfg.UpcomingDays,
		"trailing_days", runCfg.TrailingDays,
		"sqlite_db", cfg.SQLiteDBPath)

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, nil)

	// Start blocks until the shutdown signal cancels ctx
	w.Start(ctx, cfg.DetectorInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Detector-worker shutdown complete")
}

