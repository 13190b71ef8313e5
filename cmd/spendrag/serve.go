package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"spendrag/internal/cli"
	apphttp "spendrag/internal/http"
	"spendrag/internal/log"
)

var (
	servePort           string
	serveOrigins        []string
	serveRequestsPerMin int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		port := cfg.Port
		if servePort != "" {
			port = servePort
		}
		srv := apphttp.NewServer(":"+port, app.HTTPDeps(), apphttp.Options{
			AllowedOrigins:    serveOrigins,
			RequestsPerMinute: serveRequestsPerMin,
			Logger:            logger,
		})

		ctx, done := cli.GracefulShutdown(cmd.Context(), logger, 30*time.Second, func(ctx context.Context) {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Server shutdown error", log.FieldError, err)
			}
		})

		logger.Info("Starting spendrag server", "port", port, log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", port)
			return err
		}

		cli.WaitForShutdown(ctx, done)
		logger.Info("Server stopped gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides PORT)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allowed-origins", nil, "CORS allowed origins (default *)")
	serveCmd.Flags().IntVar(&serveRequestsPerMin, "rate-limit", 60, "requests per minute per client on /api")
	rootCmd.AddCommand(serveCmd)
}
