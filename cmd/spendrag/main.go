package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spendrag/internal/cli"
	"spendrag/internal/config"
	"spendrag/internal/log"
)

var (
	cfg        *config.Config
	logger     *log.Logger
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "spendrag",
	Short: "Ask questions about your receipts",
	Long: "Answers free-form spending questions over a ledger of extracted receipt items, " +
		"detects subscriptions and anomalies, and checks monthly budgets.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		c, err := cli.LoadAndValidateConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// openApp wires the application for one command. Callers close it.
func openApp(cmd *cobra.Command) (*cli.App, error) {
	return cli.NewApp(cmd.Context(), cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
