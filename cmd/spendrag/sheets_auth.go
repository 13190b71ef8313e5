package main

import (
	"time"

	"github.com/spf13/cobra"

	"spendrag/internal/cli"
	"spendrag/internal/config"
	"spendrag/internal/reports"
)

var sheetsAuthTimeout time.Duration

// sheetsAuthCmd skips config validation: the token it writes is what a
// sheets report source without a service account is missing.
var sheetsAuthCmd = &cobra.Command{
	Use:   "sheets-auth",
	Short: "Authorize read access to the report spreadsheet with a Google account",
	Long: "Runs the OAuth consent flow for GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE and saves " +
		"the token to GOOGLE_OAUTH_TOKEN_FILE. The redirect listens on localhost:OAUTH_REDIRECT_PORT.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cli.LoadEnvFile()
		cfg = config.Load()
		logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		oc, err := reports.OAuthClientConfig(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
		if err != nil {
			return err
		}
		return reports.Authorize(cmd.Context(), oc, reports.AuthorizeOptions{
			RedirectPort: cfg.OAuthRedirectPort,
			TokenFile:    cfg.GoogleOAuthTokenFile,
			Timeout:      sheetsAuthTimeout,
			Out:          cmd.OutOrStdout(),
		})
	},
}

func init() {
	sheetsAuthCmd.Flags().DurationVar(&sheetsAuthTimeout, "timeout", 5*time.Minute, "how long to wait for the browser redirect")
	rootCmd.AddCommand(sheetsAuthCmd)
}
