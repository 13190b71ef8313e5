package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"spendrag/internal/core"
	"spendrag/internal/log"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build and read the precomputed monthly reports",
}

var reportBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Recompute the monthly report tables from the ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.Repo.BuildReports(cmd.Context())
		if err != nil {
			return fmt.Errorf("build reports: %w", err)
		}
		logger.Info("Reports rebuilt",
			log.FieldOperation, log.OpBuild,
			"months", stats.Months,
			"categories", stats.Categories,
			"top_items", stats.TopItems)

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, stats)
		}
		fmt.Fprintf(out, "built reports for %d months (%d category rows, %d top items)\n",
			stats.Months, stats.Categories, stats.TopItems)
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <YYYY-MM>",
	Short: "Print one month's report from the configured source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		month := args[0]
		if _, err := core.ParseMonth(month); err != nil {
			return fmt.Errorf("%q: %w", month, err)
		}
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.Reports == nil {
			return fmt.Errorf("report source %q: %w", cfg.ReportSource, core.ErrCapabilityUnavailable)
		}
		report, err := app.Reports.MonthlyReport(cmd.Context(), month)
		switch {
		case errors.Is(err, core.ErrNoMatch):
			return fmt.Errorf("no report for %s", month)
		case err != nil:
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, report)
		}
		fmt.Fprintf(out, "%s: %.2f TL over %d items\n", report.Month, report.Total, report.ItemCount)
		for _, b := range report.ByCategory {
			fmt.Fprintf(out, "  %-16s %10.2f TL  (%d)\n", b.Key, b.Amount, b.Count)
		}
		if len(report.TopItems) > 0 {
			fmt.Fprintln(out, "top items:")
			for i, it := range report.TopItems {
				fmt.Fprintf(out, "  %2d. %-28s %10.2f TL  x%d\n", i+1, it.Name, it.Amount, it.Count)
			}
		}
		return nil
	},
}

func init() {
	reportCmd.AddCommand(reportBuildCmd, reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}
