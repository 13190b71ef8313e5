package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spendrag/internal/core"
	"spendrag/internal/detect"
)

var (
	subscriptionsMinOccurrences int
	upcomingDays                int
	anomalyDays                 int
)

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "List recurring payments detected in the ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		minOcc := cfg.SubscriptionMinOccurrences
		if cmd.Flags().Changed("min-occurrences") {
			minOcc = subscriptionsMinOccurrences
		}
		subs, err := app.Detectors.Recurring().Detect(cmd.Context(), minOcc)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, subs)
		}
		if len(subs) == 0 {
			fmt.Fprintln(out, "no recurring payments found")
			return nil
		}
		var annual float64
		for _, s := range subs {
			annual += s.AnnualCost
			fmt.Fprintf(out, "%-20s %-24s %9.2f TL  %-14s next %s (%d days)\n",
				s.Merchant, s.NameNorm, s.AverageAmount, s.Period.Label(), s.NextPayment, s.DaysUntilNext)
		}
		fmt.Fprintf(out, "estimated annual cost: %.2f TL\n", core.RoundAmount(annual))
		return nil
	},
}

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List recurring payments due within the next days",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		days := cfg.UpcomingWindowDays
		if cmd.Flags().Changed("days") {
			days = upcomingDays
		}
		if days < 0 {
			return fmt.Errorf("days must not be negative")
		}
		subs, err := app.Detectors.Recurring().Detect(cmd.Context(), cfg.SubscriptionMinOccurrences)
		if err != nil {
			return err
		}
		due := detect.FilterUpcoming(subs, days)

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, due)
		}
		if len(due) == 0 {
			fmt.Fprintf(out, "no payments due in the next %d days\n", days)
			return nil
		}
		for _, s := range due {
			fmt.Fprintf(out, "%s  %-20s %-24s %9.2f TL  (in %d days)\n",
				s.NextPayment, s.Merchant, s.NameNorm, s.AverageAmount, s.DaysUntilNext)
		}
		return nil
	},
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Flag unusually large item amounts in the trailing window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		days := cfg.AnomalyTrailingDays
		if cmd.Flags().Changed("days") {
			days = anomalyDays
		}
		if days < 1 {
			return fmt.Errorf("days must be at least 1")
		}
		res, err := app.Detectors.Anomaly().Detect(cmd.Context(), days)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		if len(res.Anomalies) == 0 {
			fmt.Fprintf(out, "no anomalies in the last %d days\n", days)
		}
		for _, a := range res.Anomalies {
			fmt.Fprintf(out, "[%s] %s\n", a.Severity, a.Message)
		}
		for _, s := range res.Skipped {
			fmt.Fprintf(out, "skipped %s: %s\n", s.Key, s.Reason)
		}
		return nil
	},
}

func init() {
	subscriptionsCmd.Flags().IntVar(&subscriptionsMinOccurrences, "min-occurrences", detect.DefaultMinOccurrences,
		"payments needed before a series counts as recurring (overrides SUBSCRIPTION_MIN_OCCURRENCES)")
	upcomingCmd.Flags().IntVar(&upcomingDays, "days", detect.DefaultUpcomingDays, "look-ahead window in days (overrides UPCOMING_WINDOW_DAYS)")
	anomaliesCmd.Flags().IntVar(&anomalyDays, "days", detect.DefaultTrailingDays, "trailing window in days (overrides ANOMALY_TRAILING_DAYS)")
	rootCmd.AddCommand(subscriptionsCmd, upcomingCmd, anomaliesCmd)
}
