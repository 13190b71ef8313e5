package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spendrag/internal/core"
)

var cacheOlderThan string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the answer cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show answer cache entries and hit rate",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.Cache == nil {
			return fmt.Errorf("answer cache disabled (CACHE_ENABLED=false): %w", core.ErrCapabilityUnavailable)
		}
		stats, err := app.Cache.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, stats)
		}
		fmt.Fprintf(out, "entries: %d\nhits: %d\nhit rate: %.2f\n", stats.Entries, stats.TotalHits, stats.HitRate)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached answers, all or only older ones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var age time.Duration
		if cacheOlderThan != "" {
			d, err := time.ParseDuration(cacheOlderThan)
			if err != nil || d <= 0 {
				return fmt.Errorf("--older-than must be a positive duration like 24h")
			}
			age = d
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.Cache == nil {
			return fmt.Errorf("answer cache disabled (CACHE_ENABLED=false): %w", core.ErrCapabilityUnavailable)
		}
		var removed int
		if age > 0 {
			removed, err = app.Cache.Prune(cmd.Context(), age)
		} else {
			removed, err = app.Cache.Clear(cmd.Context())
		}
		if err != nil {
			return err
		}
		logger.Info("Answer cache cleared", "removed", removed, "older_than", cacheOlderThan)
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached answers\n", removed)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheOlderThan, "older-than", "", "only remove entries older than this duration (e.g. 24h)")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
