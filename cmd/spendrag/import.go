package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"spendrag/internal/core"
	"spendrag/internal/log"
	"spendrag/internal/storage"
	"spendrag/internal/textnorm"
)

var importFallbackCategory string

var importCmd = &cobra.Command{
	Use:   "import <receipts.json>",
	Short: "Import extracted receipts into the ledger",
	Long: "Reads a JSON array of extracted receipts, normalizes item names, categorizes " +
		"uncategorized items and writes them in one transaction. Receipts already imported are skipped.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open receipts: %w", err)
		}
		defer f.Close()

		docs, err := storage.DecodeReceipts(f)
		if err != nil {
			return err
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		categorizer := textnorm.NewCategorizer(textnorm.DefaultRules, importFallbackCategory)
		stats, err := app.Repo.ImportReceipts(cmd.Context(), docs, categorizer)
		if err != nil {
			return fmt.Errorf("import receipts: %w", err)
		}
		logger.Info("Import complete",
			log.FieldOperation, log.OpImport,
			"file", args[0],
			"receipts", stats.Receipts,
			"items", stats.Items,
			"duplicates", stats.Duplicates)

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, stats)
		}
		fmt.Fprintf(out, "imported %d receipts (%d items), skipped %d duplicates and %d unusable items\n",
			stats.Receipts, stats.Items, stats.Duplicates, stats.SkippedItems)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFallbackCategory, "fallback-category", core.DefaultCategory,
		"category for items no keyword rule matches")
	rootCmd.AddCommand(importCmd)
}
