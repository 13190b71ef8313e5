package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spendrag/internal/core"
	"spendrag/internal/log"
	"spendrag/internal/retrieval"
)

var (
	indexBatchSize   int
	indexConcurrency int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the semantic retrieval index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed every ledger item and write the vector index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.LLM.Embedder == nil {
			return fmt.Errorf("index build needs GEMINI_API_KEY: %w", core.ErrCapabilityUnavailable)
		}

		ctx := cmd.Context()
		items, err := app.Repo.FetchAllItems(ctx)
		if err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}

		builder := retrieval.NewBuilder(app.LLM.Embedder,
			retrieval.WithBatchSize(indexBatchSize),
			retrieval.WithConcurrency(indexConcurrency),
			retrieval.WithBuilderLogger(logger))
		idx, err := builder.Build(ctx, items)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		if err := idx.Save(cfg.IndexPath, cfg.IndexMetaPath); err != nil {
			return fmt.Errorf("save index: %w", err)
		}
		logger.Info("Index written",
			log.FieldOperation, log.OpBuild,
			"vectors", idx.Size(),
			"dim", idx.Dim(),
			"index", cfg.IndexPath,
			"meta", cfg.IndexMetaPath)

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, map[string]any{
				"vectors": idx.Size(),
				"dim":     idx.Dim(),
				"index":   cfg.IndexPath,
				"meta":    cfg.IndexMetaPath,
			})
		}
		fmt.Fprintf(out, "indexed %d items (dim %d) into %s\n", idx.Size(), idx.Dim(), cfg.IndexPath)
		return nil
	},
}

func init() {
	indexBuildCmd.Flags().IntVar(&indexBatchSize, "batch-size", retrieval.DefaultBatchSize, "documents per embedding call")
	indexBuildCmd.Flags().IntVar(&indexConcurrency, "concurrency", retrieval.DefaultConcurrency, "embedding calls in flight")
	indexCmd.AddCommand(indexBuildCmd)
	rootCmd.AddCommand(indexCmd)
}
