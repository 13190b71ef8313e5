package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a spending question",
	Long:  "Interprets the question, routes it to a report, term lookup, aggregation or semantic retrieval, and prints the answer.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ans, err := app.Answerer.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, ans)
		}
		fmt.Fprintln(out, ans.Text)
		if ans.Evidence != "" {
			fmt.Fprintf(out, "\nKanıt:\n%s\n", ans.Evidence)
		}
		if ans.Cached {
			fmt.Fprintln(out, "\n(önbellekten)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
