package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"spendrag/internal/budget"
	"spendrag/internal/core"
)

var budgetThreshold float64

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage monthly category budgets",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set <category> <monthly-limit>",
	Short: "Create or replace one category budget",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("monthly limit %q: %w", args[1], core.ErrInvalidLimit)
		}
		b := core.Budget{Category: args[0], MonthlyLimit: limit, AlertThreshold: budgetThreshold}
		if err := b.Validate(); err != nil {
			return err
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Repo.UpsertBudget(cmd.Context(), b); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "budget %s: %.2f TL, alert at %.0f%%\n", b.Category, b.MonthlyLimit, b.AlertThreshold*100)
		return nil
	},
}

var budgetImportCmd = &cobra.Command{
	Use:   "import <budgets.yaml>",
	Short: "Create or replace budgets from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open budgets: %w", err)
		}
		defer f.Close()
		budgets, err := budget.Decode(f)
		if err != nil {
			return err
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Repo.UpsertBudgets(cmd.Context(), budgets); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d budgets\n", len(budgets))
		return nil
	},
}

var budgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured budgets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		budgets, err := app.Repo.ListBudgets(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, budgets)
		}
		for _, b := range budgets {
			fmt.Fprintf(out, "%-16s %10.2f TL  alert at %.0f%%\n", b.Category, b.MonthlyLimit, b.AlertThreshold*100)
		}
		return nil
	},
}

var budgetDeleteCmd = &cobra.Command{
	Use:   "delete <category>",
	Short: "Remove a category budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Repo.DeleteBudget(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted budget %s\n", args[0])
		return nil
	},
}

var budgetCheckCmd = &cobra.Command{
	Use:   "check [YYYY-MM]",
	Short: "Compare a month's spend with its budgets and record alerts",
	Long:  "Checks the given month, or the current one, and records warning, exceeded and critical statuses as alerts.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		month := time.Now().UTC().Format(core.MonthLayout)
		if len(args) == 1 {
			month = args[0]
		}
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Budgets.Check(cmd.Context(), month)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		if len(res.Statuses) == 0 {
			fmt.Fprintln(out, "no budgets configured")
			return nil
		}
		for _, s := range res.Statuses {
			fmt.Fprintf(out, "[%s] %s\n", s.Level, budget.Message(s))
		}
		if len(res.Alerts) > 0 {
			fmt.Fprintf(out, "%d new alerts recorded\n", len(res.Alerts))
		}
		return nil
	},
}

var budgetAlertsCmd = &cobra.Command{
	Use:   "alerts <YYYY-MM>",
	Short: "List alerts recorded for a month",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		alerts, err := app.Repo.ListAlerts(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, alerts)
		}
		for _, a := range alerts {
			fmt.Fprintf(out, "%s [%s] %s\n", a.CreatedAt, a.Level, budget.Message(a.BudgetStatus))
		}
		return nil
	},
}

func init() {
	budgetSetCmd.Flags().Float64Var(&budgetThreshold, "threshold", core.DefaultAlertThreshold, "share of the limit that triggers a warning (0-1]")
	budgetCmd.AddCommand(budgetSetCmd, budgetImportCmd, budgetListCmd, budgetDeleteCmd, budgetCheckCmd, budgetAlertsCmd)
	rootCmd.AddCommand(budgetCmd)
}
