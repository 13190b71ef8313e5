package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spendrag/internal/core"
)

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return fmt.Errorf("budget %q: %w", b.Category, err)
	}
	if err := r.queries.UpsertBudget(ctx, b.Category, b.MonthlyLimit, b.AlertThreshold); err != nil {
		return fmt.Errorf("upsert budget %s: %w", b.Category, err)
	}
	return nil
}

// UpsertBudgets writes every budget in one transaction; nothing is written
// when any budget is invalid.
func (r *SQLiteRepository) UpsertBudgets(ctx context.Context, budgets []core.Budget) error {
	for i := range budgets {
		budgets[i].Category = strings.TrimSpace(budgets[i].Category)
		if err := budgets[i].Validate(); err != nil {
			return fmt.Errorf("budget %q: %w", budgets[i].Category, err)
		}
	}
	return r.withTx(ctx, func(q *Queries) error {
		for _, b := range budgets {
			if err := q.UpsertBudget(ctx, b.Category, b.MonthlyLimit, b.AlertThreshold); err != nil {
				return fmt.Errorf("upsert budget %s: %w", b.Category, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, category string) (core.Budget, error) {
	row, err := r.queries.GetBudget(ctx, category)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", category, core.ErrBudgetNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", category, err)
	}
	return budgetFromRow(row), nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, 0, len(rows))
	for _, row := range rows {
		out = append(out, budgetFromRow(row))
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, category string) error {
	n, err := r.queries.DeleteBudget(ctx, category)
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", category, err)
	}
	if n == 0 {
		return fmt.Errorf("budget %s: %w", category, core.ErrBudgetNotFound)
	}
	return nil
}

// SpendByCategory sums item amounts per category for the year-month label.
func (r *SQLiteRepository) SpendByCategory(ctx context.Context, month string) (map[string]float64, error) {
	t, err := core.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	from, to := core.MonthBounds(t.Year(), t.Month())
	items, err := r.FetchItems(ctx, core.ItemFilter{DateFrom: from, DateTo: to})
	if err != nil {
		return nil, err
	}
	sums := map[string]decimal.Decimal{}
	for _, it := range items {
		if it.Amount == nil {
			continue
		}
		c := it.CategoryOrDefault()
		sums[c] = sums[c].Add(decimal.NewFromFloat(*it.Amount))
	}
	out := make(map[string]float64, len(sums))
	for c, d := range sums {
		out[c] = d.Round(2).InexactFloat64()
	}
	return out, nil
}

// RecordAlert stores a non-ok status and reports whether it is new for its
// category, month and level.
func (r *SQLiteRepository) RecordAlert(ctx context.Context, s core.BudgetStatus) (bool, error) {
	inserted, err := r.queries.InsertBudgetAlert(ctx, BudgetAlertRow{
		ID:          uuid.NewString(),
		Category:    s.Category,
		Month:       s.Month,
		Level:       string(s.Level),
		Spent:       s.Spent,
		LimitAmount: s.Limit,
		Ratio:       s.Ratio,
	})
	if err != nil {
		return false, fmt.Errorf("record alert %s/%s: %w", s.Category, s.Month, err)
	}
	return inserted, nil
}

func (r *SQLiteRepository) ListAlerts(ctx context.Context, month string) ([]core.BudgetAlert, error) {
	rows, err := r.queries.ListBudgetAlerts(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("list alerts %s: %w", month, err)
	}
	out := make([]core.BudgetAlert, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.BudgetAlert{
			ID: row.ID,
			BudgetStatus: core.BudgetStatus{
				Category: row.Category,
				Month:    row.Month,
				Limit:    row.LimitAmount,
				Spent:    row.Spent,
				Ratio:    row.Ratio,
				Level:    core.BudgetLevel(row.Level),
			},
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func budgetFromRow(row BudgetRow) core.Budget {
	return core.Budget{
		Category:       row.Category,
		MonthlyLimit:   row.MonthlyLimit,
		AlertThreshold: row.AlertThreshold,
	}
}
