package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"spendrag/internal/core"
)

// TopItemsPerMonth bounds the precomputed top-items table.
const TopItemsPerMonth = 20

// ReportStats summarizes one report build.
type ReportStats struct {
	Months     int `json:"months"`
	Categories int `json:"categories"`
	TopItems   int `json:"top_items"`
}

type monthAcc struct {
	total decimal.Decimal
	count int64
}

type topAcc struct {
	name     string
	category string
	qty      decimal.Decimal
	amount   decimal.Decimal
	count    int64
}

// BuildReports recomputes the monthly report tables from the ledger. Undated
// items are left out. The previous tables are replaced atomically.
func (r *SQLiteRepository) BuildReports(ctx context.Context) (ReportStats, error) {
	items, err := r.FetchAllItems(ctx)
	if err != nil {
		return ReportStats{}, err
	}

	months := map[string]*monthAcc{}
	categories := map[[2]string]*monthAcc{}
	tops := map[string]map[[2]string]*topAcc{}

	for _, it := range items {
		date := it.DateOrEmpty()
		if len(date) < 7 {
			continue
		}
		month := date[:7]
		amount := decimal.Zero
		if it.Amount != nil {
			amount = decimal.NewFromFloat(*it.Amount)
		}
		category := it.CategoryOrDefault()

		m := months[month]
		if m == nil {
			m = &monthAcc{}
			months[month] = m
		}
		m.total = m.total.Add(amount)
		m.count++

		ck := [2]string{month, category}
		c := categories[ck]
		if c == nil {
			c = &monthAcc{}
			categories[ck] = c
		}
		c.total = c.total.Add(amount)
		c.count++

		if tops[month] == nil {
			tops[month] = map[[2]string]*topAcc{}
		}
		tk := [2]string{it.NameNorm, category}
		t := tops[month][tk]
		if t == nil {
			t = &topAcc{name: it.NameNorm, category: category}
			tops[month][tk] = t
		}
		if it.Qty != nil {
			t.qty = t.qty.Add(decimal.NewFromFloat(*it.Qty))
		}
		t.amount = t.amount.Add(amount)
		t.count++
	}

	var stats ReportStats
	err = r.withTx(ctx, func(q *Queries) error {
		if err := q.ClearReports(ctx); err != nil {
			return fmt.Errorf("clear reports: %w", err)
		}
		for month, m := range months {
			if err := q.InsertMonthlyTotal(ctx, month, m.total.Round(2).InexactFloat64(), m.count); err != nil {
				return fmt.Errorf("insert total %s: %w", month, err)
			}
			stats.Months++
		}
		for k, c := range categories {
			if err := q.InsertMonthlyCategory(ctx, k[0], k[1], c.total.Round(2).InexactFloat64(), c.count); err != nil {
				return fmt.Errorf("insert category %s/%s: %w", k[0], k[1], err)
			}
			stats.Categories++
		}
		for month, byName := range tops {
			for i, t := range rankTopItems(byName) {
				if err := q.InsertTopItem(ctx, TopItemRow{
					Month:    month,
					Rank:     int64(i + 1),
					Name:     t.name,
					Category: t.category,
					Qty:      t.qty.Round(3).InexactFloat64(),
					Amount:   t.amount.Round(2).InexactFloat64(),
					Count:    t.count,
				}); err != nil {
					return fmt.Errorf("insert top item %s/%s: %w", month, t.name, err)
				}
				stats.TopItems++
			}
		}
		return nil
	})
	if err != nil {
		return ReportStats{}, err
	}
	return stats, nil
}

// rankTopItems orders by amount descending, then name, and keeps the top
// TopItemsPerMonth.
func rankTopItems(byName map[[2]string]*topAcc) []*topAcc {
	out := make([]*topAcc, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].amount.Cmp(out[j].amount); c != 0 {
			return c > 0
		}
		if out[i].name != out[j].name {
			return out[i].name < out[j].name
		}
		return out[i].category < out[j].category
	})
	if len(out) > TopItemsPerMonth {
		out = out[:TopItemsPerMonth]
	}
	return out
}

// MonthlyReport reads the precomputed report for month. It fails with
// core.ErrCapabilityUnavailable when reports were never built and with
// core.ErrNoMatch when the month has no row.
func (r *SQLiteRepository) MonthlyReport(ctx context.Context, month string) (core.MonthlyReport, error) {
	n, err := r.queries.CountReportMonths(ctx)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("count report months: %w", err)
	}
	if n == 0 {
		return core.MonthlyReport{}, fmt.Errorf("reports not built: %w", core.ErrCapabilityUnavailable)
	}

	total, count, err := r.queries.GetMonthlyTotal(ctx, month)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyReport{}, fmt.Errorf("month %s: %w", month, core.ErrNoMatch)
	}
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("read monthly total: %w", err)
	}

	report := core.MonthlyReport{Month: month, Total: total, ItemCount: int(count)}

	cats, err := r.queries.ListMonthlyCategories(ctx, month)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("read monthly categories: %w", err)
	}
	for _, c := range cats {
		report.ByCategory = append(report.ByCategory, core.Bucket{Key: c.Category, Amount: c.Total, Count: int(c.ItemCount)})
	}

	top, err := r.queries.ListTopItems(ctx, month, TopItemsPerMonth)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("read top items: %w", err)
	}
	for _, t := range top {
		report.TopItems = append(report.TopItems, core.ReportItem{
			Name:     t.Name,
			Category: t.Category,
			Qty:      t.Qty,
			Amount:   t.Amount,
			Count:    int(t.Count),
		})
	}
	return report, nil
}

// ReportMonths lists the months with a precomputed report, oldest first.
func (r *SQLiteRepository) ReportMonths(ctx context.Context) ([]string, error) {
	months, err := r.queries.ListReportMonths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list report months: %w", err)
	}
	return months, nil
}
