package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"spendrag/internal/core"
)

const selectLedgerItems = `SELECT i.id, i.receipt_id, i.name_raw, i.name_norm, i.qty, i.unit, i.amount,
       i.category, i.line_no, r.receipt_date, r.merchant, r.source_path
FROM items i
JOIN receipts r ON r.id = i.receipt_id`

// FetchItems returns the ledger items passing filter, ordered by date, then
// receipt and line. Undated items never pass a date bound.
func (r *SQLiteRepository) FetchItems(ctx context.Context, filter core.ItemFilter) ([]core.LedgerItem, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.IDs) > 0 {
		marks := strings.Repeat("?,", len(filter.IDs))
		where = append(where, "i.id IN ("+marks[:len(marks)-1]+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	if filter.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, filter.Category)
	}
	if filter.DateFrom != "" {
		where = append(where, "r.receipt_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, "r.receipt_date <= ?")
		args = append(args, filter.DateTo)
	}

	query := selectLedgerItems
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY r.receipt_date, i.receipt_id, i.line_no"

	return r.queryItems(ctx, query, args...)
}

func (r *SQLiteRepository) FetchAllItems(ctx context.Context) ([]core.LedgerItem, error) {
	return r.FetchItems(ctx, core.ItemFilter{})
}

// CountItems returns the number of ledger items.
func (r *SQLiteRepository) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) queryItems(ctx context.Context, query string, args ...any) ([]core.LedgerItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger items: %w", err)
	}
	defer rows.Close()

	var items []core.LedgerItem
	for rows.Next() {
		var (
			it       core.LedgerItem
			qty      sql.NullFloat64
			unit     sql.NullString
			amount   sql.NullFloat64
			category sql.NullString
			date     sql.NullString
			merchant sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.ReceiptID, &it.NameRaw, &it.NameNorm, &qty, &unit, &amount,
			&category, &it.LineNo, &date, &merchant, &it.SourcePath); err != nil {
			return nil, fmt.Errorf("scan ledger item: %w", err)
		}
		it.Qty = nullFloat(qty)
		it.Unit = nullString(unit)
		it.Amount = nullFloat(amount)
		it.Category = category.String
		it.Date = nullString(date)
		it.Merchant = nullString(merchant)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger items: %w", err)
	}
	return items, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullString(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	return &v.String
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func toNullString(v *string) sql.NullString {
	if v == nil || strings.TrimSpace(*v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(*v), Valid: true}
}
