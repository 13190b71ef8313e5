package storage

import (
	"context"
	"database/sql"
)

type InsertReceiptParams struct {
	ID          string
	SourcePath  string
	ContentHash string
	Merchant    sql.NullString
	ReceiptDate sql.NullString
	Currency    string
	TotalAmount sql.NullFloat64
}

const insertReceipt = `INSERT INTO receipts (id, source_path, content_hash, merchant, receipt_date, currency, total_amount)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertReceipt(ctx context.Context, arg InsertReceiptParams) error {
	_, err := q.db.ExecContext(ctx, insertReceipt,
		arg.ID, arg.SourcePath, arg.ContentHash, arg.Merchant, arg.ReceiptDate, arg.Currency, arg.TotalAmount)
	return err
}

const receiptExists = `SELECT COUNT(*) FROM receipts WHERE content_hash = ?`

func (q *Queries) ReceiptExists(ctx context.Context, contentHash string) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, receiptExists, contentHash).Scan(&n)
	return n > 0, err
}

type InsertItemParams struct {
	ID        string
	ReceiptID string
	LineNo    int64
	NameRaw   string
	NameNorm  string
	Qty       sql.NullFloat64
	Unit      sql.NullString
	Amount    sql.NullFloat64
	Category  sql.NullString
}

const insertItem = `INSERT INTO items (id, receipt_id, line_no, name_raw, name_norm, qty, unit, amount, category)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertItem(ctx context.Context, arg InsertItemParams) error {
	_, err := q.db.ExecContext(ctx, insertItem,
		arg.ID, arg.ReceiptID, arg.LineNo, arg.NameRaw, arg.NameNorm, arg.Qty, arg.Unit, arg.Amount, arg.Category)
	return err
}

// QueryCacheRow mirrors one query_cache row; timestamps are unix millis.
type QueryCacheRow struct {
	QueryHash string
	QueryText string
	Response  string
	ModelType string
	CreatedAt int64
	HitCount  int64
	LastHitAt int64
}

const deleteCacheBefore = `DELETE FROM query_cache WHERE created_at < ?`

func (q *Queries) DeleteCacheBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCacheBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const bumpCacheHit = `UPDATE query_cache SET hit_count = hit_count + 1, last_hit_at = ?
WHERE query_hash = ? AND created_at >= ?`

func (q *Queries) BumpCacheHit(ctx context.Context, now int64, hash string, cutoff int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, bumpCacheHit, now, hash, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getCacheEntry = `SELECT query_hash, query_text, response, model_type, created_at, hit_count, last_hit_at
FROM query_cache WHERE query_hash = ?`

func (q *Queries) GetCacheEntry(ctx context.Context, hash string) (QueryCacheRow, error) {
	var r QueryCacheRow
	err := q.db.QueryRowContext(ctx, getCacheEntry, hash).Scan(
		&r.QueryHash, &r.QueryText, &r.Response, &r.ModelType, &r.CreatedAt, &r.HitCount, &r.LastHitAt)
	return r, err
}

// replaceCacheEntry overwrites the content of an existing row but keeps its
// hit_count.
const replaceCacheEntry = `INSERT INTO query_cache
(query_hash, query_text, response, model_type, created_at, hit_count, last_hit_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(query_hash) DO UPDATE SET
    query_text = excluded.query_text,
    response = excluded.response,
    model_type = excluded.model_type,
    created_at = excluded.created_at,
    last_hit_at = excluded.last_hit_at`

func (q *Queries) ReplaceCacheEntry(ctx context.Context, r QueryCacheRow) error {
	_, err := q.db.ExecContext(ctx, replaceCacheEntry,
		r.QueryHash, r.QueryText, r.Response, r.ModelType, r.CreatedAt, r.HitCount, r.LastHitAt)
	return err
}

const cacheStats = `SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM query_cache`

func (q *Queries) CacheStats(ctx context.Context) (entries, hits int64, err error) {
	err = q.db.QueryRowContext(ctx, cacheStats).Scan(&entries, &hits)
	return entries, hits, err
}

const deleteAllCache = `DELETE FROM query_cache`

func (q *Queries) DeleteAllCache(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAllCache)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ClearReports(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM report_monthly_total`,
		`DELETE FROM report_monthly_category`,
		`DELETE FROM report_top_items`,
	} {
		if _, err := q.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const insertMonthlyTotal = `INSERT INTO report_monthly_total (month, total, item_count) VALUES (?, ?, ?)`

func (q *Queries) InsertMonthlyTotal(ctx context.Context, month string, total float64, count int64) error {
	_, err := q.db.ExecContext(ctx, insertMonthlyTotal, month, total, count)
	return err
}

const insertMonthlyCategory = `INSERT INTO report_monthly_category (month, category, total, item_count) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertMonthlyCategory(ctx context.Context, month, category string, total float64, count int64) error {
	_, err := q.db.ExecContext(ctx, insertMonthlyCategory, month, category, total, count)
	return err
}

type TopItemRow struct {
	Month    string
	Rank     int64
	Name     string
	Category string
	Qty      float64
	Amount   float64
	Count    int64
}

const insertTopItem = `INSERT INTO report_top_items (month, position, name, category, qty, amount, purchases)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTopItem(ctx context.Context, r TopItemRow) error {
	_, err := q.db.ExecContext(ctx, insertTopItem, r.Month, r.Rank, r.Name, r.Category, r.Qty, r.Amount, r.Count)
	return err
}

const countReportMonths = `SELECT COUNT(*) FROM report_monthly_total`

func (q *Queries) CountReportMonths(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countReportMonths).Scan(&n)
	return n, err
}

const listReportMonths = `SELECT month FROM report_monthly_total ORDER BY month`

func (q *Queries) ListReportMonths(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listReportMonths)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const getMonthlyTotal = `SELECT total, item_count FROM report_monthly_total WHERE month = ?`

func (q *Queries) GetMonthlyTotal(ctx context.Context, month string) (total float64, count int64, err error) {
	err = q.db.QueryRowContext(ctx, getMonthlyTotal, month).Scan(&total, &count)
	return total, count, err
}

type MonthlyCategoryRow struct {
	Category  string
	Total     float64
	ItemCount int64
}

const listMonthlyCategories = `SELECT category, total, item_count FROM report_monthly_category
WHERE month = ? ORDER BY total DESC, category`

func (q *Queries) ListMonthlyCategories(ctx context.Context, month string) ([]MonthlyCategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listMonthlyCategories, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthlyCategoryRow
	for rows.Next() {
		var r MonthlyCategoryRow
		if err := rows.Scan(&r.Category, &r.Total, &r.ItemCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const listTopItems = `SELECT month, position, name, category, qty, amount, purchases FROM report_top_items
WHERE month = ? ORDER BY position LIMIT ?`

func (q *Queries) ListTopItems(ctx context.Context, month string, limit int64) ([]TopItemRow, error) {
	rows, err := q.db.QueryContext(ctx, listTopItems, month, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopItemRow
	for rows.Next() {
		var r TopItemRow
		if err := rows.Scan(&r.Month, &r.Rank, &r.Name, &r.Category, &r.Qty, &r.Amount, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const upsertBudget = `INSERT INTO budgets (category, monthly_limit, alert_threshold, updated_at)
VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
ON CONFLICT(category) DO UPDATE SET
    monthly_limit = excluded.monthly_limit,
    alert_threshold = excluded.alert_threshold,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertBudget(ctx context.Context, category string, limit, threshold float64) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, category, limit, threshold)
	return err
}

type BudgetRow struct {
	Category       string
	MonthlyLimit   float64
	AlertThreshold float64
}

const getBudget = `SELECT category, monthly_limit, alert_threshold FROM budgets WHERE category = ?`

func (q *Queries) GetBudget(ctx context.Context, category string) (BudgetRow, error) {
	var r BudgetRow
	err := q.db.QueryRowContext(ctx, getBudget, category).Scan(&r.Category, &r.MonthlyLimit, &r.AlertThreshold)
	return r, err
}

const listBudgets = `SELECT category, monthly_limit, alert_threshold FROM budgets ORDER BY category`

func (q *Queries) ListBudgets(ctx context.Context) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BudgetRow
	for rows.Next() {
		var r BudgetRow
		if err := rows.Scan(&r.Category, &r.MonthlyLimit, &r.AlertThreshold); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const deleteBudget = `DELETE FROM budgets WHERE category = ?`

func (q *Queries) DeleteBudget(ctx context.Context, category string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteBudget, category)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type BudgetAlertRow struct {
	ID          string
	Category    string
	Month       string
	Level       string
	Spent       float64
	LimitAmount float64
	Ratio       float64
	CreatedAt   string
}

const insertBudgetAlert = `INSERT OR IGNORE INTO budget_alerts (id, category, month, level, spent, limit_amount, ratio)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// InsertBudgetAlert records an alert once per category, month and level and
// reports whether a new row was written.
func (q *Queries) InsertBudgetAlert(ctx context.Context, r BudgetAlertRow) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertBudgetAlert, r.ID, r.Category, r.Month, r.Level, r.Spent, r.LimitAmount, r.Ratio)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const listBudgetAlerts = `SELECT id, category, month, level, spent, limit_amount, ratio, created_at
FROM budget_alerts WHERE month = ? ORDER BY created_at, category`

func (q *Queries) ListBudgetAlerts(ctx context.Context, month string) ([]BudgetAlertRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetAlerts, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BudgetAlertRow
	for rows.Next() {
		var r BudgetAlertRow
		if err := rows.Scan(&r.ID, &r.Category, &r.Month, &r.Level, &r.Spent, &r.LimitAmount, &r.Ratio, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
