package reports

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"spendrag/internal/core"
)

// table is a header-indexed view over a values matrix as returned by the
// Sheets API. The first row is the header.
type table struct {
	cols map[string]int
	rows [][]string
}

func newTable(tab string, values [][]interface{}, required ...string) (table, error) {
	if len(values) == 0 {
		return table{cols: map[string]int{}}, nil
	}
	headers := toStrings(values[0])
	t := table{cols: make(map[string]int, len(required))}
	var missing []string
	for _, name := range required {
		i := indexOf(headers, name)
		if i == -1 {
			missing = append(missing, name)
			continue
		}
		t.cols[name] = i
	}
	if len(missing) > 0 {
		return table{}, fmt.Errorf("unexpected %s header: missing %s; got headers=%v", tab, strings.Join(missing, ","), headers)
	}
	for _, row := range values[1:] {
		t.rows = append(t.rows, toStrings(row))
	}
	return t, nil
}

func (t table) get(row []string, col string) string {
	return safeGet(row, t.cols[col])
}

// monthRows returns the rows whose month column equals month.
func (t table) monthRows(month string) [][]string {
	var out [][]string
	for _, r := range t.rows {
		if t.get(r, "month") == month {
			out = append(out, r)
		}
	}
	return out
}

// parseReport assembles the report for month from the three tabs. ok is
// false when the totals tab has no row for month.
func parseReport(month string, totals, categories, top [][]interface{}, topLimit int) (core.MonthlyReport, bool, error) {
	tt, err := newTable(tabMonthlyTotal, totals, "month", "total", "item_count")
	if err != nil {
		return core.MonthlyReport{}, false, err
	}
	rows := tt.monthRows(month)
	if len(rows) == 0 {
		return core.MonthlyReport{}, false, nil
	}
	report := core.MonthlyReport{
		Month:     month,
		Total:     parseNumber(tt.get(rows[0], "total")),
		ItemCount: int(parseNumber(tt.get(rows[0], "item_count"))),
	}

	ct, err := newTable(tabMonthlyByCategory, categories, "month", "category", "total", "item_count")
	if err != nil {
		return core.MonthlyReport{}, false, err
	}
	for _, r := range ct.monthRows(month) {
		report.ByCategory = append(report.ByCategory, core.Bucket{
			Key:    ct.get(r, "category"),
			Amount: parseNumber(ct.get(r, "total")),
			Count:  int(parseNumber(ct.get(r, "item_count"))),
		})
	}
	sort.SliceStable(report.ByCategory, func(i, j int) bool {
		return report.ByCategory[i].Amount > report.ByCategory[j].Amount
	})

	it, err := newTable(tabTopItems, top, "month", "rank", "name", "category", "qty", "amount", "count")
	if err != nil {
		return core.MonthlyReport{}, false, err
	}
	type ranked struct {
		rank int
		item core.ReportItem
	}
	var items []ranked
	for _, r := range it.monthRows(month) {
		items = append(items, ranked{
			rank: int(parseNumber(it.get(r, "rank"))),
			item: core.ReportItem{
				Name:     it.get(r, "name"),
				Category: it.get(r, "category"),
				Qty:      parseNumber(it.get(r, "qty")),
				Amount:   parseNumber(it.get(r, "amount")),
				Count:    int(parseNumber(it.get(r, "count"))),
			},
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].rank < items[j].rank })
	for i, r := range items {
		if i == topLimit {
			break
		}
		report.TopItems = append(report.TopItems, r.item)
	}
	return report, true, nil
}

// parseNumber reads a cell as a number, accepting decimal commas and the
// Turkish grouped form. Unparseable cells count as zero.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	d, err := core.ParseAmount(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
