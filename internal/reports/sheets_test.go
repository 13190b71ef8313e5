package reports

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendrag/internal/core"
)

type fakeValues struct {
	tabs  map[string][][]interface{}
	reads int
	err   error
}

func (f *fakeValues) ReadRange(_ context.Context, rng string) ([][]interface{}, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	tab, _, _ := strings.Cut(rng, "!")
	return f.tabs[tab], nil
}

func spreadsheet() *fakeValues {
	return &fakeValues{tabs: map[string][][]interface{}{
		tabMonthlyTotal: {
			{"month", "total", "item_count"},
			{"2025-02", "900,50", "12"},
			{"2025-03", 1234.5, 20.0},
		},
		tabMonthlyByCategory: {
			{"month", "category", "total", "item_count"},
			{"2025-03", "temizlik", 234.5, 4.0},
			{"2025-03", "gida", 1000.0, 16.0},
			{"2025-02", "gida", 900.5, 12.0},
		},
		tabTopItems: {
			{"Month", "Rank", "Name", "Category", "Qty", "Amount", "Count"},
			{"2025-03", 2.0, "deterjan", "temizlik", 1.0, 234.5, 1.0},
			{"2025-03", 1.0, "peynir", "gida", 2.0, 400.0, 2.0},
		},
	}}
}

func TestSheetsSource_MonthlyReport(t *testing.T) {
	src := newSource(spreadsheet(), time.Minute, nil)

	report, err := src.MonthlyReport(context.Background(), "2025-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-03", report.Month)
	assert.InDelta(t, 1234.5, report.Total, 1e-9)
	assert.Equal(t, 20, report.ItemCount)
	require.Len(t, report.ByCategory, 2)
	assert.Equal(t, "gida", report.ByCategory[0].Key)
	require.Len(t, report.TopItems, 2)
	assert.Equal(t, "peynir", report.TopItems[0].Name, "top items follow rank")

	feb, err := src.MonthlyReport(context.Background(), "2025-02")
	require.NoError(t, err)
	assert.InDelta(t, 900.5, feb.Total, 1e-9)
	assert.Empty(t, feb.TopItems)

	_, err = src.MonthlyReport(context.Background(), "2024-12")
	require.ErrorIs(t, err, core.ErrNoMatch)

	_, err = src.MonthlyReport(context.Background(), "March")
	require.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestSheetsSource_EmptyTotalsUnavailable(t *testing.T) {
	values := spreadsheet()
	values.tabs[tabMonthlyTotal] = [][]interface{}{{"month", "total", "item_count"}}
	src := newSource(values, time.Minute, nil)

	_, err := src.MonthlyReport(context.Background(), "2025-03")
	require.ErrorIs(t, err, core.ErrCapabilityUnavailable)
}

func TestSheetsSource_HeaderMismatch(t *testing.T) {
	values := spreadsheet()
	values.tabs[tabTopItems] = [][]interface{}{{"month", "name"}}
	src := newSource(values, time.Minute, nil)

	_, err := src.MonthlyReport(context.Background(), "2025-03")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected top_items header")
}

func TestSheetsSource_CachesTabs(t *testing.T) {
	values := spreadsheet()
	src := newSource(values, time.Minute, nil)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := src.MonthlyReport(ctx, "2025-03")
	require.NoError(t, err)
	_, err = src.MonthlyReport(ctx, "2025-02")
	require.NoError(t, err)
	assert.Equal(t, 3, values.reads, "one read per tab while the cache is valid")

	now = now.Add(2 * time.Minute)
	_, err = src.MonthlyReport(ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 6, values.reads)

	src.Invalidate()
	_, err = src.MonthlyReport(ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 9, values.reads)
}

func TestSheetsSource_ReadError(t *testing.T) {
	values := spreadsheet()
	values.err = errors.New("403 forbidden")
	src := newSource(values, time.Minute, nil)

	_, err := src.MonthlyReport(context.Background(), "2025-03")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrCapabilityUnavailable)
}

func TestNewSheetsSource_MissingConfig(t *testing.T) {
	_, err := NewSheetsSource(context.Background(), SheetsConfig{}, nil)
	require.ErrorIs(t, err, core.ErrCapabilityUnavailable)

	_, err = NewSheetsSource(context.Background(), SheetsConfig{SpreadsheetID: "sheet"}, nil)
	require.ErrorIs(t, err, core.ErrCapabilityUnavailable)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"12.5", 12.5},
		{"12,5", 12.5},
		{"1.234,56", 1234.56},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, parseNumber(tt.in), 1e-9)
		})
	}
}
