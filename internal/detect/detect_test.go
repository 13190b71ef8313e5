package detect

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendrag/internal/core"
	"spendrag/internal/log"
)

type memLedger struct {
	items []core.LedgerItem
	err   error
}

func (l memLedger) FetchItems(_ context.Context, f core.ItemFilter) ([]core.LedgerItem, error) {
	if l.err != nil {
		return nil, l.err
	}
	var out []core.LedgerItem
	for _, it := range l.items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (l memLedger) FetchAllItems(ctx context.Context) ([]core.LedgerItem, error) {
	return l.FetchItems(ctx, core.ItemFilter{})
}

func charge(merchant, name, date string, amount float64) core.LedgerItem {
	return core.LedgerItem{
		ID:       fmt.Sprintf("%s-%s-%s", merchant, name, date),
		NameNorm: name,
		NameRaw:  name,
		Merchant: core.Ptr(merchant),
		Date:     core.Ptr(date),
		Amount:   core.Ptr(amount),
		Category: "abonelik",
	}
}

func clockAt(date string) func() time.Time {
	t, _ := core.ParseDate(date)
	return func() time.Time { return t.Add(10 * time.Hour) }
}

func opts(today string) []Option {
	return []Option{WithClock(clockAt(today)), WithLogger(log.Discard())}
}

func TestRecurring_MonthlySeries(t *testing.T) {
	ledger := memLedger{items: []core.LedgerItem{
		charge("NETFLIX", "standart plan", "2025-01-01", 29.90),
		charge("NETFLIX", "standart plan", "2025-01-31", 29.95),
		charge("NETFLIX", "standart plan", "2025-03-02", 30.00),
		charge("NETFLIX", "standart plan", "2025-04-01", 29.85),
		charge("BIM", "ekmek", "2025-01-03", 10),
	}}
	d := NewRecurringDetector(ledger, opts("2025-04-25")...)

	got, err := d.Detect(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 1)

	sub := got[0]
	assert.Equal(t, "NETFLIX", sub.Merchant)
	assert.Equal(t, "standart plan", sub.NameNorm)
	assert.Equal(t, core.MonthlyPeriod(), sub.Period)
	assert.Equal(t, "monthly", sub.Period.String())
	assert.Equal(t, 4, sub.Occurrences)
	assert.Equal(t, 29.93, sub.AverageAmount)
	assert.Equal(t, 30.0, sub.AverageInterval)
	assert.Equal(t, "2025-04-01", sub.LastPayment)
	assert.Equal(t, "2025-05-01", sub.NextPayment)
	assert.Equal(t, 6, sub.DaysUntilNext)
	assert.Equal(t, 119.7, sub.TotalSpent)
	assert.InDelta(t, 29.925*365/30, sub.AnnualCost, 0.01)
}

func TestRecurring_AmountOutsideToleranceDoesNotQualify(t *testing.T) {
	ledger := memLedger{items: []core.LedgerItem{
		charge("NETFLIX", "standart plan", "2025-01-01", 29.90),
		charge("NETFLIX", "standart plan", "2025-01-31", 29.95),
		charge("NETFLIX", "standart plan", "2025-03-02", 60.00),
		charge("NETFLIX", "standart plan", "2025-04-01", 29.85),
	}}
	got, err := NewRecurringDetector(ledger, opts("2025-04-25")...).Detect(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecurring_IrregularIntervalsDoNotQualify(t *testing.T) {
	ledger := memLedger{items: []core.LedgerItem{
		charge("SPOTIFY", "premium", "2025-01-01", 59.99),
		charge("SPOTIFY", "premium", "2025-01-05", 59.99),
		charge("SPOTIFY", "premium", "2025-03-20", 59.99),
	}}
	got, err := NewRecurringDetector(ledger, opts("2025-04-01")...).Detect(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecurring_SkipsUnusableItems(t *testing.T) {
	noMerchant := charge("X", "gym", "2025-01-01", 100)
	noMerchant.Merchant = nil
	noDate := charge("GYM", "uyelik", "", 100)
	noDate.Date = nil
	zero := charge("GYM", "uyelik", "2025-01-08", 0)

	ledger := memLedger{items: []core.LedgerItem{
		noMerchant, noDate, zero,
		charge("GYM", "uyelik", "2025-01-01", 100),
		charge("GYM", "uyelik", "2025-01-15", 100),
	}}
	got, err := NewRecurringDetector(ledger, opts("2025-02-01")...).Detect(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, got, "only two usable charges remain")
}

func TestRecurring_SortedByAmountAndUpcoming(t *testing.T) {
	ledger := memLedger{items: []core.LedgerItem{
		charge("GAZETE", "haftalik", "2025-03-03", 15),
		charge("GAZETE", "haftalik", "2025-03-10", 15),
		charge("GAZETE", "haftalik", "2025-03-17", 15),
		charge("GAZETE", "haftalik", "2025-03-24", 15),
		charge("ISP", "fiber", "2025-01-10", 400),
		charge("ISP", "fiber", "2025-02-10", 400),
		charge("ISP", "fiber", "2025-03-10", 400),
		charge("CLOUD", "depolama", "2024-09-01", 50),
		charge("CLOUD", "depolama", "2024-11-01", 50),
		charge("CLOUD", "depolama", "2025-01-01", 50),
	}}
	d := NewRecurringDetector(ledger, append(opts("2025-03-26"), WithMinOccurrences(3))...)

	all, err := d.Detect(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ISP", all[0].Merchant)
	assert.Equal(t, "CLOUD", all[1].Merchant)
	assert.Equal(t, "GAZETE", all[2].Merchant)
	assert.Equal(t, core.WeeklyPeriod(), all[2].Period)
	assert.Equal(t, core.CustomPeriod(61), all[1].Period)
	assert.Equal(t, "61 günde bir", all[1].Period.Label())

	upcoming, err := d.Upcoming(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "GAZETE", upcoming[0].Merchant)
	assert.Equal(t, "2025-03-31", upcoming[0].NextPayment)
	assert.Equal(t, 5, upcoming[0].DaysUntilNext)
}

func TestFilterUpcoming(t *testing.T) {
	cands := []core.SubscriptionCandidate{
		{Merchant: "a", DaysUntilNext: 6},
		{Merchant: "b", DaysUntilNext: -1},
		{Merchant: "c", DaysUntilNext: 0},
		{Merchant: "d", DaysUntilNext: 8},
	}
	got := FilterUpcoming(cands, 7)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Merchant)
	assert.Equal(t, "a", got[1].Merchant)
}

func TestClassifyPeriod(t *testing.T) {
	tests := []struct {
		interval float64
		want     core.Period
	}{
		{30, core.MonthlyPeriod()},
		{25, core.MonthlyPeriod()},
		{35, core.MonthlyPeriod()},
		{7, core.WeeklyPeriod()},
		{6, core.WeeklyPeriod()},
		{14.4, core.CustomPeriod(14)},
		{90.6, core.CustomPeriod(91)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.interval), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPeriod(tt.interval))
		})
	}
}

func spend(id, category, date string, amount float64) core.LedgerItem {
	return core.LedgerItem{
		ID:       id,
		NameNorm: id,
		Category: category,
		Date:     core.Ptr(date),
		Amount:   core.Ptr(amount),
		Merchant: core.Ptr("MIGROS"),
	}
}

func TestAnomaly_FlagsOnlyTheOutlier(t *testing.T) {
	ledger := memLedger{items: []core.LedgerItem{
		spend("a", "gida", "2025-03-01", 10),
		spend("b", "gida", "2025-03-02", 10),
		spend("c", "gida", "2025-03-03", 10),
		spend("d", "gida", "2025-03-04", 10),
		spend("e", "gida", "2025-03-05", 50),
	}}
	res, err := NewAnomalyDetector(ledger, opts("2025-03-10")...).Detect(context.Background(), 30)
	require.NoError(t, err)

	require.Len(t, res.Anomalies, 1)
	got := res.Anomalies[0]
	assert.Equal(t, "e", got.ItemID)
	assert.Greater(t, got.ZScore, 2.5)
	assert.Equal(t, core.SeverityHigh, got.Severity)
	assert.Equal(t, 10.0, got.Mean)
	assert.Contains(t, got.Message, "yüksek")
	assert.Empty(t, res.Skipped)
}

func TestAnomaly_SmallDriftFromConstantIsNotFlagged(t *testing.T) {
	tests := []struct {
		name    string
		amounts []float64
		flagged string
	}{
		{"three percent above constant", []float64{100, 100, 100, 100, 103}, ""},
		{"five percent above constant", []float64{10, 10, 10, 10, 10.5}, ""},
		{"five times constant", []float64{10, 10, 10, 10, 50}, "i4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []core.LedgerItem
			for i, a := range tt.amounts {
				items = append(items, spend(fmt.Sprintf("i%d", i), "gida", fmt.Sprintf("2025-03-0%d", i+1), a))
			}
			res, err := NewAnomalyDetector(memLedger{items: items}, opts("2025-03-10")...).Detect(context.Background(), 30)
			require.NoError(t, err)
			assert.Empty(t, res.Skipped)
			if tt.flagged == "" {
				assert.Empty(t, res.Anomalies)
				return
			}
			require.Len(t, res.Anomalies, 1)
			assert.Equal(t, tt.flagged, res.Anomalies[0].ItemID)
		})
	}
}

func TestAnomaly_LowOutlierMessage(t *testing.T) {
	var items []core.LedgerItem
	for i := range 9 {
		items = append(items, spend(fmt.Sprintf("n%d", i), "ev", "2025-03-01", 100+float64(i%3)))
	}
	items = append(items, spend("low", "ev", "2025-03-02", 1))

	res, err := NewAnomalyDetector(memLedger{items: items}, opts("2025-03-10")...).Detect(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, "low", res.Anomalies[0].ItemID)
	assert.Less(t, res.Anomalies[0].ZScore, 0.0)
	assert.Contains(t, res.Anomalies[0].Message, "düşük")
}

func TestAnomaly_SkipsSmallAndFlatCategories(t *testing.T) {
	ledger := memLedger{items: []core.LedgerItem{
		spend("a", "temizlik", "2025-03-01", 10),
		spend("b", "temizlik", "2025-03-02", 500),
		spend("c", "su_icecek", "2025-03-01", 5),
		spend("d", "su_icecek", "2025-03-02", 5),
		spend("e", "su_icecek", "2025-03-03", 5),
		spend("f", "su_icecek", "2025-03-04", 5),
		spend("g", "su_icecek", "2025-03-05", 5),
	}}
	res, err := NewAnomalyDetector(ledger, opts("2025-03-10")...).Detect(context.Background(), 30)
	require.NoError(t, err)

	assert.Empty(t, res.Anomalies)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "su_icecek", res.Skipped[0].Key)
	assert.Equal(t, core.OutcomeSkipped, res.Skipped[0].Outcome.Kind)
	assert.Equal(t, "no variance", res.Skipped[0].Reason)
	assert.Equal(t, "temizlik", res.Skipped[1].Key)
}

func TestAnomaly_WindowExcludesOldAndUndated(t *testing.T) {
	items := []core.LedgerItem{
		spend("a", "gida", "2025-03-01", 10),
		spend("b", "gida", "2025-03-02", 10),
		spend("c", "gida", "2025-03-03", 10),
		spend("d", "gida", "2025-03-04", 10),
		spend("old", "gida", "2024-12-01", 900),
	}
	undated := spend("nodate", "gida", "", 900)
	undated.Date = nil
	items = append(items, undated)

	res, err := NewAnomalyDetector(memLedger{items: items}, opts("2025-03-10")...).Detect(context.Background(), 30)
	require.NoError(t, err)
	assert.Empty(t, res.Anomalies)
	require.Len(t, res.Skipped, 1, "four items in window is too few")
}

func TestRunner_Run(t *testing.T) {
	items := []core.LedgerItem{
		charge("GAZETE", "haftalik", "2025-03-03", 15),
		charge("GAZETE", "haftalik", "2025-03-10", 15),
		charge("GAZETE", "haftalik", "2025-03-17", 15),
		spend("a", "gida", "2025-03-01", 10),
		spend("b", "gida", "2025-03-02", 10),
		spend("c", "gida", "2025-03-03", 10),
		spend("d", "gida", "2025-03-04", 10),
		spend("e", "gida", "2025-03-05", 50),
	}
	r := NewRunner(memLedger{items: items}, opts("2025-03-20")...)

	f, err := r.Run(context.Background(), DefaultRunConfig())
	require.NoError(t, err)
	assert.Len(t, f.Subscriptions, 1)
	assert.Len(t, f.Upcoming, 1)
	assert.Len(t, f.Anomalies, 1)
	assert.Len(t, f.Skipped, 1, "the three newspaper charges form a small category")
}

func TestRunner_LedgerFailure(t *testing.T) {
	r := NewRunner(memLedger{err: errors.New("db closed")}, opts("2025-03-20")...)
	_, err := r.Run(context.Background(), DefaultRunConfig())
	require.Error(t, err)
}
