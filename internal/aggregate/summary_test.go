package aggregate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendrag/internal/core"
)

func item(name, category, merchant, date string, qty, amount *float64) core.LedgerItem {
	it := core.LedgerItem{
		ID:       name + "@" + date,
		NameRaw:  name,
		NameNorm: name,
		Category: category,
		Qty:      qty,
		Amount:   amount,
	}
	if merchant != "" {
		it.Merchant = core.Ptr(merchant)
	}
	if date != "" {
		it.Date = core.Ptr(date)
	}
	return it
}

func f(v float64) *float64 { return &v }

func TestSummarize_WaterVolume(t *testing.T) {
	items := []core.LedgerItem{
		item("water 1.5l unit", "drinks", "MIGROS", "2025-01-05", f(6), f(45)),
		item("water 1.5l unit", "drinks", "MIGROS", "2025-02-05", f(6), f(45)),
		item("water 1.5l unit", "drinks", "A101", "2025-03-05", f(6), f(48)),
	}

	s := Summarize(items)

	assert.Equal(t, 3, s.MatchedCount)
	assert.Equal(t, 138.0, s.TotalAmount)
	require.NotNil(t, s.TotalQty)
	assert.Equal(t, 18.0, *s.TotalQty)
	require.NotNil(t, s.TotalVolume)
	assert.Equal(t, 27.0, *s.TotalVolume)
	assert.Equal(t, map[string]float64{"1.5-unit": 18}, s.VolumeBreakdown)
	assert.Equal(t, []core.Bucket{{Key: "MIGROS", Amount: 90, Count: 2}, {Key: "A101", Amount: 48, Count: 1}}, s.ByMerchant)
}

func TestSummarize_BucketsSumToTotal(t *testing.T) {
	items := []core.LedgerItem{
		item("sut", "gida", "MIGROS", "2025-01-01", f(1), f(32.5)),
		item("ekmek", "gida", "BIM", "2025-01-02", f(2), f(10.1)),
		item("deterjan", "temizlik", "BIM", "2025-01-03", nil, f(189.99)),
		item("pil", "ev", "", "2025-01-04", f(4), f(0.2)),
		item("sampuan", "kisisel_bakim", "MIGROS", "", f(1), f(0.1)),
	}

	s := Summarize(items)

	var catSum float64
	var catCount int
	for _, b := range s.ByCategory {
		catSum += b.Amount
		catCount += b.Count
	}
	assert.InDelta(t, s.TotalAmount, catSum, 1e-9)
	assert.Equal(t, s.MatchedCount, catCount)
	assert.Equal(t, 232.89, s.TotalAmount)

	var merchantCount int
	for _, b := range s.ByMerchant {
		merchantCount += b.Count
	}
	assert.Equal(t, s.MatchedCount, merchantCount)
	assert.Equal(t, "temizlik", s.ByCategory[0].Key)
	assert.Contains(t, keys(s.ByMerchant), core.UnknownMerchant)
}

func TestSummarize_UnknownMeasures(t *testing.T) {
	items := []core.LedgerItem{
		item("ekmek", "", "", "", nil, nil),
		item("peynir", "gida", "BIM", "2025-01-01", nil, f(120)),
	}

	s := Summarize(items)

	assert.Equal(t, 2, s.MatchedCount)
	assert.Equal(t, 120.0, s.TotalAmount)
	assert.Nil(t, s.TotalQty, "no quantity present means unknown, not zero")
	assert.Nil(t, s.TotalVolume, "no volume product means absent, not zero")
	assert.Nil(t, s.VolumeBreakdown)
	assert.Contains(t, keys(s.ByCategory), core.DefaultCategory)
}

func TestSummarize_ZeroQuantityIsKnown(t *testing.T) {
	s := Summarize([]core.LedgerItem{item("su 0.5l", "su_icecek", "BIM", "2025-01-01", f(0), f(0))})
	require.NotNil(t, s.TotalQty)
	assert.Equal(t, 0.0, *s.TotalQty)
	require.NotNil(t, s.TotalVolume)
	assert.Equal(t, 0.0, *s.TotalVolume)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.MatchedCount)
	assert.Equal(t, 0.0, s.TotalAmount)
	assert.Empty(t, s.ByCategory)
	assert.Empty(t, s.ByMerchant)
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		name string
		want float64
		ok   bool
	}{
		{"su 1.5l", 1.5, true},
		{"su 0.5lt", 0.5, true},
		{"su 19l damacana", 19, true},
		{"water 1.5l unit", 1.5, true},
		{"ayran 330ml", 0.33, true},
		{"kola 33cl", 0.33, true},
		{"zeytinyagi 1 litre", 1, true},
		{"sut 1,5 l", 1.5, true},
		{"ekmek", 0, false},
		{"peynir 500g", 0, false},
		{"su 2lik", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseVolume(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSelectEvidence(t *testing.T) {
	items := []core.LedgerItem{
		{
			NameRaw: "SU 1.5L", Qty: f(6), Unit: core.Ptr("adet"), Amount: f(45),
			Date: core.Ptr("2025-03-01"), Merchant: core.Ptr("MIGROS"), SourcePath: "data/r1.jpg",
		},
		{NameRaw: "EKMEK"},
	}

	got := SelectEvidence(items, 5)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "- 2025-03-01 | MIGROS | SU 1.5L (qty=6 adet, amount=45) | source: data/r1.jpg", lines[0])
	assert.Equal(t, "- ? | ? | EKMEK (qty=?, amount=?) | source: ?", lines[1])
}

func TestSelectEvidence_KeepsOrderAndLimit(t *testing.T) {
	var items []core.LedgerItem
	for _, name := range []string{"c", "a", "e", "b", "d", "f", "g"} {
		items = append(items, core.LedgerItem{NameRaw: name})
	}

	got := strings.Split(SelectEvidence(items, 0), "\n")
	require.Len(t, got, DefaultEvidenceLimit)
	for i, line := range got {
		assert.Contains(t, line, "| "+items[i].NameRaw+" (")
	}

	assert.Empty(t, SelectEvidence(nil, 3))
}

func keys(buckets []core.Bucket) []string {
	out := make([]string, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b.Key)
	}
	return out
}
