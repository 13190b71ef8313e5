// Package aggregate computes result statistics over a candidate set and
// renders the evidence lines cited next to a generated answer.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"spendrag/internal/core"
)

// Summarize computes totals, category and merchant buckets, and volume
// statistics over items in one pass. Missing amounts and quantities are
// treated as unknown and left out of the numeric totals.
func Summarize(items []core.LedgerItem) core.ResultSummary {
	var (
		total   decimal.Decimal
		qty     decimal.Decimal
		qtySeen bool
	)
	byCategory := newBucketer()
	byMerchant := newBucketer()
	volume := newVolumeTally()

	for _, it := range items {
		amount := decimal.Zero
		if it.Amount != nil {
			amount = decimal.NewFromFloat(*it.Amount)
			total = total.Add(amount)
		}
		if it.Qty != nil {
			qty = qty.Add(decimal.NewFromFloat(*it.Qty))
			qtySeen = true
		}
		byCategory.add(it.CategoryOrDefault(), amount)
		byMerchant.add(it.MerchantOrUnknown(), amount)
		volume.add(it)
	}

	summary := core.ResultSummary{
		MatchedCount: len(items),
		TotalAmount:  total.Round(2).InexactFloat64(),
		ByCategory:   byCategory.sorted(),
		ByMerchant:   byMerchant.sorted(),
	}
	if qtySeen {
		summary.TotalQty = core.Ptr(qty.Round(3).InexactFloat64())
	}
	if volume.seen {
		summary.TotalVolume = core.Ptr(volume.total.Round(3).InexactFloat64())
		summary.VolumeBreakdown = volume.breakdown()
	}
	return summary
}

type bucketer struct {
	amounts map[string]decimal.Decimal
	counts  map[string]int
}

func newBucketer() *bucketer {
	return &bucketer{
		amounts: make(map[string]decimal.Decimal),
		counts:  make(map[string]int),
	}
}

func (b *bucketer) add(key string, amount decimal.Decimal) {
	b.amounts[key] = b.amounts[key].Add(amount)
	b.counts[key]++
}

// sorted returns buckets by descending amount; equal amounts order by key.
func (b *bucketer) sorted() []core.Bucket {
	out := make([]core.Bucket, 0, len(b.amounts))
	for k, v := range b.amounts {
		out = append(out, core.Bucket{
			Key:    k,
			Amount: v.Round(2).InexactFloat64(),
			Count:  b.counts[k],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Key < out[j].Key
	})
	return out
}
