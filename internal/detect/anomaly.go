package detect

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"spendrag/internal/core"
	"spendrag/internal/log"
)

const (
	DefaultTrailingDays = 30
	DefaultMinItems     = 5

	zThreshold     = 2.5
	highZThreshold = 3.0

	// minStdDevRatio floors the comparison deviation at 10% of the comparison
	// mean. A constant population still yields a finite z-score for a real
	// outlier, while a few percent of drift from it stays unflagged.
	minStdDevRatio = 0.1
	minStdDev      = 0.01
)

// AnomalyResult carries the flagged items plus the categories that could not
// be judged.
type AnomalyResult struct {
	Anomalies []core.AnomalyRecord `json:"anomalies"`
	Skipped   []core.SkippedGroup  `json:"skipped"`
}

// AnomalyDetector flags items whose amount sits far from the rest of their
// category within a trailing window.
type AnomalyDetector struct {
	ledger   Ledger
	now      func() time.Time
	minItems int
	logger   *log.Logger
}

func NewAnomalyDetector(ledger Ledger, opts ...Option) *AnomalyDetector {
	o := buildOptions(opts)
	return &AnomalyDetector{
		ledger:   ledger,
		now:      o.now,
		minItems: o.minItems,
		logger:   o.logger,
	}
}

// Detect scores every dated, positively priced item of the last
// trailingDays days (inclusive of today) against the other items of its
// category. Each item is compared with the mean and sample standard
// deviation of its category without itself. Categories with fewer than the
// minimum item count, or whose amounts are all equal, are skipped and
// reported in Skipped.
func (d *AnomalyDetector) Detect(ctx context.Context, trailingDays int) (AnomalyResult, error) {
	if trailingDays <= 0 {
		trailingDays = DefaultTrailingDays
	}
	today := truncateDay(d.now())
	filter := core.ItemFilter{
		DateFrom: core.FormatDate(today.AddDate(0, 0, -trailingDays)),
		DateTo:   core.FormatDate(today),
	}
	items, err := d.ledger.FetchItems(ctx, filter)
	if err != nil {
		return AnomalyResult{}, fmt.Errorf("fetch trailing window: %w", err)
	}

	byCategory := make(map[string][]core.LedgerItem)
	for _, it := range items {
		if it.Amount == nil || *it.Amount <= 0 || !filter.Match(it) {
			continue
		}
		c := it.CategoryOrDefault()
		byCategory[c] = append(byCategory[c], it)
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	res := AnomalyResult{Anomalies: []core.AnomalyRecord{}, Skipped: []core.SkippedGroup{}}
	for _, c := range categories {
		records, outcome := scoreCategory(c, byCategory[c], d.minItems)
		if !outcome.IsOK() {
			res.Skipped = append(res.Skipped, core.SkippedGroup{Key: c, Outcome: outcome, Reason: outcome.Reason})
			continue
		}
		res.Anomalies = append(res.Anomalies, records...)
	}

	sort.SliceStable(res.Anomalies, func(i, j int) bool {
		return math.Abs(res.Anomalies[i].ZScore) > math.Abs(res.Anomalies[j].ZScore)
	})

	d.logger.DebugContext(ctx, "Anomalies detected",
		log.FieldDetector, "anomaly",
		log.FieldFindings, len(res.Anomalies),
		log.FieldSkippedGroups, len(res.Skipped))
	return res, nil
}

// scoreCategory returns the anomalies of one category, or a Skipped outcome
// when the population is too small or has no variance.
func scoreCategory(category string, items []core.LedgerItem, minItems int) ([]core.AnomalyRecord, core.Outcome) {
	if len(items) < minItems {
		return nil, core.Skipped(fmt.Sprintf("%d items, need %d", len(items), minItems))
	}
	amounts := make([]float64, len(items))
	for i, it := range items {
		amounts[i] = *it.Amount
	}
	if _, sd := meanStdDev(amounts); sd == 0 || math.IsNaN(sd) {
		return nil, core.Skipped("no variance")
	}

	var out []core.AnomalyRecord
	rest := make([]float64, 0, len(amounts)-1)
	for i, it := range items {
		rest = rest[:0]
		rest = append(rest, amounts[:i]...)
		rest = append(rest, amounts[i+1:]...)

		mean, sd := meanStdDev(rest)
		if math.IsNaN(sd) {
			sd = 0
		}
		sd = math.Max(sd, math.Max(math.Abs(mean)*minStdDevRatio, minStdDev))
		z := (amounts[i] - mean) / sd
		if math.Abs(z) <= zThreshold {
			continue
		}

		severity := core.SeverityMedium
		if math.Abs(z) > highZThreshold {
			severity = core.SeverityHigh
		}
		out = append(out, core.AnomalyRecord{
			ItemID:   it.ID,
			Name:     it.NameNorm,
			Merchant: it.MerchantOrUnknown(),
			Date:     it.DateOrEmpty(),
			Category: category,
			Amount:   amounts[i],
			Mean:     core.RoundAmount(mean),
			StdDev:   core.RoundAmount(sd),
			ZScore:   math.Round(z*100) / 100,
			Severity: severity,
			Message:  anomalyMessage(it.NameNorm, amounts[i], mean, z, category),
		})
	}
	return out, core.Ok()
}

// meanStdDev returns the mean and the sample standard deviation. The
// deviation is NaN for fewer than two values.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, math.NaN()
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}

func anomalyMessage(name string, amount, mean, z float64, category string) string {
	direction := "yüksek"
	if z < 0 {
		direction = "düşük"
	}
	return fmt.Sprintf("'%s' için olağandışı %s harcama: %.2f TL (ortalama: %.2f TL, %s)",
		name, direction, amount, mean, category)
}
