// Package detect runs the batch analyses over the ledger: recurring payment
// detection and per-category anomaly detection. Both are read-only scans and
// may run concurrently with each other and with question answering.
package detect

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"spendrag/internal/core"
	"spendrag/internal/log"
)

const (
	DefaultMinOccurrences = 3
	DefaultUpcomingDays   = 7

	// amountTolerance is the allowed relative distance of every amount in a
	// group from the group mean.
	amountTolerance = 0.05
	// intervalToleranceDays is the allowed absolute distance of every gap
	// from the mean gap.
	intervalToleranceDays = 7.0
)

// Ledger is the read access the detectors need.
type Ledger interface {
	FetchItems(ctx context.Context, filter core.ItemFilter) ([]core.LedgerItem, error)
	FetchAllItems(ctx context.Context) ([]core.LedgerItem, error)
}

// periodRange maps a band of mean intervals onto a period kind.
type periodRange struct {
	min, max float64
	period   func() core.Period
}

var periodRanges = []periodRange{
	{min: 25, max: 35, period: core.MonthlyPeriod},
	{min: 6, max: 8, period: core.WeeklyPeriod},
}

// ClassifyPeriod maps a mean interval in days onto a period. Intervals
// outside the known bands become a custom period of the rounded interval.
func ClassifyPeriod(meanInterval float64) core.Period {
	for _, r := range periodRanges {
		if meanInterval >= r.min && meanInterval <= r.max {
			return r.period()
		}
	}
	return core.CustomPeriod(int(math.Round(meanInterval)))
}

// RecurringDetector finds merchant+item pairs that are paid at a steady
// amount on a steady schedule.
type RecurringDetector struct {
	ledger         Ledger
	now            func() time.Time
	minOccurrences int
	logger         *log.Logger
}

type Option func(*options)

type options struct {
	now            func() time.Time
	minOccurrences int
	minItems       int
	logger         *log.Logger
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMinOccurrences sets the default used by Upcoming.
func WithMinOccurrences(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minOccurrences = n
		}
	}
}

// WithMinItems sets how many items a category needs before anomalies are
// judged.
func WithMinItems(n int) Option {
	return func(o *options) {
		if n > 1 {
			o.minItems = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:            time.Now,
		minOccurrences: DefaultMinOccurrences,
		minItems:       DefaultMinItems,
		logger:         log.New(log.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.WithComponent(log.ComponentDetect)
	return o
}

func NewRecurringDetector(ledger Ledger, opts ...Option) *RecurringDetector {
	o := buildOptions(opts)
	return &RecurringDetector{
		ledger:         ledger,
		now:            o.now,
		minOccurrences: o.minOccurrences,
		logger:         o.logger,
	}
}

type payment struct {
	date   time.Time
	amount float64
}

// Detect returns every qualifying subscription, highest average amount
// first. Items without merchant, date or a positive amount are ignored.
func (d *RecurringDetector) Detect(ctx context.Context, minOccurrences int) ([]core.SubscriptionCandidate, error) {
	if minOccurrences < 2 {
		minOccurrences = 2
	}
	items, err := d.ledger.FetchAllItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger: %w", err)
	}

	type groupKey struct{ merchant, name string }
	groups := make(map[groupKey][]payment)
	for _, it := range items {
		if it.Merchant == nil || *it.Merchant == "" || it.Date == nil || it.Amount == nil || *it.Amount <= 0 {
			continue
		}
		date, err := core.ParseDate(*it.Date)
		if err != nil {
			continue
		}
		k := groupKey{merchant: *it.Merchant, name: it.NameNorm}
		groups[k] = append(groups[k], payment{date: date, amount: *it.Amount})
	}

	today := truncateDay(d.now())
	var out []core.SubscriptionCandidate
	for k, payments := range groups {
		if len(payments) < minOccurrences {
			continue
		}
		cand, ok := evaluateGroup(payments, today)
		if !ok {
			continue
		}
		cand.Merchant = k.merchant
		cand.NameNorm = k.name
		out = append(out, cand)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageAmount != out[j].AverageAmount {
			return out[i].AverageAmount > out[j].AverageAmount
		}
		return out[i].Key() < out[j].Key()
	})

	d.logger.DebugContext(ctx, "Recurring payments detected",
		log.FieldDetector, "recurring", log.FieldFindings, len(out))
	return out, nil
}

// Upcoming returns subscriptions whose next payment falls within days from
// today, soonest first.
func (d *RecurringDetector) Upcoming(ctx context.Context, days int) ([]core.SubscriptionCandidate, error) {
	all, err := d.Detect(ctx, d.minOccurrences)
	if err != nil {
		return nil, err
	}
	return FilterUpcoming(all, days), nil
}

// FilterUpcoming keeps candidates with 0 <= days until next <= days, sorted
// by days until next ascending.
func FilterUpcoming(cands []core.SubscriptionCandidate, days int) []core.SubscriptionCandidate {
	var out []core.SubscriptionCandidate
	for _, c := range cands {
		if c.DaysUntilNext >= 0 && c.DaysUntilNext <= days {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysUntilNext < out[j].DaysUntilNext
	})
	return out
}

// evaluateGroup applies the amount and interval tolerances to one group and
// builds the candidate. The caller fills merchant and name.
func evaluateGroup(payments []payment, today time.Time) (core.SubscriptionCandidate, bool) {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(decimal.NewFromFloat(p.amount))
	}
	mean := total.Div(decimal.NewFromInt(int64(len(payments)))).InexactFloat64()
	if mean <= 0 {
		return core.SubscriptionCandidate{}, false
	}
	for _, p := range payments {
		if math.Abs(p.amount-mean)/mean > amountTolerance {
			return core.SubscriptionCandidate{}, false
		}
	}

	sort.Slice(payments, func(i, j int) bool { return payments[i].date.Before(payments[j].date) })
	intervals := make([]float64, 0, len(payments)-1)
	var sum float64
	for i := 1; i < len(payments); i++ {
		gap := daysBetween(payments[i-1].date, payments[i].date)
		intervals = append(intervals, gap)
		sum += gap
	}
	meanInterval := sum / float64(len(intervals))
	if meanInterval <= 0 {
		return core.SubscriptionCandidate{}, false
	}
	for _, gap := range intervals {
		if math.Abs(gap-meanInterval) > intervalToleranceDays {
			return core.SubscriptionCandidate{}, false
		}
	}

	last := payments[len(payments)-1].date
	next := last.AddDate(0, 0, int(math.Round(meanInterval)))
	return core.SubscriptionCandidate{
		AverageAmount:   core.RoundAmount(mean),
		Period:          ClassifyPeriod(meanInterval),
		AverageInterval: math.Round(meanInterval*100) / 100,
		Occurrences:     len(payments),
		LastPayment:     core.FormatDate(last),
		NextPayment:     core.FormatDate(next),
		DaysUntilNext:   int(daysBetween(today, next)),
		TotalSpent:      total.Round(2).InexactFloat64(),
		AnnualCost:      core.RoundAmount(mean * 365 / meanInterval),
	}, true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b; both are UTC midnights.
func daysBetween(a, b time.Time) float64 {
	return math.Round(b.Sub(a).Hours() / 24)
}
