package detect

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"spendrag/internal/core"
	"spendrag/internal/log"
)

// RunConfig holds the parameters of one combined detection run.
type RunConfig struct {
	MinOccurrences int
	UpcomingDays   int
	TrailingDays   int
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		MinOccurrences: DefaultMinOccurrences,
		UpcomingDays:   DefaultUpcomingDays,
		TrailingDays:   DefaultTrailingDays,
	}
}

// Findings is the output of one combined run.
type Findings struct {
	RanAt         time.Time                    `json:"ran_at"`
	Subscriptions []core.SubscriptionCandidate `json:"subscriptions"`
	Upcoming      []core.SubscriptionCandidate `json:"upcoming"`
	Anomalies     []core.AnomalyRecord         `json:"anomalies"`
	Skipped       []core.SkippedGroup          `json:"skipped"`
}

// Runner executes both detectors concurrently.
type Runner struct {
	recurring *RecurringDetector
	anomaly   *AnomalyDetector
	now       func() time.Time
	logger    *log.Logger
}

func NewRunner(ledger Ledger, opts ...Option) *Runner {
	o := buildOptions(opts)
	return &Runner{
		recurring: NewRecurringDetector(ledger, opts...),
		anomaly:   NewAnomalyDetector(ledger, opts...),
		now:       o.now,
		logger:    o.logger,
	}
}

func (r *Runner) Recurring() *RecurringDetector { return r.recurring }
func (r *Runner) Anomaly() *AnomalyDetector     { return r.anomaly }

// Run executes the recurring and anomaly scans in parallel. Either scan
// failing fails the run.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (Findings, error) {
	start := r.now()
	var (
		subs      []core.SubscriptionCandidate
		anomalies AnomalyResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subs, err = r.recurring.Detect(gctx, cfg.MinOccurrences)
		return err
	})
	g.Go(func() error {
		var err error
		anomalies, err = r.anomaly.Detect(gctx, cfg.TrailingDays)
		return err
	})
	if err := g.Wait(); err != nil {
		return Findings{}, err
	}

	f := Findings{
		RanAt:         start,
		Subscriptions: subs,
		Upcoming:      FilterUpcoming(subs, cfg.UpcomingDays),
		Anomalies:     anomalies.Anomalies,
		Skipped:       anomalies.Skipped,
	}
	r.logger.InfoContext(ctx, "Detection run finished",
		log.FieldOperation, log.OpDetect,
		"subscriptions", len(f.Subscriptions),
		"upcoming", len(f.Upcoming),
		"anomalies", len(f.Anomalies),
		log.FieldSkippedGroups, len(f.Skipped),
		log.FieldDuration, r.now().Sub(start).Milliseconds())
	return f, nil
}
