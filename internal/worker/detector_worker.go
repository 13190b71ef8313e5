// Package worker runs the spending detectors on a schedule and fans their
// findings out as alert messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spendrag/internal/amqp"
	"spendrag/internal/budget"
	"spendrag/internal/core"
	"spendrag/internal/detect"
	"spendrag/internal/log"
)

// FindingsRunner runs the subscription and anomaly detectors.
type FindingsRunner interface {
	Run(ctx context.Context, cfg detect.RunConfig) (detect.Findings, error)
}

// BudgetChecker checks one month's budgets.
type BudgetChecker interface {
	Check(ctx context.Context, month string) (budget.Result, error)
}

// DetectorWorker publishes each finding once. Findings whose publish failed
// are retried on the next run.
type DetectorWorker struct {
	runner    FindingsRunner
	budgets   BudgetChecker
	publisher amqp.Publisher
	cfg       detect.RunConfig
	now       func() time.Time
	logger    *log.Logger

	mu   sync.Mutex
	sent map[string]struct{}
}

type Option func(*DetectorWorker)

func WithClock(now func() time.Time) Option {
	return func(w *DetectorWorker) { w.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(w *DetectorWorker) { w.logger = l }
}

// NewDetectorWorker builds a worker. budgets and publisher may be nil: a nil
// checker skips the budget check and a nil publisher only logs findings.
func NewDetectorWorker(runner FindingsRunner, budgets BudgetChecker, publisher amqp.Publisher, cfg detect.RunConfig, opts ...Option) *DetectorWorker {
	w := &DetectorWorker{
		runner:    runner,
		budgets:   budgets,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    log.Discard(),
		sent:      map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent(log.ComponentWorker)
	return w
}

// RunSummary reports one run.
type RunSummary struct {
	Findings  detect.Findings `json:"findings"`
	Budget    *budget.Result  `json:"budget,omitempty"`
	Published int             `json:"published"`
	Failed    int             `json:"failed"`
}

// RunOnce runs the detectors and the current month's budget check
// concurrently, then publishes alerts for findings not yet sent.
func (w *DetectorWorker) RunOnce(ctx context.Context) (RunSummary, error) {
	month := w.now().UTC().Format(core.MonthLayout)

	var (
		summary RunSummary
		checked budget.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := w.runner.Run(gctx, w.cfg)
		if err != nil {
			return fmt.Errorf("run detectors: %w", err)
		}
		summary.Findings = f
		return nil
	})
	if w.budgets != nil {
		g.Go(func() error {
			res, err := w.budgets.Check(gctx, month)
			if err != nil {
				return fmt.Errorf("check budgets %s: %w", month, err)
			}
			checked = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RunSummary{}, err
	}
	if w.budgets != nil {
		summary.Budget = &checked
	}

	for _, a := range alertsFor(summary.Findings, summary.Budget) {
		if !w.claim(a.key) {
			continue
		}
		if w.publisher == nil {
			w.logger.InfoContext(ctx, "Finding", "kind", string(a.msg.Kind), "subject", a.msg.Subject, "message", a.msg.Message)
			summary.Published++
			continue
		}
		if err := w.publisher.PublishAlert(ctx, a.msg); err != nil {
			w.release(a.key)
			summary.Failed++
			w.logger.WarnContext(ctx, "Failed to publish alert",
				log.FieldError, err, "kind", string(a.msg.Kind), "subject", a.msg.Subject)
			if errors.Is(err, amqp.ErrCircuitOpen) || ctx.Err() != nil {
				break
			}
			continue
		}
		summary.Published++
	}

	w.logger.InfoContext(ctx, "Detector run complete",
		log.FieldOperation, log.OpDetect,
		"published", summary.Published,
		"failed", summary.Failed)
	return summary, nil
}

// Start runs immediately and then every interval until ctx ends.
func (w *DetectorWorker) Start(ctx context.Context, interval time.Duration) {
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Initial detector run failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic detector run failed", log.FieldError, err)
				continue
			}
			w.logger.DebugContext(ctx, "Next detector run", "at", now.Add(interval).Format("15:04:05"))
		}
	}
}

func (w *DetectorWorker) claim(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.sent[key]; ok {
		return false
	}
	w.sent[key] = struct{}{}
	return true
}

func (w *DetectorWorker) release(key string) {
	w.mu.Lock()
	delete(w.sent, key)
	w.mu.Unlock()
}

type keyedAlert struct {
	key string
	msg *amqp.AlertMessage
}

// alertsFor turns findings into messages. Each carries a key that
// identifies the finding across runs.
func alertsFor(f detect.Findings, budgetResult *budget.Result) []keyedAlert {
	var out []keyedAlert
	for _, s := range f.Subscriptions {
		msg := amqp.NewAlertMessage(amqp.AlertSubscription, "info", s.Merchant,
			fmt.Sprintf("'%s' için %s ödeme tespit edildi: ortalama %.2f TL, yıllık %.2f TL",
				s.NameNorm, s.Period.Label(), s.AverageAmount, s.AnnualCost),
			s.AverageAmount)
		msg.Date = s.LastPayment
		out = append(out, keyedAlert{key: "sub|" + s.Key(), msg: msg})
	}
	for _, s := range f.Upcoming {
		msg := amqp.NewAlertMessage(amqp.AlertUpcoming, "info", s.Merchant,
			fmt.Sprintf("'%s' için %d gün içinde %.2f TL ödeme bekleniyor", s.NameNorm, s.DaysUntilNext, s.AverageAmount),
			s.AverageAmount)
		msg.Date = s.NextPayment
		out = append(out, keyedAlert{key: "up|" + s.Key() + "|" + s.NextPayment, msg: msg})
	}
	for _, a := range f.Anomalies {
		msg := amqp.NewAlertMessage(amqp.AlertAnomaly, string(a.Severity), a.Name, a.Message, a.Amount)
		msg.Date = a.Date
		out = append(out, keyedAlert{key: "anom|" + a.ItemID, msg: msg})
	}
	if budgetResult != nil {
		for _, s := range budgetResult.Statuses {
			if s.Level == core.BudgetOK {
				continue
			}
			msg := amqp.NewAlertMessage(amqp.AlertBudget, string(s.Level), s.Category, budget.Message(s), s.Spent)
			msg.Date = s.Month
			out = append(out, keyedAlert{key: "budget|" + s.Category + "|" + s.Month + "|" + string(s.Level), msg: msg})
		}
	}
	return out
}
