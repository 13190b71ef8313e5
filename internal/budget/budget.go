// Package budget checks monthly category spend against configured limits
// and records the statuses that need attention.
package budget

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"spendrag/internal/core"
	"spendrag/internal/log"
)

const (
	exceededRatio = 1.0
	criticalRatio = 1.2
)

// Store is the persistence the checker needs.
type Store interface {
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	SpendByCategory(ctx context.Context, month string) (map[string]float64, error)
	RecordAlert(ctx context.Context, status core.BudgetStatus) (bool, error)
}

// Classify maps a spend ratio to its level. threshold is the warning ratio.
func Classify(ratio, threshold float64) core.BudgetLevel {
	switch {
	case ratio >= criticalRatio:
		return core.BudgetCritical
	case ratio >= exceededRatio:
		return core.BudgetExceeded
	case ratio >= threshold:
		return core.BudgetWarning
	default:
		return core.BudgetOK
	}
}

type Checker struct {
	store  Store
	logger *log.Logger
}

func NewChecker(store Store, logger *log.Logger) *Checker {
	if logger == nil {
		logger = log.Discard()
	}
	return &Checker{store: store, logger: logger.WithComponent(log.ComponentBudget)}
}

// Result is one month's check. Alerts holds the non-ok statuses that were
// recorded for the first time by this check.
type Result struct {
	Month    string              `json:"month"`
	Statuses []core.BudgetStatus `json:"statuses"`
	Alerts   []core.BudgetStatus `json:"new_alerts"`
}

// Check computes every budget's status for month, most used first, and
// records non-ok statuses as alerts.
func (c *Checker) Check(ctx context.Context, month string) (Result, error) {
	if _, err := core.ParseMonth(month); err != nil {
		return Result{}, err
	}
	budgets, err := c.store.ListBudgets(ctx)
	if err != nil {
		return Result{}, err
	}
	spend, err := c.store.SpendByCategory(ctx, month)
	if err != nil {
		return Result{}, err
	}

	res := Result{Month: month}
	for _, b := range budgets {
		spent := spend[b.Category]
		ratio := decimal.NewFromFloat(spent).
			Div(decimal.NewFromFloat(b.MonthlyLimit)).
			Round(4).InexactFloat64()
		res.Statuses = append(res.Statuses, core.BudgetStatus{
			Category: b.Category,
			Month:    month,
			Limit:    b.MonthlyLimit,
			Spent:    spent,
			Ratio:    ratio,
			Level:    Classify(ratio, b.AlertThreshold),
		})
	}
	sort.SliceStable(res.Statuses, func(i, j int) bool {
		if res.Statuses[i].Ratio != res.Statuses[j].Ratio {
			return res.Statuses[i].Ratio > res.Statuses[j].Ratio
		}
		return res.Statuses[i].Category < res.Statuses[j].Category
	})

	for _, s := range res.Statuses {
		if s.Level == core.BudgetOK {
			continue
		}
		added, err := c.store.RecordAlert(ctx, s)
		if err != nil {
			return Result{}, err
		}
		if added {
			res.Alerts = append(res.Alerts, s)
			c.logger.WarnContext(ctx, "Budget alert",
				log.FieldCategory, s.Category,
				log.FieldMonth, month,
				"level", string(s.Level),
				"ratio", s.Ratio)
		}
	}
	return res, nil
}

// Message renders a status for notifications.
func Message(s core.BudgetStatus) string {
	pct := decimal.NewFromFloat(s.Ratio).Mul(decimal.NewFromInt(100)).Round(0)
	switch s.Level {
	case core.BudgetCritical:
		return fmt.Sprintf("'%s' bütçesi kritik seviyede aşıldı: %.2f / %.2f TL (%%%s)", s.Category, s.Spent, s.Limit, pct)
	case core.BudgetExceeded:
		return fmt.Sprintf("'%s' bütçesi aşıldı: %.2f / %.2f TL (%%%s)", s.Category, s.Spent, s.Limit, pct)
	case core.BudgetWarning:
		return fmt.Sprintf("'%s' bütçesinin %%%s'i kullanıldı: %.2f / %.2f TL", s.Category, pct, s.Spent, s.Limit)
	default:
		return fmt.Sprintf("'%s' bütçesi normal: %.2f / %.2f TL", s.Category, s.Spent, s.Limit)
	}
}

type budgetFile struct {
	Budgets []core.Budget `yaml:"budgets"`
}

// Decode reads a YAML budget file:
//
//	budgets:
//	  - category: gida
//	    monthly_limit: 5000
//	    alert_threshold: 0.8
//
// A missing alert_threshold uses core.DefaultAlertThreshold.
func Decode(r io.Reader) ([]core.Budget, error) {
	var f budgetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode budgets: %w", err)
	}
	seen := map[string]bool{}
	for i := range f.Budgets {
		b := &f.Budgets[i]
		b.Category = strings.TrimSpace(b.Category)
		if b.AlertThreshold == 0 {
			b.AlertThreshold = core.DefaultAlertThreshold
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("budget %d (%q): %w", i+1, b.Category, err)
		}
		if seen[b.Category] {
			return nil, fmt.Errorf("budget %d: duplicate category %q", i+1, b.Category)
		}
		seen[b.Category] = true
	}
	return f.Budgets, nil
}
