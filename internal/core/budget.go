package core

import "strings"

const DefaultAlertThreshold = 0.8

// Budget is a monthly spending limit for one category.
type Budget struct {
	Category       string  `json:"category" yaml:"category"`
	MonthlyLimit   float64 `json:"monthly_limit" yaml:"monthly_limit"`
	AlertThreshold float64 `json:"alert_threshold" yaml:"alert_threshold"`
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.MonthlyLimit <= 0 {
		return ErrInvalidLimit
	}
	if b.AlertThreshold <= 0 || b.AlertThreshold > 1 {
		return ErrInvalidThreshold
	}
	return nil
}

type BudgetLevel string

const (
	BudgetOK       BudgetLevel = "ok"
	BudgetWarning  BudgetLevel = "warning"
	BudgetExceeded BudgetLevel = "exceeded"
	BudgetCritical BudgetLevel = "critical"
)

// BudgetStatus is the spend of one category against its budget in a month.
type BudgetStatus struct {
	Category string      `json:"category"`
	Month    string      `json:"month"`
	Limit    float64     `json:"limit"`
	Spent    float64     `json:"spent"`
	Ratio    float64     `json:"ratio"`
	Level    BudgetLevel `json:"level"`
}

// BudgetAlert is a recorded non-ok budget status. One alert is kept per
// category, month and level.
type BudgetAlert struct {
	ID string `json:"id"`
	BudgetStatus
	CreatedAt string `json:"created_at"`
}
