package core

import (
	"encoding/json"
	"fmt"
)

// PeriodKind is the closed set of recurrence classes.
type PeriodKind int

const (
	PeriodWeekly PeriodKind = iota + 1
	PeriodMonthly
	PeriodCustom
)

// Period is a detected recurrence. Days is only meaningful for PeriodCustom.
type Period struct {
	Kind PeriodKind
	Days int
}

func WeeklyPeriod() Period         { return Period{Kind: PeriodWeekly, Days: 7} }
func MonthlyPeriod() Period        { return Period{Kind: PeriodMonthly, Days: 30} }
func CustomPeriod(days int) Period { return Period{Kind: PeriodCustom, Days: days} }

func (p Period) String() string {
	switch p.Kind {
	case PeriodWeekly:
		return "weekly"
	case PeriodMonthly:
		return "monthly"
	case PeriodCustom:
		return fmt.Sprintf("every %d days", p.Days)
	default:
		return "unknown"
	}
}

// Label is the Turkish display form used in answers and alerts.
func (p Period) Label() string {
	switch p.Kind {
	case PeriodWeekly:
		return "haftalık"
	case PeriodMonthly:
		return "aylık"
	case PeriodCustom:
		return fmt.Sprintf("%d günde bir", p.Days)
	default:
		return "bilinmiyor"
	}
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// SubscriptionCandidate is a derived recurring payment; never persisted.
type SubscriptionCandidate struct {
	Merchant        string  `json:"merchant"`
	NameNorm        string  `json:"name_norm"`
	AverageAmount   float64 `json:"average_amount"`
	Period          Period  `json:"period"`
	AverageInterval float64 `json:"average_interval_days"`
	Occurrences     int     `json:"occurrences"`
	LastPayment     string  `json:"last_payment"`
	NextPayment     string  `json:"next_payment"`
	DaysUntilNext   int     `json:"days_until_next"`
	TotalSpent      float64 `json:"total_spent"`
	AnnualCost      float64 `json:"annual_cost"`
}

// Key is the merchant+name grouping key.
func (s SubscriptionCandidate) Key() string {
	return s.Merchant + "|" + s.NameNorm
}

type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AnomalyRecord is one flagged item; derived per run, never written back.
type AnomalyRecord struct {
	ItemID   string   `json:"item_id"`
	Name     string   `json:"name"`
	Merchant string   `json:"merchant"`
	Date     string   `json:"date"`
	Category string   `json:"category"`
	Amount   float64  `json:"amount"`
	Mean     float64  `json:"mean"`
	StdDev   float64  `json:"std_dev"`
	ZScore   float64  `json:"z_score"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// SkippedGroup records a group a detector could not judge.
type SkippedGroup struct {
	Key     string  `json:"key"`
	Outcome Outcome `json:"-"`
	Reason  string  `json:"reason"`
}
