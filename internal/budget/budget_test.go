package budget

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendrag/internal/core"
)

type fakeStore struct {
	budgets  []core.Budget
	spend    map[string]float64
	recorded map[string]bool
}

func (f *fakeStore) ListBudgets(context.Context) ([]core.Budget, error) { return f.budgets, nil }

func (f *fakeStore) SpendByCategory(context.Context, string) (map[string]float64, error) {
	return f.spend, nil
}

func (f *fakeStore) RecordAlert(_ context.Context, s core.BudgetStatus) (bool, error) {
	if f.recorded == nil {
		f.recorded = map[string]bool{}
	}
	key := s.Category + "/" + s.Month + "/" + string(s.Level)
	if f.recorded[key] {
		return false, nil
	}
	f.recorded[key] = true
	return true, nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		ratio float64
		want  core.BudgetLevel
	}{
		{0, core.BudgetOK},
		{0.79, core.BudgetOK},
		{0.8, core.BudgetWarning},
		{0.99, core.BudgetWarning},
		{1.0, core.BudgetExceeded},
		{1.19, core.BudgetExceeded},
		{1.2, core.BudgetCritical},
		{3, core.BudgetCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.ratio, 0.8), "ratio %v", tt.ratio)
	}
}

func TestChecker_Check(t *testing.T) {
	store := &fakeStore{
		budgets: []core.Budget{
			{Category: "gida", MonthlyLimit: 1000, AlertThreshold: 0.8},
			{Category: "temizlik", MonthlyLimit: 200, AlertThreshold: 0.8},
			{Category: "ev", MonthlyLimit: 100, AlertThreshold: 0.5},
			{Category: "su_icecek", MonthlyLimit: 300, AlertThreshold: 0.9},
		},
		spend: map[string]float64{"gida": 850, "temizlik": 210, "ev": 130, "su_icecek": 30},
	}
	c := NewChecker(store, nil)

	res, err := c.Check(context.Background(), "2025-03")
	require.NoError(t, err)
	require.Len(t, res.Statuses, 4)

	got := map[string]core.BudgetLevel{}
	for _, s := range res.Statuses {
		got[s.Category] = s.Level
	}
	assert.Equal(t, map[string]core.BudgetLevel{
		"gida":      core.BudgetWarning,
		"temizlik":  core.BudgetExceeded,
		"ev":        core.BudgetCritical,
		"su_icecek": core.BudgetOK,
	}, got)

	assert.Equal(t, "ev", res.Statuses[0].Category, "most used first")
	assert.InDelta(t, 1.3, res.Statuses[0].Ratio, 1e-9)
	assert.Len(t, res.Alerts, 3)

	again, err := c.Check(context.Background(), "2025-03")
	require.NoError(t, err)
	assert.Empty(t, again.Alerts, "alerts are recorded once per level")

	_, err = c.Check(context.Background(), "2025/03")
	require.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestMessage(t *testing.T) {
	msg := Message(core.BudgetStatus{Category: "gida", Spent: 850, Limit: 1000, Ratio: 0.85, Level: core.BudgetWarning})
	assert.Equal(t, "'gida' bütçesinin %85'i kullanıldı: 850.00 / 1000.00 TL", msg)
}

func TestDecode(t *testing.T) {
	budgets, err := Decode(strings.NewReader(`
budgets:
  - category: gida
    monthly_limit: 5000
    alert_threshold: 0.9
  - category: " temizlik "
    monthly_limit: 400
`))
	require.NoError(t, err)
	assert.Equal(t, []core.Budget{
		{Category: "gida", MonthlyLimit: 5000, AlertThreshold: 0.9},
		{Category: "temizlik", MonthlyLimit: 400, AlertThreshold: core.DefaultAlertThreshold},
	}, budgets)

	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"zero limit", "budgets:\n  - category: gida\n    monthly_limit: 0\n", core.ErrInvalidLimit},
		{"bad threshold", "budgets:\n  - category: gida\n    monthly_limit: 10\n    alert_threshold: 1.5\n", core.ErrInvalidThreshold},
		{"no category", "budgets:\n  - monthly_limit: 10\n", core.ErrEmptyCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.yaml))
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err = Decode(strings.NewReader("budgets:\n  - category: a\n    monthly_limit: 1\n  - category: a\n    monthly_limit: 2\n"))
	require.Error(t, err)

	_, err = Decode(strings.NewReader("budgets:\n  - category: a\n    limit: 1\n"))
	require.Error(t, err, "unknown fields are rejected")
}
