package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendrag/internal/core"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
}

func newTestInterpreter() *Interpreter {
	return NewInterpreter(WithClock(fixedClock))
}

func TestInterpret(t *testing.T) {
	in := newTestInterpreter()

	tests := []struct {
		name     string
		question string
		want     core.QuerySpec
	}{
		{
			name:     "last N days with category",
			question: "Son 7 gün market harcaması",
			want: core.QuerySpec{
				Category: "gida",
				Dates:    &core.DateRange{From: "2025-06-08", To: "2025-06-15"},
			},
		},
		{
			name:     "reserved short term with volume flag",
			question: "Bu ay kaç litre su aldım?",
			want: core.QuerySpec{
				Category: "su_icecek",
				Dates:    &core.DateRange{From: "2025-06-01", To: "2025-06-15"},
				Term:     "su",
				Volume:   true,
			},
		},
		{
			name:     "previous month category only",
			question: "Geçen ay temizlik",
			want: core.QuerySpec{
				Category: "temizlik",
				Dates:    &core.DateRange{From: "2025-05-01", To: "2025-05-31"},
			},
		},
		{
			name:     "english count question",
			question: "How many times did I buy coffee last month?",
			want: core.QuerySpec{
				Dates: &core.DateRange{From: "2025-05-01", To: "2025-05-31"},
				Term:  "coffee",
				Count: true,
			},
		},
		{
			name:     "report intent",
			question: "2025-12 kategorilere dağılım",
			want: core.QuerySpec{
				Dates:  &core.DateRange{From: "2025-12-01", To: "2025-12-31"},
				Month:  "2025-12",
				Report: true,
			},
		},
		{
			name:     "multi-word alias words are not terms",
			question: "kaç tane diş macunu",
			want: core.QuerySpec{
				Category: "kisisel_bakim",
				Quantity: true,
			},
		},
		{
			name:     "english volume question",
			question: "How many liters of water did I buy?",
			want: core.QuerySpec{
				Term:   "water",
				Volume: true,
			},
		},
		{
			name:     "term sharing a prefix with an alias stays a term",
			question: "Kaç adet pilav aldım?",
			want: core.QuerySpec{
				Term:     "pilav",
				Quantity: true,
			},
		},
		{
			name:     "inflected alias is not a term",
			question: "bu ay markete ne kadar harcadım?",
			want: core.QuerySpec{
				Category: "gida",
				Dates:    &core.DateRange{From: "2025-06-01", To: "2025-06-15"},
			},
		},
		{
			name:     "count over last days",
			question: "Son 30 gün içinde kaç kez kola aldım?",
			want: core.QuerySpec{
				Dates: &core.DateRange{From: "2025-05-16", To: "2025-06-15"},
				Term:  "kola",
				Count: true,
			},
		},
		{
			name:     "nothing recognised",
			question: "ne kadar?",
			want:     core.QuerySpec{},
		},
		{
			name:     "invalid month is ignored",
			question: "2025-13 toplam",
			want:     core.QuerySpec{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := in.Interpret(tt.question)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpret_YearMonthAlwaysWins(t *testing.T) {
	in := newTestInterpreter()

	questions := []string{
		"2025-12",
		"son 7 gün 2025-12 harcamalar",
		"bu ay mı 2025/12 mi?",
		"geçen ay değil 2025-12 su",
		"spent in 2025-12 last 30 days",
	}
	for _, q := range questions {
		t.Run(q, func(t *testing.T) {
			spec := in.Interpret(q)
			require.NotNil(t, spec.Dates)
			assert.Equal(t, "2025-12-01", spec.Dates.From)
			assert.Equal(t, "2025-12-31", spec.Dates.To)
			assert.Equal(t, "2025-12", spec.Month)
		})
	}
}

func TestInterpret_Idempotent(t *testing.T) {
	in := newTestInterpreter()

	questions := []string{
		"Son 30 gün içinde kaç kez kola aldım?",
		"2025-03 en çok harcama",
		"How many units of shampoo this month",
		"",
	}
	for _, q := range questions {
		assert.Equal(t, in.Interpret(q), in.Interpret(q), q)
	}
}

func TestInterpret_ReservedTermNeedsWholeToken(t *testing.T) {
	in := newTestInterpreter()

	spec := in.Interpret("sucuk kaç kez alınmış")
	assert.Equal(t, "sucuk", spec.Term)
	assert.True(t, spec.Count)
	assert.Empty(t, spec.Category)
}
