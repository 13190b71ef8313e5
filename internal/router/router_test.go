package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendrag/internal/core"
	"spendrag/internal/log"
	"spendrag/internal/query"
)

type fakeLedger struct {
	items []core.LedgerItem
	err   error
	calls int
}

func (l *fakeLedger) FetchItems(_ context.Context, f core.ItemFilter) ([]core.LedgerItem, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	ids := make(map[string]bool, len(f.IDs))
	for _, id := range f.IDs {
		ids[id] = true
	}
	var out []core.LedgerItem
	for _, it := range l.items {
		if len(ids) > 0 && !ids[it.ID] {
			continue
		}
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (l *fakeLedger) FetchAllItems(ctx context.Context) ([]core.LedgerItem, error) {
	return l.FetchItems(ctx, core.ItemFilter{})
}

type fakeEmbedder struct {
	calls int
	last  string
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	e.last = text
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}

type fakeIndex struct {
	ids []string
}

func (x fakeIndex) Size() int { return len(x.ids) }

func (x fakeIndex) Search(_ []float32, k int) ([]Neighbor, error) {
	out := make([]Neighbor, 0, k)
	for i := 0; i < k && i < len(x.ids); i++ {
		out = append(out, Neighbor{Pos: i, Score: 1 - float32(i)/10})
	}
	return out, nil
}

func (x fakeIndex) ItemID(pos int) (string, bool) {
	if pos < 0 || pos >= len(x.ids) {
		return "", false
	}
	return x.ids[pos], true
}

type fakeIndexSource struct {
	index fakeIndex
	err   error
}

func (s fakeIndexSource) Index(context.Context) (VectorIndex, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.index, nil
}

type fakeReports struct {
	report core.MonthlyReport
	err    error
}

func (r fakeReports) MonthlyReport(_ context.Context, month string) (core.MonthlyReport, error) {
	if r.err != nil {
		return core.MonthlyReport{}, r.err
	}
	if month != r.report.Month {
		return core.MonthlyReport{}, core.ErrNoMatch
	}
	return r.report, nil
}

type fakeGenerator struct {
	prompts []string
	reply   string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *fakeGenerator) Model() string { return "fake-model" }

type fakeCache struct {
	entries map[string]string
	getErr  error
	puts    int
}

func (c *fakeCache) Get(_ context.Context, q string, _ time.Duration) (string, bool, error) {
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.entries[strings.ToLower(strings.TrimSpace(q))]
	return v, ok, nil
}

func (c *fakeCache) Put(_ context.Context, q, answer, _ string) error {
	if c.entries == nil {
		c.entries = map[string]string{}
	}
	c.puts++
	c.entries[strings.ToLower(strings.TrimSpace(q))] = answer
	return nil
}

func ledgerItem(id, name, category, date string, qty, amount float64) core.LedgerItem {
	return core.LedgerItem{
		ID:         id,
		ReceiptID:  "r-" + id,
		NameRaw:    strings.ToUpper(name),
		NameNorm:   name,
		Qty:        core.Ptr(qty),
		Amount:     core.Ptr(amount),
		Category:   category,
		Date:       core.Ptr(date),
		Merchant:   core.Ptr("MIGROS"),
		SourcePath: "data/" + id + ".jpg",
	}
}

func waterLedger() *fakeLedger {
	return &fakeLedger{items: []core.LedgerItem{
		ledgerItem("w1", "water 1.5l unit", "drinks", "2025-01-05", 6, 45),
		ledgerItem("w2", "water 1.5l unit", "drinks", "2025-02-05", 6, 45),
		ledgerItem("w3", "water 1.5l unit", "drinks", "2025-03-05", 6, 48),
		ledgerItem("b1", "ekmek", "gida", "2025-03-01", 2, 20),
		ledgerItem("s1", "sucuk", "gida", "2025-03-02", 1, 150),
	}}
}

func newTestRouter(ledger Ledger, emb Embedder, idx IndexSource, rep ReportSource) *Router {
	return New(ledger, emb, idx, rep, DefaultConfig(), log.Discard())
}

func TestRoute_TermLookupWaterVolume(t *testing.T) {
	emb := &fakeEmbedder{}
	r := newTestRouter(waterLedger(), emb, fakeIndexSource{}, nil)

	spec := core.QuerySpec{Term: "water", Volume: true}
	got, err := r.Route(context.Background(), "how many liters of water did I buy", spec)
	require.NoError(t, err)

	assert.Equal(t, StrategyTermLookup, got.Strategy)
	require.True(t, got.Outcome.IsOK())
	require.Len(t, got.Candidates, 3)
	assert.Equal(t, "w3", got.Candidates[0].ID, "term lookup orders by recency")
	require.NotNil(t, got.Summary.TotalVolume)
	assert.Equal(t, 27.0, *got.Summary.TotalVolume)
	assert.Equal(t, map[string]float64{"1.5-unit": 18}, got.Summary.VolumeBreakdown)
	assert.Equal(t, 0, emb.calls)
}

func TestRoute_TermLookupNoMatchSkipsRetrieval(t *testing.T) {
	emb := &fakeEmbedder{}
	r := newTestRouter(waterLedger(), emb, fakeIndexSource{index: fakeIndex{ids: []string{"w1"}}}, nil)

	spec := core.QuerySpec{Term: "kahve", Count: true}
	got, err := r.Route(context.Background(), "kac kez kahve aldim", spec)
	require.NoError(t, err)

	assert.Equal(t, StrategyTermLookup, got.Strategy)
	assert.Equal(t, core.OutcomeNoMatch, got.Outcome.Kind)
	assert.Empty(t, got.Candidates)
	assert.Equal(t, 0, emb.calls, "term lookup must not fall back to retrieval")
}

func TestRoute_ShortTermDoesNotMatchInsideWords(t *testing.T) {
	r := newTestRouter(waterLedger(), nil, nil, nil)

	got, err := r.Route(context.Background(), "kac su", core.QuerySpec{Term: "su", Count: true})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeNoMatch, got.Outcome.Kind, "su must not hit sucuk")
}

func TestRoute_TermDoesNotMatchLongerWords(t *testing.T) {
	ledger := waterLedger()
	ledger.items = append(ledger.items, ledgerItem("m1", "watermelon 1kg", "gida", "2025-03-10", 1, 60))
	r := newTestRouter(ledger, nil, nil, nil)

	got, err := r.Route(context.Background(), "water", core.QuerySpec{Term: "water", Count: true})
	require.NoError(t, err)
	require.Len(t, got.Candidates, 3)
	for _, c := range got.Candidates {
		assert.NotEqual(t, "m1", c.ID)
	}
}

func TestRoute_AggregationSortsByAmount(t *testing.T) {
	r := newTestRouter(waterLedger(), nil, nil, nil)

	spec := core.QuerySpec{Category: "gida"}
	got, err := r.Route(context.Background(), "gida harcamam", spec)
	require.NoError(t, err)

	assert.Equal(t, StrategyAggregation, got.Strategy)
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "s1", got.Candidates[0].ID)
	assert.Equal(t, 170.0, got.Summary.TotalAmount)
	assert.True(t, strings.HasPrefix(got.Evidence, "- 2025-03-02 | MIGROS | SUCUK"))
}

func TestRoute_AggregationEmptyWindowIsNoMatch(t *testing.T) {
	r := newTestRouter(waterLedger(), nil, nil, nil)

	spec := core.QuerySpec{Dates: &core.DateRange{From: "2024-01-01", To: "2024-01-31"}}
	got, err := r.Route(context.Background(), "2024-01", spec)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeNoMatch, got.Outcome.Kind)
}

func TestRoute_RetrievalKeepsRelevanceOrderAndFilters(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := fakeIndexSource{index: fakeIndex{ids: []string{"s1", "w1", "b1", "w2"}}}
	r := newTestRouter(waterLedger(), emb, idx, nil)

	spec := core.QuerySpec{Category: "gida", Term: "meze"}
	got, err := r.Route(context.Background(), "meze icin ne aldim", spec)
	require.NoError(t, err)

	assert.Equal(t, StrategyRetrieval, got.Strategy)
	assert.Equal(t, "meze", emb.last, "the term is embedded when present")
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "s1", got.Candidates[0].ID)
	assert.Equal(t, "b1", got.Candidates[1].ID)
}

func TestRoute_RetrievalUsesQuestionWhenSpecEmpty(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := fakeIndexSource{index: fakeIndex{ids: []string{"w1"}}}
	r := newTestRouter(waterLedger(), emb, idx, nil)

	got, err := r.Route(context.Background(), "neler aldim", core.QuerySpec{})
	require.NoError(t, err)
	assert.True(t, got.Outcome.IsOK())
	assert.Equal(t, "neler aldim", emb.last)
}

func TestRoute_RetrievalFilteredEmptyIsNoMatch(t *testing.T) {
	idx := fakeIndexSource{index: fakeIndex{ids: []string{"w1"}}}
	r := newTestRouter(waterLedger(), &fakeEmbedder{}, idx, nil)

	got, err := r.Route(context.Background(), "temizlik", core.QuerySpec{Term: "temizlik", Category: "temizlik"})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeNoMatch, got.Outcome.Kind)
}

func TestRoute_MissingIndexIsUnavailable(t *testing.T) {
	missing := fmt.Errorf("%w: index file not found", core.ErrCapabilityUnavailable)
	emb := &fakeEmbedder{}
	r := newTestRouter(waterLedger(), emb, fakeIndexSource{err: missing}, nil)

	got, err := r.Route(context.Background(), "neler aldim", core.QuerySpec{})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeUnavailable, got.Outcome.Kind)
	assert.Contains(t, got.Outcome.Reason, "index file not found")
	assert.Equal(t, 0, emb.calls)
}

func TestRoute_EmbeddingFailureIsUnavailable(t *testing.T) {
	idx := fakeIndexSource{index: fakeIndex{ids: []string{"w1"}}}
	r := newTestRouter(waterLedger(), &fakeEmbedder{err: errors.New("quota")}, idx, nil)

	got, err := r.Route(context.Background(), "neler aldim", core.QuerySpec{})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeUnavailable, got.Outcome.Kind)
}

func TestRoute_Report(t *testing.T) {
	report := core.MonthlyReport{Month: "2025-03", Total: 218, ItemCount: 3}

	tests := []struct {
		name    string
		source  ReportSource
		month   string
		want    core.OutcomeKind
		wantRep bool
	}{
		{"found", fakeReports{report: report}, "2025-03", core.OutcomeOK, true},
		{"missing month", fakeReports{report: report}, "2025-04", core.OutcomeNoMatch, false},
		{"tables missing", fakeReports{err: fmt.Errorf("%w: report tables", core.ErrCapabilityUnavailable)}, "2025-03", core.OutcomeUnavailable, false},
		{"no source", nil, "2025-03", core.OutcomeUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(waterLedger(), nil, nil, tt.source)
			got, err := r.Route(context.Background(), "q", core.QuerySpec{Month: tt.month, Report: true})
			require.NoError(t, err)
			assert.Equal(t, StrategyReport, got.Strategy)
			assert.Equal(t, tt.want, got.Outcome.Kind)
			assert.Equal(t, tt.wantRep, got.Report != nil)
		})
	}
}

func TestRoute_LedgerErrorPropagates(t *testing.T) {
	r := newTestRouter(&fakeLedger{err: errors.New("disk")}, nil, nil, nil)
	_, err := r.Route(context.Background(), "q", core.QuerySpec{Category: "gida"})
	require.Error(t, err)
}

func newTestAnswerer(ledger Ledger, emb Embedder, idx IndexSource, opts ...AnswererOption) *Answerer {
	clock := func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }
	interp := query.NewInterpreter(query.WithClock(clock))
	opts = append([]AnswererOption{WithLogger(log.Discard())}, opts...)
	return NewAnswerer(interp, newTestRouter(ledger, emb, idx, nil), opts...)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	a := newTestAnswerer(waterLedger(), nil, nil)
	_, err := a.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrEmptyQuestion)
}

func TestAsk_NoMatchMessage(t *testing.T) {
	emb := &fakeEmbedder{}
	a := newTestAnswerer(waterLedger(), emb, fakeIndexSource{index: fakeIndex{ids: []string{"w1"}}})

	ans, err := a.Ask(context.Background(), "kac kez kahve aldim")
	require.NoError(t, err)
	assert.Equal(t, NoMatchMessage, ans.Text)
	assert.Equal(t, "no_match", ans.Outcome)
	assert.Equal(t, 0, emb.calls)
}

func TestAsk_TermStartingLikeAliasIsLookedUp(t *testing.T) {
	ledger := &fakeLedger{items: []core.LedgerItem{
		ledgerItem("p1", "pilav 1kg", "gida", "2025-03-03", 2, 90),
		ledgerItem("p2", "pil aa 4lu", "ev", "2025-03-04", 1, 120),
	}}
	a := newTestAnswerer(ledger, nil, nil)

	ans, err := a.Ask(context.Background(), "Kaç adet pilav aldım?")
	require.NoError(t, err)
	assert.Equal(t, "ok", ans.Outcome)
	assert.Equal(t, StrategyTermLookup, ans.Strategy)
	assert.Contains(t, ans.Text, "Eşleşen kayıt: 1")
}

func TestAsk_GeneratesAndAppendsBreakdown(t *testing.T) {
	gen := &fakeGenerator{reply: "  27 litre su aldin.  "}
	c := &fakeCache{}
	a := newTestAnswerer(waterLedger(), nil, nil, WithGenerator(gen), WithCache(c, time.Hour))

	ans, err := a.Ask(context.Background(), "toplam kac litre water aldim")
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], `"total_liters_est": 27`)
	assert.Contains(t, gen.prompts[0], "source: data/w3.jpg")
	assert.Equal(t, "27 litre su aldin.\n\nKırılım: 1.5-unit: 18 adet", ans.Text)
	assert.Equal(t, "fake-model", ans.Model)
	assert.Equal(t, StrategyTermLookup, ans.Strategy)
	assert.Equal(t, 1, c.puts)

	again, err := a.Ask(context.Background(), "Toplam kac litre water aldim ")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, ans.Text, again.Text)
	assert.Len(t, gen.prompts, 1)
}

func TestAsk_CacheErrorIsMiss(t *testing.T) {
	c := &fakeCache{getErr: errors.New("database is locked")}
	a := newTestAnswerer(waterLedger(), nil, nil, WithCache(c, time.Hour))

	ans, err := a.Ask(context.Background(), "gida harcamam")
	require.NoError(t, err)
	assert.False(t, ans.Cached)
	assert.Equal(t, "ok", ans.Outcome)
	assert.Contains(t, ans.Text, "Eşleşen kayıt: 2")
}

func TestAsk_GenerationFailureNotCached(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("503")}
	c := &fakeCache{}
	a := newTestAnswerer(waterLedger(), nil, nil, WithGenerator(gen), WithCache(c, time.Hour))

	ans, err := a.Ask(context.Background(), "gida harcamam")
	require.NoError(t, err)
	assert.Equal(t, "unavailable", ans.Outcome)
	assert.Equal(t, 0, c.puts)
}

func TestBreakdownLine(t *testing.T) {
	assert.Empty(t, BreakdownLine(nil))
	assert.Equal(t,
		"Kırılım: 0.33-unit: 24 adet, 1.5-unit: 18 adet, 19-unit: 2 adet",
		BreakdownLine(map[string]float64{"19-unit": 2, "1.5-unit": 18, "0.33-unit": 24}))
}

func TestTermPolicy_Match(t *testing.T) {
	tests := []struct {
		name, item, term string
		want             bool
	}{
		{"exact", "su", "su", true},
		{"short leading token", "su 1.5l", "su", true},
		{"short trailing token", "maden su", "su", true},
		{"short middle token", "erikli su 0.5l", "su", true},
		{"short inside word", "sucuk", "su", false},
		{"short prefix of token", "susam 1kg", "su", false},
		{"long token", "water 1.5l unit", "water", true},
		{"long inflected token", "kolalar 6li", "kola", true},
		{"long unrelated continuation", "watermelon 1kg", "water", false},
		{"long inside word", "cocacola 1l", "kola", false},
		{"empty term", "su", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultTermPolicy.Match(tt.item, tt.term))
		})
	}

	strict := TermPolicy{ShortTermMaxLen: 2, InflectedTokens: false}
	assert.False(t, strict.Match("kolalar 6li", "kola"))
}
