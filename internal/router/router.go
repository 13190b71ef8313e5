// Package router picks an answering strategy for a question, builds the
// candidate set, and turns it into a summary, evidence and finally an answer.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"spendrag/internal/aggregate"
	"spendrag/internal/core"
	"spendrag/internal/log"
)

// Strategy names the branch that produced a candidate set.
type Strategy string

const (
	StrategyReport      Strategy = "report"
	StrategyTermLookup  Strategy = "term_lookup"
	StrategyAggregation Strategy = "aggregation"
	StrategyRetrieval   Strategy = "retrieval"
)

const DefaultTopK = 25

// Routing is the result of one Route call. Candidates, Summary and Evidence
// are set only when Outcome is OK; Report only for StrategyReport.
type Routing struct {
	Strategy   Strategy
	Outcome    core.Outcome
	Candidates []core.LedgerItem
	Summary    core.ResultSummary
	Evidence   string
	Report     *core.MonthlyReport
}

type Config struct {
	TopK          int
	EvidenceLimit int
	TermPolicy    TermPolicy
}

func DefaultConfig() Config {
	return Config{
		TopK:          DefaultTopK,
		EvidenceLimit: aggregate.DefaultEvidenceLimit,
		TermPolicy:    DefaultTermPolicy,
	}
}

// Router orchestrates the four strategies. Embedder, IndexSource and
// ReportSource may be nil; the matching strategy then reports Unavailable.
type Router struct {
	ledger   Ledger
	embedder Embedder
	indexes  IndexSource
	reports  ReportSource
	cfg      Config
	logger   *log.Logger
}

func New(ledger Ledger, embedder Embedder, indexes IndexSource, reports ReportSource, cfg Config, logger *log.Logger) *Router {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.EvidenceLimit <= 0 {
		cfg.EvidenceLimit = aggregate.DefaultEvidenceLimit
	}
	if cfg.TermPolicy.ShortTermMaxLen <= 0 {
		cfg.TermPolicy = DefaultTermPolicy
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Router{
		ledger:   ledger,
		embedder: embedder,
		indexes:  indexes,
		reports:  reports,
		cfg:      cfg,
		logger:   logger.WithComponent(log.ComponentRouter),
	}
}

// Route applies the decision order report, term lookup, aggregation,
// semantic retrieval; the first applicable strategy answers. Empty results
// come back as a NoMatch outcome and missing collaborators as Unavailable;
// the error return is reserved for ledger failures.
func (r *Router) Route(ctx context.Context, question string, spec core.QuerySpec) (Routing, error) {
	switch {
	case spec.Report && spec.Month != "":
		return r.routeReport(ctx, spec)
	case spec.Term != "" && spec.AsksMeasure():
		return r.routeTermLookup(ctx, spec)
	case spec.Term == "" && spec.HasFilters():
		return r.routeAggregation(ctx, spec)
	default:
		return r.routeRetrieval(ctx, question, spec)
	}
}

func (r *Router) routeReport(ctx context.Context, spec core.QuerySpec) (Routing, error) {
	out := Routing{Strategy: StrategyReport}
	if r.reports == nil {
		out.Outcome = core.Unavailable("report source not configured")
		return out, nil
	}
	report, err := r.reports.MonthlyReport(ctx, spec.Month)
	switch {
	case errors.Is(err, core.ErrCapabilityUnavailable):
		out.Outcome = core.Unavailable(err.Error())
		return out, nil
	case errors.Is(err, core.ErrNoMatch):
		out.Outcome = core.NoMatch("no report for " + spec.Month)
		return out, nil
	case err != nil:
		return out, fmt.Errorf("read monthly report %s: %w", spec.Month, err)
	}
	out.Report = &report
	out.Outcome = core.Ok()
	return out, nil
}

// routeTermLookup matches the term against normalized names. It never falls
// back to retrieval: zero matches is NoMatch.
func (r *Router) routeTermLookup(ctx context.Context, spec core.QuerySpec) (Routing, error) {
	out := Routing{Strategy: StrategyTermLookup}
	filter := core.FilterFromSpec(spec)

	items, err := r.ledger.FetchItems(ctx, filter)
	if err != nil {
		return out, fmt.Errorf("fetch items for term %q: %w", spec.Term, err)
	}

	matched := make([]core.LedgerItem, 0, len(items))
	for _, it := range items {
		if r.cfg.TermPolicy.Match(it.NameNorm, spec.Term) {
			matched = append(matched, it)
		}
	}
	matched = applyFilter(matched, filter)
	if len(matched) == 0 {
		out.Outcome = core.NoMatch("no item matches term " + spec.Term)
		return out, nil
	}

	sortByRecency(matched)
	return r.finish(out, matched), nil
}

func (r *Router) routeAggregation(ctx context.Context, spec core.QuerySpec) (Routing, error) {
	out := Routing{Strategy: StrategyAggregation}
	filter := core.FilterFromSpec(spec)

	items, err := r.ledger.FetchItems(ctx, filter)
	if err != nil {
		return out, fmt.Errorf("fetch items for aggregation: %w", err)
	}
	items = applyFilter(items, filter)
	if len(items) == 0 {
		out.Outcome = core.NoMatch("no item in the requested category or period")
		return out, nil
	}

	sortByAmount(items)
	return r.finish(out, items), nil
}

// routeRetrieval embeds the term (or the whole question), takes the top-K
// neighbours from the vector index and filters them. An empty result after
// filtering is NoMatch; there is no further fallback.
func (r *Router) routeRetrieval(ctx context.Context, question string, spec core.QuerySpec) (Routing, error) {
	out := Routing{Strategy: StrategyRetrieval}
	if r.embedder == nil || r.indexes == nil {
		out.Outcome = core.Unavailable("semantic retrieval not configured")
		return out, nil
	}

	index, err := r.indexes.Index(ctx)
	if err != nil {
		if errors.Is(err, core.ErrCapabilityUnavailable) {
			out.Outcome = core.Unavailable(err.Error())
			return out, nil
		}
		return out, fmt.Errorf("load vector index: %w", err)
	}

	k := min(r.cfg.TopK, index.Size())
	if k == 0 {
		out.Outcome = core.NoMatch("vector index is empty")
		return out, nil
	}

	text := question
	if spec.Term != "" {
		text = spec.Term
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.logger.WarnContext(ctx, "Embedding failed", log.FieldError, err)
		out.Outcome = core.Unavailable("embedding failed: " + err.Error())
		return out, nil
	}

	neighbors, err := index.Search(vec, k)
	if err != nil {
		out.Outcome = core.Unavailable("vector search failed: " + err.Error())
		return out, nil
	}

	ids := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if id, ok := index.ItemID(n.Pos); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		out.Outcome = core.NoMatch("no neighbours found")
		return out, nil
	}

	fetched, err := r.ledger.FetchItems(ctx, core.ItemFilter{IDs: ids})
	if err != nil {
		return out, fmt.Errorf("fetch retrieved items: %w", err)
	}

	items := orderByIDs(fetched, ids)
	items = applyFilter(items, core.FilterFromSpec(spec))
	if len(items) == 0 {
		out.Outcome = core.NoMatch("retrieved items do not pass the filters")
		return out, nil
	}
	return r.finish(out, items), nil
}

func (r *Router) finish(out Routing, items []core.LedgerItem) Routing {
	out.Candidates = items
	out.Summary = aggregate.Summarize(items)
	out.Evidence = aggregate.SelectEvidence(items, r.cfg.EvidenceLimit)
	out.Outcome = core.Ok()
	return out
}

// applyFilter returns a new slice with the items that pass f; the input is
// left untouched.
func applyFilter(items []core.LedgerItem, f core.ItemFilter) []core.LedgerItem {
	out := make([]core.LedgerItem, 0, len(items))
	for _, it := range items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

// sortByRecency orders by date descending; undated items go last.
func sortByRecency(items []core.LedgerItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DateOrEmpty() > items[j].DateOrEmpty()
	})
}

// sortByAmount orders by amount descending; items without amount go last.
func sortByAmount(items []core.LedgerItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Amount, items[j].Amount
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
}

// orderByIDs returns items in the order of ids (relevance order); ids the
// ledger did not return are dropped.
func orderByIDs(items []core.LedgerItem, ids []string) []core.LedgerItem {
	byID := make(map[string]core.LedgerItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]core.LedgerItem, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		if it, ok := byID[id]; ok {
			out = append(out, it)
			seen[id] = struct{}{}
		}
	}
	return out
}
