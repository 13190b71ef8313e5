package router

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"spendrag/internal/cache"
	"spendrag/internal/core"
	"spendrag/internal/log"
	"spendrag/internal/query"
)

const (
	DefaultAnswerMaxTokens = 300
	reportMaxTokens        = 250

	NoMatchMessage      = "Bu soruya yanıt verecek kayıt bulamadım."
	unavailablePrefix   = "Bu soru için gerekli veri kaynağı hazır değil: "
	breakdownLinePrefix = "Kırılım: "
)

// Answer is what a caller gets back for one question.
type Answer struct {
	Question string              `json:"question"`
	Text     string              `json:"answer"`
	Strategy Strategy            `json:"strategy,omitempty"`
	Outcome  string              `json:"outcome"`
	Reason   string              `json:"reason,omitempty"`
	Summary  *core.ResultSummary `json:"summary,omitempty"`
	Evidence string              `json:"evidence,omitempty"`
	Cached   bool                `json:"cached"`
	Model    string              `json:"model,omitempty"`
}

// Answerer runs the whole question flow: cache, interpretation, routing and
// generation. Generator and cache are optional.
type Answerer struct {
	interpreter *query.Interpreter
	router      *Router
	generator   Generator
	cache       ResponseCache
	cacheMaxAge time.Duration
	maxTokens   int
	logger      *log.Logger
	structured  *log.StructuredLogger
}

type AnswererOption func(*Answerer)

func WithGenerator(g Generator) AnswererOption {
	return func(a *Answerer) { a.generator = g }
}

func WithCache(c ResponseCache, maxAge time.Duration) AnswererOption {
	return func(a *Answerer) {
		a.cache = c
		a.cacheMaxAge = maxAge
	}
}

func WithMaxTokens(n int) AnswererOption {
	return func(a *Answerer) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func WithLogger(l *log.Logger) AnswererOption {
	return func(a *Answerer) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAnswerer(interpreter *query.Interpreter, router *Router, opts ...AnswererOption) *Answerer {
	a := &Answerer{
		interpreter: interpreter,
		router:      router,
		maxTokens:   DefaultAnswerMaxTokens,
		cacheMaxAge: cache.DefaultMaxAge,
		logger:      log.New(log.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.structured = log.NewStructuredLogger(a.logger)
	a.logger = a.logger.WithComponent(log.ComponentRouter)
	return a
}

// Ask answers one question. The only errors are an empty question and
// ledger failures; NoMatch and Unavailable come back as an Answer whose
// Outcome says so. Cache failures never surface.
func (a *Answerer) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, core.ErrEmptyQuestion
	}
	hash := cache.Key(question)

	if a.cache != nil {
		text, ok, err := a.cache.Get(ctx, question, a.cacheMaxAge)
		if err != nil {
			a.logger.WarnContext(ctx, "Cache read failed, treating as miss",
				log.FieldError, err, log.FieldQuestionHash, hash)
		} else if ok {
			a.structured.LogAnswer(ctx, log.AnswerEvent{QuestionHash: hash, Outcome: core.OutcomeOK.String(), Cached: true})
			return Answer{Question: question, Text: text, Outcome: core.OutcomeOK.String(), Cached: true}, nil
		}
	}

	spec := a.interpreter.Interpret(question)
	a.logger.DebugContext(ctx, "Question interpreted",
		log.FieldCategory, spec.Category, log.FieldTerm, spec.Term, log.FieldMonth, spec.Month)

	routing, err := a.router.Route(ctx, question, spec)
	if err != nil {
		return Answer{}, fmt.Errorf("route question: %w", err)
	}

	ans := Answer{
		Question: question,
		Strategy: routing.Strategy,
		Outcome:  routing.Outcome.Kind.String(),
		Reason:   routing.Outcome.Reason,
	}

	switch routing.Outcome.Kind {
	case core.OutcomeNoMatch:
		ans.Text = NoMatchMessage
	case core.OutcomeUnavailable:
		ans.Text = unavailablePrefix + routing.Outcome.Reason
	default:
		a.compose(ctx, question, routing, &ans)
	}

	if a.cache != nil && ans.Outcome == core.OutcomeOK.String() {
		if err := a.cache.Put(ctx, question, ans.Text, ans.Model); err != nil {
			a.logger.WarnContext(ctx, "Cache write failed",
				log.FieldError, err, log.FieldQuestionHash, hash)
		}
	}

	a.structured.LogAnswer(ctx, log.AnswerEvent{
		QuestionHash: hash,
		Strategy:     string(ans.Strategy),
		Outcome:      ans.Outcome,
		Candidates:   len(routing.Candidates),
	})
	return ans, nil
}

// compose fills the answer text for an OK routing. Without a generator the
// text is rendered from the numbers directly.
func (a *Answerer) compose(ctx context.Context, question string, routing Routing, ans *Answer) {
	if routing.Report == nil {
		summary := routing.Summary
		ans.Summary = &summary
		ans.Evidence = routing.Evidence
	}

	if a.generator == nil {
		ans.Text = renderPlain(routing)
		return
	}

	var (
		prompt    string
		maxTokens = a.maxTokens
		err       error
	)
	if routing.Report != nil {
		prompt, err = BuildReportPrompt(question, *routing.Report)
		maxTokens = min(maxTokens, reportMaxTokens)
	} else {
		prompt, err = BuildAnswerPrompt(question, routing.Summary, routing.Evidence)
	}
	if err != nil {
		a.markUnavailable(ans, "prompt: "+err.Error())
		return
	}

	text, err := a.generator.Generate(ctx, prompt, maxTokens, 0)
	if err != nil {
		a.logger.WarnContext(ctx, "Generation failed",
			log.FieldError, err, log.FieldOperation, log.OpGenerate, log.FieldModel, a.generator.Model())
		a.markUnavailable(ans, "generation failed: "+err.Error())
		return
	}
	ans.Model = a.generator.Model()
	ans.Text = strings.TrimSpace(text)
	if routing.Report == nil {
		if line := BreakdownLine(routing.Summary.VolumeBreakdown); line != "" {
			ans.Text += "\n\n" + line
		}
	}
}

func (a *Answerer) markUnavailable(ans *Answer, reason string) {
	ans.Outcome = core.OutcomeUnavailable.String()
	ans.Reason = reason
	ans.Text = unavailablePrefix + reason
}

// BreakdownLine renders the container-size breakdown, smallest size first,
// e.g. "Kırılım: 0.5-unit: 12 adet, 1.5-unit: 18 adet".
func BreakdownLine(breakdown map[string]float64) string {
	if len(breakdown) == 0 {
		return ""
	}
	keys := make([]string, 0, len(breakdown))
	for k := range breakdown {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return unitSize(keys[i]) < unitSize(keys[j])
	})
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s adet", k, formatFloat(breakdown[k])))
	}
	return breakdownLinePrefix + strings.Join(parts, ", ")
}

func unitSize(key string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(key, "-unit"), 64)
	if err != nil {
		return 0
	}
	return v
}

// renderPlain is the generator-free answer: the computed totals followed by
// the evidence lines.
func renderPlain(routing Routing) string {
	var b strings.Builder
	if r := routing.Report; r != nil {
		fmt.Fprintf(&b, "%s toplamı: %s %s (%d kalem)", r.Month, formatFloat(r.Total), core.DefaultCurrency, r.ItemCount)
		for _, c := range r.ByCategory {
			fmt.Fprintf(&b, "\n- %s: %s", c.Key, formatFloat(c.Amount))
		}
		if n := min(len(r.TopItems), reportTopItems); n > 0 {
			b.WriteString("\nEn çok harcananlar:")
			for _, it := range r.TopItems[:n] {
				fmt.Fprintf(&b, "\n- %s: %s", it.Name, formatFloat(it.Amount))
			}
		}
		return b.String()
	}

	s := routing.Summary
	fmt.Fprintf(&b, "Eşleşen kayıt: %d, toplam tutar: %s %s", s.MatchedCount, formatFloat(s.TotalAmount), core.DefaultCurrency)
	if s.TotalQty != nil {
		fmt.Fprintf(&b, "\nToplam adet: %s", formatFloat(*s.TotalQty))
	}
	if s.TotalVolume != nil {
		fmt.Fprintf(&b, "\nTahmini toplam hacim: %s litre", formatFloat(*s.TotalVolume))
	}
	if line := BreakdownLine(s.VolumeBreakdown); line != "" {
		b.WriteString("\n" + line)
	}
	if routing.Evidence != "" {
		b.WriteString("\n\nKaynaklar:\n" + routing.Evidence)
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
