// Package query turns a free-text question into a core.QuerySpec.
package query

import (
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"spendrag/internal/core"
	"spendrag/internal/textnorm"
)

var yearMonth = regexp.MustCompile(`\b(20\d{2})[-/](\d{1,2})\b`)

const minTermLength = 3

// Interpreter extracts category, date range, target term and question-type
// flags. It performs no I/O; "today" comes from the injected clock.
type Interpreter struct {
	lex       Lexicon
	stopWords map[string]struct{}
	lastDays  *regexp.Regexp
	now       func() time.Time
}

type Option func(*Interpreter)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(in *Interpreter) { in.now = now }
}

// WithLexicon replaces the default language table.
func WithLexicon(lex Lexicon) Option {
	return func(in *Interpreter) { in.lex = lex }
}

func NewInterpreter(opts ...Option) *Interpreter {
	in := &Interpreter{lex: DefaultLexicon, now: time.Now}
	for _, opt := range opts {
		opt(in)
	}
	in.stopWords = make(map[string]struct{}, len(in.lex.StopWords))
	for _, w := range in.lex.StopWords {
		in.stopWords[w] = struct{}{}
	}
	in.lastDays = regexp.MustCompile(in.lex.LastDaysPattern)
	return in
}

// Interpret parses question. The same text always yields the same spec for
// a fixed clock.
func (in *Interpreter) Interpret(question string) core.QuerySpec {
	text := textnorm.Fold(question)
	tokens := textnorm.Tokens(text)

	var spec core.QuerySpec
	spec.Term = in.matchTerm(text, tokens)
	spec.Category = in.matchCategory(in.categoryTokens(tokens, spec.Term))
	spec.Month, spec.Dates = in.matchDates(text, tokens)

	spec.Count = textnorm.HasAnyPhrase(tokens, in.lex.CountPhrases)
	spec.Quantity = textnorm.HasAnyPhrase(tokens, in.lex.QuantityPhrases)
	spec.Volume = textnorm.HasAnyPhrase(tokens, in.lex.VolumePhrases)
	spec.Report = spec.Month != "" &&
		(textnorm.HasAnyPhrase(tokens, in.lex.BreakdownPhrases) ||
			textnorm.HasAnyPhrase(tokens, in.lex.TopPhrases) ||
			textnorm.HasAnyPhrase(tokens, in.lex.TotalPhrases))
	return spec
}

func (in *Interpreter) matchCategory(tokens []string) string {
	for _, c := range in.lex.Categories {
		if textnorm.HasAnyPhrase(tokens, c.Aliases) {
			return c.Category
		}
	}
	return ""
}

// categoryTokens drops the extracted term unless it is an alias itself, so
// a term that merely starts like an alias ("pilav", "pil") does not also
// narrow the lookup to that alias's category.
func (in *Interpreter) categoryTokens(tokens []string, term string) []string {
	if term == "" || in.isAlias(term) {
		return tokens
	}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok != term {
			out = append(out, tok)
		}
	}
	return out
}

// matchDates applies the date patterns in priority order; the first one that
// matches decides the range.
func (in *Interpreter) matchDates(text string, tokens []string) (string, *core.DateRange) {
	if m := yearMonth.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			from, to := core.MonthBounds(year, time.Month(month))
			label := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format(core.MonthLayout)
			return label, &core.DateRange{From: from, To: to}
		}
	}

	now := in.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if m := in.lastDays.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return "", &core.DateRange{
				From: core.FormatDate(today.AddDate(0, 0, -n)),
				To:   core.FormatDate(today),
			}
		}
	}

	if textnorm.HasAnyPhrase(tokens, in.lex.ThisMonth) {
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return "", &core.DateRange{From: core.FormatDate(first), To: core.FormatDate(today)}
	}

	if textnorm.HasAnyPhrase(tokens, in.lex.LastMonth) {
		firstThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := firstThis.AddDate(0, 0, -1)
		from, to := core.MonthBounds(end.Year(), end.Month())
		return "", &core.DateRange{From: from, To: to}
	}

	return "", nil
}

// matchTerm returns a reserved short term when it appears as a whole token,
// otherwise the first word of at least three letters that is neither a stop
// word nor an inflected category alias word.
func (in *Interpreter) matchTerm(text string, tokens []string) string {
	for _, reserved := range in.lex.ReservedTerms {
		for _, tok := range tokens {
			if tok == reserved {
				return reserved
			}
		}
	}

	for _, w := range textnorm.Words(text) {
		if utf8.RuneCountInString(w) < minTermLength {
			continue
		}
		if _, stop := in.stopWords[w]; stop {
			continue
		}
		if in.isAlias(w) {
			continue
		}
		return w
	}
	return ""
}

func (in *Interpreter) isAlias(word string) bool {
	for _, c := range in.lex.Categories {
		for _, a := range c.Aliases {
			for _, part := range textnorm.Tokens(a) {
				if textnorm.Inflects(word, part) {
					return true
				}
			}
		}
	}
	return false
}
