package router

import (
	"strings"
	"unicode/utf8"

	"spendrag/internal/textnorm"
)

// TermPolicy decides whether a normalized item name matches a target term.
//
// Terms up to ShortTermMaxLen runes are high-frequency fragments ("su"
// would otherwise hit "sut", "sucuk", "susam"), so they only match the
// whole name or a whole space-delimited token. Longer terms match the whole
// name or any token; with InflectedTokens a token that is the term plus a
// Turkish plural or case ending ("kolalar") also matches. Arbitrary
// continuations never do, so "water" stays apart from "watermelon".
type TermPolicy struct {
	ShortTermMaxLen int
	InflectedTokens bool
}

var DefaultTermPolicy = TermPolicy{ShortTermMaxLen: 2, InflectedTokens: true}

func (p TermPolicy) Match(name, term string) bool {
	name = strings.TrimSpace(name)
	term = strings.TrimSpace(term)
	if name == "" || term == "" {
		return false
	}
	if name == term {
		return true
	}
	if utf8.RuneCountInString(term) <= p.ShortTermMaxLen {
		return strings.HasPrefix(name, term+" ") ||
			strings.HasSuffix(name, " "+term) ||
			strings.Contains(name, " "+term+" ")
	}
	for _, tok := range strings.Fields(name) {
		if tok == term {
			return true
		}
		if p.InflectedTokens && textnorm.Inflects(tok, term) {
			return true
		}
	}
	return false
}
