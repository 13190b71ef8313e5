// Package textnorm folds questions and item names into the comparable form
// used by the interpreter, the term matcher and the categorizer.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	decimalComma = regexp.MustCompile(`(\d),(\d)`)
	unitLitre    = regexp.MustCompile(`(\d)\s*lt\b`)
	nonNameChars = regexp.MustCompile(`[^a-z0-9\s.\-]`)
)

// Fold case-folds s, strips diacritics (ç→c, ş→s, ğ→g, ı→i, İ→i) and
// collapses whitespace. Punctuation is kept.
func Fold(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	// Casers and transformers are stateful, so each call builds its own.
	s = cases.Fold().String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = strings.ReplaceAll(strings.ToLower(s), "ı", "i")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeName turns a raw receipt line into its searchable form:
// folded, decimal commas as dots, "lt" unit spelled "l", punctuation other
// than '.' and '-' removed.
//
//	NormalizeName("Su 1,5 LT")       -> "su 1.5l"
//	NormalizeName("ŞAMPUAN 500ml")   -> "sampuan 500ml"
//	NormalizeName("Water 1.5lt Unit") -> "water 1.5l unit"
func NormalizeName(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	x := Fold(s)
	x = decimalComma.ReplaceAllString(x, "${1}.${2}")
	x = unitLitre.ReplaceAllString(x, "${1}l")
	x = nonNameChars.ReplaceAllString(x, " ")
	return strings.Join(strings.Fields(x), " ")
}

// Words returns the letter-only runs of s, in order.
func Words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
}

// Tokens splits s on anything that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// MatchWord reports whether token stands for word. Words of at most two
// letters must match exactly; longer words match as a token prefix so that
// suffixed forms ("marketten", "litrelik") still count.
func MatchWord(token, word string) bool {
	if len([]rune(word)) <= 2 {
		return token == word
	}
	return strings.HasPrefix(token, word)
}

// inflections are the folded Turkish case, plural and possessive endings
// Inflects accepts after a word.
var inflections = map[string]struct{}{
	"e": {}, "a": {}, "i": {}, "u": {},
	"ye": {}, "ya": {}, "yi": {}, "yu": {},
	"de": {}, "da": {}, "te": {}, "ta": {},
	"den": {}, "dan": {}, "ten": {}, "tan": {},
	"in": {}, "un": {}, "nin": {}, "nun": {},
	"si": {}, "su": {}, "le": {}, "la": {},
	"ler": {}, "lar": {}, "leri": {}, "lari": {},
	"lere": {}, "lara": {}, "lerde": {}, "larda": {}, "lerden": {}, "lardan": {},
	"lik": {}, "luk": {},
}

// Inflects reports whether token is word itself or word followed by one
// known Turkish ending. Unlike MatchWord it never accepts an arbitrary
// continuation, so "pilav" does not stand for "pil".
func Inflects(token, word string) bool {
	if word == "" {
		return false
	}
	if token == word {
		return true
	}
	rest, ok := strings.CutPrefix(token, word)
	if !ok {
		return false
	}
	_, ok = inflections[rest]
	return ok
}

// HasPhrase reports whether the words of phrase occur as consecutive tokens.
// Every word but the last must match exactly; the last uses MatchWord.
func HasPhrase(tokens []string, phrase string) bool {
	words := Tokens(phrase)
	if len(words) == 0 || len(words) > len(tokens) {
		return false
	}
	for i := 0; i+len(words) <= len(tokens); i++ {
		ok := true
		for j, w := range words {
			tok := tokens[i+j]
			if j == len(words)-1 {
				ok = MatchWord(tok, w)
			} else {
				ok = tok == w
			}
			if !ok {
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// HasAnyPhrase reports whether any of the phrases occurs in tokens.
func HasAnyPhrase(tokens []string, phrases []string) bool {
	for _, p := range phrases {
		if HasPhrase(tokens, p) {
			return true
		}
	}
	return false
}
