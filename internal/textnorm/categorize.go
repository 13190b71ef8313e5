package textnorm

import "strings"

// Rule maps a category to the keywords that identify it in a normalized name.
type Rule struct {
	Category string
	Keywords []string
}

// DefaultRules is evaluated in order; the first rule with a matching keyword wins.
var DefaultRules = []Rule{
	{Category: "gida", Keywords: []string{
		"sut", "yogurt", "ekmek", "yumurta", "domates", "makarna", "pirinc", "un", "seker", "tuz", "peynir",
		"milk", "bread", "egg", "rice", "pasta", "cheese", "flour", "sugar",
	}},
	{Category: "temizlik", Keywords: []string{
		"bulasik", "deterjan", "camasir", "yumusatici", "dezenfektan", "sabun",
		"detergent", "soap", "bleach",
	}},
	{Category: "su_icecek", Keywords: []string{
		"su", "maden suyu", "meyve suyu", "kola", "ayran", "soda",
		"water", "juice", "cola",
	}},
	{Category: "kisisel_bakim", Keywords: []string{
		"sampuan", "dis macunu", "dis fircasi", "deodorant", "ped", "kolonya",
		"shampoo", "toothpaste",
	}},
	{Category: "ev", Keywords: []string{
		"ampul", "pil", "poset", "strech", "folyo", "kagit havlu", "pecete", "tuvalet kagidi",
		"battery", "bulb", "foil",
	}},
}

// Categorizer assigns a category to normalized item names by keyword rules.
type Categorizer struct {
	rules    []Rule
	fallback string
}

func NewCategorizer(rules []Rule, fallback string) *Categorizer {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Categorizer{rules: rules, fallback: fallback}
}

// Categorize returns the first rule category whose keyword occurs in name,
// or the fallback.
func (c *Categorizer) Categorize(name string) string {
	tokens := Tokens(strings.TrimSpace(name))
	if len(tokens) == 0 {
		return c.fallback
	}
	for _, r := range c.rules {
		if HasAnyPhrase(tokens, r.Keywords) {
			return r.Category
		}
	}
	return c.fallback
}
