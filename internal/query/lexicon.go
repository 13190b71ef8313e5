package query

// CategoryAliases lists the folded keywords that select a category.
type CategoryAliases struct {
	Category string
	Aliases  []string
}

// Lexicon is the language table the interpreter reads. Every entry is in
// folded form (lower case, no diacritics), see textnorm.Fold.
type Lexicon struct {
	// Categories are scanned in order; the first category with a matching
	// alias wins.
	Categories []CategoryAliases
	// StopWords never become a target term.
	StopWords []string
	// ReservedTerms are short high-value terms that win over generic term
	// extraction when present as a whole token.
	ReservedTerms []string

	LastDaysPattern string
	ThisMonth       []string
	LastMonth       []string

	CountPhrases    []string
	QuantityPhrases []string
	VolumePhrases   []string

	BreakdownPhrases []string
	TopPhrases       []string
	TotalPhrases     []string
}

// DefaultLexicon covers Turkish and English phrasing.
var DefaultLexicon = Lexicon{
	Categories: []CategoryAliases{
		{Category: "gida", Aliases: []string{"gida", "yemek", "market", "mutfak", "food", "grocery", "groceries"}},
		{Category: "temizlik", Aliases: []string{"temizlik", "deterjan", "bulasik", "camasir", "cleaning", "detergent"}},
		{Category: "su_icecek", Aliases: []string{"su", "icecek", "soda", "maden suyu", "beverage", "drink"}},
		{Category: "kisisel_bakim", Aliases: []string{"kisisel", "bakim", "sampuan", "dis macunu", "personal care", "shampoo"}},
		{Category: "ev", Aliases: []string{"ev", "ampul", "pil", "kagit", "household"}},
	},
	StopWords: []string{
		// Turkish
		"kac", "lira", "tutar", "tutari", "toplam", "toplami", "harcama", "harcamam", "harcamalar",
		"harcamalari", "harcamalarim", "harcamasi", "harcadim", "ne", "nedir", "kadar", "mi", "mu", "son", "gun", "gunde", "ay",
		"ayin", "ayki", "bu", "gecen", "kategorilere", "kategori", "dagilim", "dagilimi", "kirilim",
		"kirilimi", "en", "cok", "kez", "defa", "sefer", "adet", "tane", "paket", "alinmis", "aldim",
		"aldigim", "almisim", "icinde", "boyunca", "litre", "litrelik", "ilk", "uc", "hangi", "icin", "ile", "var",
		// English
		"how", "many", "much", "times", "often", "did", "does", "have", "has", "what", "which",
		"the", "and", "for", "this", "last", "past", "month", "months", "day", "days", "total",
		"top", "breakdown", "category", "categories", "per", "spend", "spent", "buy", "bought",
		"liter", "liters", "litres", "unit", "units", "piece", "pieces", "item", "items",
		"pack", "packs", "from", "with", "was", "were", "get", "got",
	},
	ReservedTerms: []string{"su"},

	LastDaysPattern: `\b(?:son|last|past)\s+(\d+)\s+(?:gun\w*|days?)\b`,
	ThisMonth:       []string{"bu ay", "this month"},
	LastMonth:       []string{"gecen ay", "last month", "previous month"},

	CountPhrases:    []string{"kac kez", "kac defa", "kac sefer", "how many times", "how often"},
	QuantityPhrases: []string{"kac adet", "kac tane", "kac paket", "how many units", "how many pieces", "how many items", "how many packs"},
	VolumePhrases:   []string{"litre", "liter"},

	BreakdownPhrases: []string{"kategorilere", "dagilim", "kirilim", "breakdown", "by category", "per category"},
	TopPhrases:       []string{"en cok", "top", "ilk 3", "ilk uc", "ilk3"},
	TotalPhrases:     []string{"toplam", "total"},
}
