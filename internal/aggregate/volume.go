package aggregate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"spendrag/internal/core"
)

// volumeToken matches a number immediately followed by a volume unit.
// Longer spellings come first so "1.5litre" is not read as "1.5l".
var volumeToken = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(litres|liters|litre|liter|lt|ml|cl|l)\b`)

// ParseVolume extracts the container size in litres from a normalized item
// name. It reports false when the name carries no volume.
//
//	ParseVolume("su 1.5l")          -> 1.5
//	ParseVolume("su 0.5lt")         -> 0.5
//	ParseVolume("su 19l damacana")  -> 19
//	ParseVolume("ayran 330ml")      -> 0.33
func ParseVolume(name string) (float64, bool) {
	m := volumeToken.FindStringSubmatch(strings.ToLower(name))
	if m == nil {
		return 0, false
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil || !v.IsPositive() {
		return 0, false
	}
	switch m[2] {
	case "ml":
		v = v.Div(decimal.NewFromInt(1000))
	case "cl":
		v = v.Div(decimal.NewFromInt(100))
	}
	return v.InexactFloat64(), true
}

// VolumeKey labels a container size in the breakdown, e.g. "1.5-unit".
func VolumeKey(litres float64) string {
	return strconv.FormatFloat(litres, 'f', -1, 64) + "-unit"
}

type volumeTally struct {
	seen  bool
	total decimal.Decimal
	units map[string]decimal.Decimal
}

func newVolumeTally() *volumeTally {
	return &volumeTally{units: make(map[string]decimal.Decimal)}
}

// add counts qty containers of the item's size. Items without a quantity
// cannot be measured and are skipped.
func (v *volumeTally) add(it core.LedgerItem) {
	if it.Qty == nil {
		return
	}
	size, ok := ParseVolume(it.NameNorm)
	if !ok {
		return
	}
	qty := decimal.NewFromFloat(*it.Qty)
	v.seen = true
	v.total = v.total.Add(qty.Mul(decimal.NewFromFloat(size)))
	key := VolumeKey(size)
	v.units[key] = v.units[key].Add(qty)
}

func (v *volumeTally) breakdown() map[string]float64 {
	out := make(map[string]float64, len(v.units))
	for k, q := range v.units {
		out[k] = q.Round(3).InexactFloat64()
	}
	return out
}
