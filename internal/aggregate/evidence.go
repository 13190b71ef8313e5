package aggregate

import (
	"fmt"
	"strconv"
	"strings"

	"spendrag/internal/core"
)

const DefaultEvidenceLimit = 5

const unknownValue = "?"

// SelectEvidence renders at most limit citation lines from items in the
// order given. Ordering is the caller's responsibility; nothing is re-sorted.
// A non-positive limit falls back to DefaultEvidenceLimit.
func SelectEvidence(items []core.LedgerItem, limit int) string {
	if limit <= 0 {
		limit = DefaultEvidenceLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, evidenceLine(it))
	}
	return strings.Join(lines, "\n")
}

// evidenceLine formats one item as
// "- date | merchant | name (qty=Q unit, amount=A) | source: path".
func evidenceLine(it core.LedgerItem) string {
	date := unknownValue
	if it.Date != nil && *it.Date != "" {
		date = *it.Date
	}
	merchant := unknownValue
	if it.Merchant != nil && *it.Merchant != "" {
		merchant = *it.Merchant
	}

	qty := "qty=" + unknownValue
	if it.Qty != nil {
		qty = "qty=" + formatNumber(*it.Qty)
		if it.Unit != nil && strings.TrimSpace(*it.Unit) != "" {
			qty += " " + strings.TrimSpace(*it.Unit)
		}
	}

	amount := unknownValue
	if it.Amount != nil {
		amount = formatNumber(core.RoundAmount(*it.Amount))
	}

	source := it.SourcePath
	if source == "" {
		source = unknownValue
	}

	return fmt.Sprintf("- %s | %s | %s (%s, amount=%s) | source: %s",
		date, merchant, it.NameRaw, qty, amount, source)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
