// Package core holds the ledger value types shared by every layer.
//
// This file contains amount parsing for extracted receipt values, which
// arrive as free text in Turkish or English number formats.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var thousandsDotDecimalComma = regexp.MustCompile(`\d+\.\d+,\d+`)

// ParseAmount converts a receipt amount string to a decimal.
//
// It accepts dot (12.34) and comma (12,34) decimal separators, and the
// Turkish grouped form 1.234,56. Spaces are ignored. Negative values are
// rejected because ledger amounts are non-negative.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("12,34")    -> 12.34
//	ParseAmount("1.234,56") -> 1234.56
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if thousandsDotDecimalComma.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RoundAmount rounds a monetary value to cents for output.
func RoundAmount(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
