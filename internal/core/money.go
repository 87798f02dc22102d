// Package core provides money parsing and handling utilities.
//
// Amounts are kept as float64 throughout the domain; decimal arithmetic is
// only used at the edges, to read user input and to render two-decimal values.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered decimal string to an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two decimal places. Negative, zero and malformed values are
// rejected with ErrInvalidAmount.
//
// Examples:
//   ParseAmount("12.34")  -> 12.34, nil
//   ParseAmount("12,34")  -> 12.34, nil
//   ParseAmount("12.345") -> 12.35, nil
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// FormatAmount renders an amount with exactly two decimals for display.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
