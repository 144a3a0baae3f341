// Package core provides amount parsing and timestamp normalization helpers.
//
// Amounts are kept as decimal values end to end; documents coming back from a
// remote store may carry them as numbers, strings or decimals, and timestamps in
// whatever representation the backend uses.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input to a positive decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for invalid formats, signs, or zero amounts.
//
// Examples:
//   ParseAmount("12.34") -> 12.34, nil
//   ParseAmount("12,5")  -> 12.5, nil
//   ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// AmountFromValue decodes an amount stored in a document. Unknown or
// malformed values decode to zero.
func AmountFromValue(v any) decimal.Decimal {
	switch x := v.(type) {
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x != nil {
			return *x
		}
	case float64:
		return decimal.NewFromFloat(x)
	case float32:
		return decimal.NewFromFloat32(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case int32:
		return decimal.NewFromInt32(x)
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(x)); err == nil {
			return d
		}
	}
	return decimal.Zero
}
