// Package core provides money parsing and handling utilities.
//
// Amounts are decimal.Decimal values in BRL. Input may use either the dot or
// the comma as decimal separator, and pt-BR thousands grouping ("1.234,56")
// is recognised when both separators are present.
package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input to a non-negative amount rounded to cents.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("12,34")    -> 12.34
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("R$ 10")    -> 10
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		// pt-BR: dots group thousands, comma separates decimals
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// CoerceAmount turns an arbitrary decoded value into an amount. Anything that
// is not a finite non-negative number becomes zero.
func CoerceAmount(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		if x.IsNegative() {
			return decimal.Zero
		}
		return x
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return fromFloat(float64(x))
	case int64:
		return fromFloat(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return decimal.Zero
		}
		return fromFloat(f)
	case string:
		d, err := ParseAmount(x)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f).Round(2)
}

// FormatBRL renders an amount the way pt-BR currency formatting does,
// e.g. "R$ 1.234,56" and "-R$ 10,00".
func FormatBRL(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	out := "R$ " + groupThousands(intPart) + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// FormatNumberBR formats f with the given number of decimals using a comma
// as decimal separator ("131,5").
func FormatNumberBR(f float64, decimals int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	s := strconv.FormatFloat(f, 'f', decimals, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")
	out := groupThousands(intPart)
	if hasFrac {
		out += "," + frac
	}
	if neg {
		return "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
