// Package money holds the fixed-point arithmetic used for all monetary values
// and fabric quantities. Amounts are decimals with two fractional digits,
// rounded half-up once at the point of persistence.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Subtotal computes meters × price for one line, rounded for persistence.
func Subtotal(meters, price decimal.Decimal) decimal.Decimal {
	return Round2(meters.Mul(price))
}

// Sum adds the given decimals.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Parse converts a numeric string from the store into a decimal.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return d, nil
}

// String renders a decimal with exactly two fractional digits for the store.
func String(d decimal.Decimal) string {
	return d.StringFixed(2)
}
