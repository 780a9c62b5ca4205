// Package money holds the minor-unit money representation shared by the
// pricing pipeline. Amounts are integers in the currency's minor unit;
// fractional arithmetic (tax rates, percentage discounts) goes through
// shopspring/decimal and is rounded back to minor units.
package money

import "github.com/shopspring/decimal"

// Money represents a monetary value stored in minor units.
type Money = int64

// FromDecimal rounds d half-up to zero decimal places and returns the
// resulting minor-unit amount.
func FromDecimal(d decimal.Decimal) Money {
	return d.Round(0).IntPart()
}

// ToDecimal converts a minor-unit amount into a decimal value.
func ToDecimal(m Money) decimal.Decimal {
	return decimal.NewFromInt(m)
}

// ApplyPercent multiplies base by a percentage rate (e.g. 7.5 for 7.5%)
// and rounds the result to minor units.
func ApplyPercent(base Money, percent decimal.Decimal) Money {
	return FromDecimal(PercentOf(base, percent))
}

// PercentOf returns the unrounded decimal share of base at the given
// percentage rate.
func PercentOf(base Money, percent decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(base).Mul(percent).Div(decimal.NewFromInt(100))
}

// Clamp bounds v into [0, max].
func Clamp(v, max Money) Money {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
