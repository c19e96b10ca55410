package accounting

import "github.com/shopspring/decimal"

// The internal model stores monetary amounts as integer minor units (cents).
// The provider exchanges decimal major units (Rand). Every crossing of that
// boundary converts explicitly through these helpers; rounding is always
// half-to-even so repeated round trips cannot drift.

// CentsToMajor converts integer cents to a decimal major-unit amount.
func CentsToMajor(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

// MajorToCents converts a decimal major-unit amount to integer cents,
// rounding half-to-even.
func MajorToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).RoundBank(0).IntPart()
}
