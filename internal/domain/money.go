package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// MaxAmount caps every price, line subtotal and sale total. In cents it stays
// far enough below the int64 limit that SQL sums over many sales remain exact.
var MaxAmount = decimal.New(1, 11)

// Cents converts an amount to integer minor units, rounding half away from zero.
// Callers keep amounts within MaxAmount; IntPart wraps beyond int64.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// HasCentPrecision reports whether amount needs no more than two fractional digits.
func HasCentPrecision(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

// WithinBound reports whether amount does not exceed MaxAmount.
func WithinBound(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(MaxAmount)
}
