package store

import (
	"math"

	"github.com/shopspring/decimal"
)

// Amounts are stored as integer cents.

// MaxAmount is the largest amount that fits in the cents column.
var MaxAmount = decimal.New(math.MaxInt64, -2)

func checkAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegativeAmount
	}
	if d.Round(2).GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

func toCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
