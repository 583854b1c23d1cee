package models

import (
	"math/bits"

	dErrors "aidtrace/pkg/domain-errors"
)

// PercentOf returns floor(amount*pct/100) for pct <= 100 without overflowing.
func PercentOf(amount uint64, pct uint8) uint64 {
	hi, lo := bits.Mul64(amount, uint64(pct))
	// pct <= 100 keeps hi below the divisor.
	q, _ := bits.Div64(hi, lo, 100)
	return q
}

// Ratio returns floor(part*100/whole) for part <= whole. whole must be non-zero.
func Ratio(part, whole uint64) uint64 {
	hi, lo := bits.Mul64(part, 100)
	q, _ := bits.Div64(hi, lo, whole)
	return q
}

// AddAmount returns a+b, failing instead of wrapping.
func AddAmount(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, dErrors.Newf(dErrors.CodeInvalidAmount, "amount overflow adding %d to %d", b, a)
	}
	return sum, nil
}
