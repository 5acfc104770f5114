// Package money provides fixed-point helpers for pool arithmetic. Amounts are
// integer minor units; fractions and multipliers are exact decimals, so no
// payout computation ever goes through a float.
package money

import (
	"errors"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in minor units (cents, satoshis, points...)
type Amount int64

// DefaultMultiplierPlaces is the precision odds multipliers are truncated to
const DefaultMultiplierPlaces int32 = 4

// ErrOverflow is returned when an addition would not fit in an Amount
var ErrOverflow = errors.New("amount overflow")

var one = decimal.NewFromInt(1)

// Decimal converts the amount to an exact decimal
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(a))
}

// String renders the amount in minor units
func (a Amount) String() string {
	return strconv.FormatInt(int64(a), 10)
}

// IsPositive reports whether the amount is strictly greater than zero
func (a Amount) IsPositive() bool {
	return a > 0
}

// Add returns a+b, failing instead of wrapping around
func Add(a, b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sum adds up amounts. Callers are expected to have bounded the inputs.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// ValidFraction reports whether f lies in [0, 1)
func ValidFraction(f decimal.Decimal) bool {
	return !f.IsNegative() && f.LessThan(one)
}

// FractionOf returns floor(a × f). The remainder stays with the caller's
// complement, e.g. the net pot keeps what the house take rounds away.
func FractionOf(a Amount, f decimal.Decimal) Amount {
	return Amount(a.Decimal().Mul(f).Floor().IntPart())
}

// ProRata returns floor(share × total / whole). whole must be positive.
func ProRata(share, whole, total Amount) Amount {
	q, _ := share.Decimal().Mul(total.Decimal()).QuoRem(whole.Decimal(), 0)
	return Amount(q.IntPart())
}

// Ratio returns num/den truncated to the given number of decimal places.
// den must be positive.
func Ratio(num, den Amount, places int32) decimal.Decimal {
	q, _ := num.Decimal().QuoRem(den.Decimal(), places)
	return q
}

// Distribute splits total across weights pro rata. Every share but the last
// is floored; the last absorbs the residual so the shares sum to total
// exactly. The result depends only on the order of weights.
func Distribute(total Amount, weights []Amount) []Amount {
	shares := make([]Amount, len(weights))
	if len(weights) == 0 {
		return shares
	}

	whole := Sum(weights...)
	if whole <= 0 {
		return shares
	}

	var allocated Amount
	last := len(weights) - 1
	for i, w := range weights[:last] {
		shares[i] = ProRata(w, whole, total)
		allocated += shares[i]
	}
	shares[last] = total - allocated

	return shares
}
