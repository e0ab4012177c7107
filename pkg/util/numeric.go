package util

import (
	"math"

	"github.com/shopspring/decimal"
)

// SafeDivide returns a/b, or def when b is zero or the quotient is not finite.
func SafeDivide(a, b, def float64) float64 {
	if b == 0 {
		return def
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return def
	}
	return r
}

// SanitizeFinite maps NaN to 0, +Inf to 1 and -Inf to -1. Finite values pass through.
func SanitizeFinite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return 1
	case math.IsInf(v, -1):
		return -1
	}
	return v
}

// FiniteOr returns v if it is finite, def otherwise.
func FiniteOr(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Mean is the arithmetic mean; 0 for an empty slice. Non-finite inputs propagate.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// Std is the population standard deviation (ddof=0); 0 for an empty slice.
func Std(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// RoundTo rounds v half away from zero to the given number of decimals, working on the
// shortest decimal form of v so 1.0005 rounds to 1.001. Non-finite values are returned as is.
func RoundTo(v float64, decimals int) float64 {
	if !IsFinite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(int32(decimals)).InexactFloat64()
}
