// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/solar-estimator/pkg/constants"
)

// RoundTo rounds a value to the given number of decimal places.
func RoundTo(val float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(val*scale) / scale
}

// Round rounds a value to two decimals, i.e. to represent real currency.
func Round(val float64) float64 {
	return RoundTo(val, 2)
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// NonNegative returns val, or 0 when val is negative or not finite.
func NonNegative(val float64) float64 {
	if !IsFinite(val) || val < 0 {
		return 0
	}
	return val
}

// Clamp limits val to [lo, hi].
func Clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// SafeDivide returns num/den, or fallback when den is zero.
func SafeDivide(num, den, fallback float64) float64 {
	if den == 0 {
		return fallback
	}
	return num / den
}

// CalculatePercentage calculates what percentage value is of total
func CalculatePercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * constants.PercentageMultiplier
}

// ApplyPercentage applies a percentage to a value
func ApplyPercentage(value, percentage float64) float64 {
	return value * (percentage / constants.PercentageMultiplier)
}

// Sum12 adds up a fixed twelve-month series.
func Sum12(values [constants.MonthsPerYear]float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
