// Package seasonal spreads an average monthly consumption across the year
// using a fixed summer-peaking weight table.
package seasonal

import (
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
)

// Weights are twelve Jan..Dec multipliers that sum to 12.
type Weights [constants.MonthsPerYear]float64

// Normalize scales raw weights to sum to exactly 12. A table with no positive
// total falls back to a flat profile.
func Normalize(raw [constants.MonthsPerYear]float64) Weights {
	var w Weights
	var sum float64
	for i, v := range raw {
		w[i] = mathutil.NonNegative(v)
		sum += w[i]
	}
	if sum <= 0 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	scale := constants.MonthsPerYear / sum
	for i := range w {
		w[i] *= scale
	}
	return w
}

// Distribute returns monthly consumption whose total is 12 × monthlyAvgKwh.
func Distribute(monthlyAvgKwh float64, w Weights) [constants.MonthsPerYear]float64 {
	avg := mathutil.NonNegative(monthlyAvgKwh)
	var out [constants.MonthsPerYear]float64
	for i, m := range w {
		out[i] = avg * m
	}
	return out
}

// PeakToTroughRatio is the summer-to-winter swing implied by the weights.
func (w Weights) PeakToTroughRatio() float64 {
	lo, hi := w[0], w[0]
	for _, v := range w[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return mathutil.SafeDivide(hi, lo, 0)
}
