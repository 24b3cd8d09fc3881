package economics

import (
	"math"
	"slices"

	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
)

// IRRStatus tells a converged rate apart from a bounded or best-effort one.
type IRRStatus string

const (
	// IRRConverged means |NPV(rate)| fell below the solver tolerance.
	IRRConverged IRRStatus = "converged"
	// IRRMaxIterations means the iteration budget ran out; the last estimate is reported.
	IRRMaxIterations IRRStatus = "max-iterations"
	// IRRNotProfitable means the rate was pinned at the floor; IRR is reported as 0.
	IRRNotProfitable IRRStatus = "not-profitable"
	// IRRCeiling means the rate was pinned at the ceiling.
	IRRCeiling IRRStatus = "ceiling"
	// IRRFlat means the NPV curve had zero slope and iteration stopped early.
	IRRFlat IRRStatus = "flat"
)

// IRRResult is the solver outcome.
type IRRResult struct {
	RatePct    float64   `json:"ratePct"`
	Status     IRRStatus `json:"status"`
	Iterations int       `json:"iterations"`
}

// NPVAt discounts cashflows[y-1] at year y and subtracts the initial cost.
func NPVAt(rate, initialCost float64, cashflows []float64) float64 {
	npv := -initialCost
	for i, cf := range cashflows {
		npv += cf / math.Pow(1+rate, float64(i+1))
	}
	return npv
}

// npvSlope is d(NPV)/d(rate) for the same cash flows.
func npvSlope(rate float64, cashflows []float64) float64 {
	var d float64
	for i, cf := range cashflows {
		year := float64(i + 1)
		d -= year * cf / math.Pow(1+rate, year+1)
	}
	return d
}

// SolveIRR finds the rate where NPVAt is zero with Newton-Raphson. The rate
// is clamped to [MinRate, MaxRate] after every step, so the loop always ends
// within MaxIterations.
func SolveIRR(initialCost float64, cashflows []float64, s assumptions.Solver) IRRResult {
	// Without a single positive year there is no rate that recovers the cost.
	if !slices.ContainsFunc(cashflows, func(cf float64) bool { return cf > 0 }) {
		return IRRResult{Status: IRRNotProfitable}
	}

	rate := s.InitialGuess
	status := IRRMaxIterations
	iter := 0

	for iter < s.MaxIterations {
		npv := NPVAt(rate, initialCost, cashflows)
		if math.Abs(npv) < s.Tolerance {
			status = IRRConverged
			break
		}
		slope := npvSlope(rate, cashflows)
		if slope == 0 || math.IsNaN(slope) {
			status = IRRFlat
			break
		}
		rate -= npv / slope
		iter++

		switch {
		case math.IsNaN(rate) || rate <= s.MinRate:
			rate = s.MinRate
		case rate > s.MaxRate:
			rate = s.MaxRate
		}
	}

	if status == IRRMaxIterations && math.Abs(NPVAt(rate, initialCost, cashflows)) < s.Tolerance {
		status = IRRConverged
	}

	switch {
	case rate <= s.MinRate:
		return IRRResult{RatePct: 0, Status: IRRNotProfitable, Iterations: iter}
	case rate >= s.MaxRate && status != IRRConverged:
		status = IRRCeiling
	}

	return IRRResult{RatePct: rate * constants.PercentageMultiplier, Status: status, Iterations: iter}
}
