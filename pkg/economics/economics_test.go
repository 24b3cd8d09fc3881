package economics

import (
	"math"
	"testing"

	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/sizing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatParams(costPerKwp, omPerKwp float64) Params {
	return Params{
		InstallCostPerKwp:        costPerKwp,
		OMCostPerKwpPerYear:      omPerKwp,
		DegradationPctPerYear:    0,
		DiscountRatePct:          5,
		ProjectLifeYears:         25,
		CumulativeHorizonYears:   25,
		GridCO2IntensityKgPerKwh: 0.57,
	}
}

// bisectIRR finds the root of NPVAt on [lo, hi] independently of Newton.
func bisectIRR(cost float64, cashflows []float64, lo, hi float64) float64 {
	for range 200 {
		mid := (lo + hi) / 2
		if NPVAt(mid, cost, cashflows) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func TestIRRAnnuityScenario(t *testing.T) {
	solver := assumptions.Default().Solver
	sz := sizing.Result{SystemKwp: 10, PanelCount: 25}

	r := Evaluate(sz, flatParams(5000, 0), solver, 16000, 5000, 5000)

	require.Equal(t, 50000.0, r.TotalInstallCostSar)
	assert.Equal(t, IRRConverged, r.IRRStatus)
	assert.LessOrEqual(t, r.IRRIterations, solver.MaxIterations)

	want := bisectIRR(50000, Cashflows(5000, 0, 0, 25), 0, 1) * 100
	assert.InDelta(t, want, r.IRRPct, 0.5)
	assert.InDelta(t, 8.78, r.IRRPct, 0.1)

	// 50000 = 5000 x annuity factor at the solved rate.
	rate := r.IRRPct / 100
	annuity := (1 - math.Pow(1+rate, -25)) / rate
	assert.InDelta(t, 10.0, annuity, 0.01)
}

func TestSolveIRRTwoYears(t *testing.T) {
	got := SolveIRR(1000, []float64{600, 600}, assumptions.Default().Solver)
	assert.Equal(t, IRRConverged, got.Status)
	assert.InDelta(t, 13.066, got.RatePct, 0.01)
}

func TestSolveIRRNotProfitable(t *testing.T) {
	solver := assumptions.Default().Solver

	got := SolveIRR(50000, Cashflows(1000, 5000, 0, 25), solver)
	assert.Equal(t, IRRNotProfitable, got.Status)
	assert.Zero(t, got.RatePct)

	got = SolveIRR(50000, nil, solver)
	assert.Equal(t, IRRNotProfitable, got.Status)
}

func TestSolveIRRCeiling(t *testing.T) {
	solver := assumptions.Default().Solver
	got := SolveIRR(0, Cashflows(5000, 0, 0, 25), solver)
	assert.Equal(t, IRRCeiling, got.Status)
	assert.InDelta(t, solver.MaxRate*100, got.RatePct, 1e-9)
	assert.LessOrEqual(t, got.Iterations, solver.MaxIterations)
}

func TestEvaluateHandComputed(t *testing.T) {
	p := Params{
		InstallCostPerKwp:        1000,
		DiscountRatePct:          10,
		ProjectLifeYears:         2,
		CumulativeHorizonYears:   2,
		GridCO2IntensityKgPerKwh: 0.57,
	}
	r := Evaluate(sizing.Result{SystemKwp: 1, PanelCount: 2}, p, assumptions.Default().Solver, 1000, 600, 600)

	assert.InDelta(t, 41.3223, r.NPVSar, 1e-3)
	assert.InDelta(t, 1000/(1000/1.1+1000/1.21), r.LCOESarPerKwh, 1e-9)
	assert.InDelta(t, 13.066, r.IRRPct, 0.01)
	assert.True(t, r.PaybackViable)
	assert.InDelta(t, 1000.0/600.0, r.SimplePaybackYears, 1e-9)
	assert.Equal(t, 500.0, r.CostPerPanelSar)
	assert.Equal(t, 1000.0, r.CostPerKwpSar)
	assert.InDelta(t, 200.0, r.CumulativeSavingsSar, 1e-9)
	assert.InDelta(t, 50.0, r.MonthlySavingsMinSar, 1e-9)
	assert.InDelta(t, 0.57, r.CO2OffsetTonsPerYear, 1e-9)
}

func TestEvaluatePaybackNotViable(t *testing.T) {
	sz := sizing.Result{SystemKwp: 10, PanelCount: 25}
	r := Evaluate(sz, flatParams(5000, 1000), assumptions.Default().Solver, 16000, 4000, 6000)

	assert.Equal(t, 10000.0, r.AnnualOMSar)
	assert.False(t, r.PaybackViable)
	assert.Zero(t, r.SimplePaybackYears)
	assert.False(t, math.IsInf(r.SimplePaybackYears, 0))
	assert.Equal(t, IRRNotProfitable, r.IRRStatus)
	assert.Less(t, r.NPVSar, -50000.0)
}

func TestEvaluatePaybackEpsilon(t *testing.T) {
	sz := sizing.Result{SystemKwp: 10, PanelCount: 25}
	// Net first-year savings of exactly 1 SAR sits on the floor and is not viable.
	r := Evaluate(sz, flatParams(5000, 100), assumptions.Default().Solver, 16000, 1001, 1001)
	assert.False(t, r.PaybackViable)

	r = Evaluate(sz, flatParams(5000, 100), assumptions.Default().Solver, 16000, 1010, 1010)
	assert.True(t, r.PaybackViable)
	assert.InDelta(t, 5000.0, r.SimplePaybackYears, 1e-9)
}

func TestEvaluateDegradation(t *testing.T) {
	sz := sizing.Result{SystemKwp: 10, PanelCount: 25}
	flat := Evaluate(sz, flatParams(5000, 0), assumptions.Default().Solver, 16000, 5000, 5000)

	p := flatParams(5000, 0)
	p.DegradationPctPerYear = 0.5
	degraded := Evaluate(sz, p, assumptions.Default().Solver, 16000, 5000, 5000)

	assert.Less(t, degraded.NPVSar, flat.NPVSar)
	assert.Less(t, degraded.IRRPct, flat.IRRPct)
	assert.Greater(t, degraded.LCOESarPerKwh, flat.LCOESarPerKwh)
	assert.Less(t, degraded.CumulativeSavingsSar, flat.CumulativeSavingsSar)
	assert.InDelta(t, 75000.0, flat.CumulativeSavingsSar, 1e-6)

	var sum float64
	for y := range 25 {
		sum += 5000 * math.Pow(0.995, float64(y))
	}
	assert.InDelta(t, sum-50000, degraded.CumulativeSavingsSar, 1e-6)
}

func TestEvaluateZeroProduction(t *testing.T) {
	r := Evaluate(sizing.Result{}, flatParams(3500, 50), assumptions.Default().Solver, 0, 0, 0)
	assert.Zero(t, r.LCOESarPerKwh)
	assert.Zero(t, r.CostPerPanelSar)
	assert.Zero(t, r.CostPerKwpSar)
	assert.False(t, r.PaybackViable)
	assert.False(t, math.IsNaN(r.NPVSar))
}

func TestCashflows(t *testing.T) {
	cfs := Cashflows(1000, 100, 10, 3)
	require.Len(t, cfs, 3)
	assert.InDelta(t, 900, cfs[0], 1e-9)
	assert.InDelta(t, 800, cfs[1], 1e-9)
	assert.InDelta(t, 710, cfs[2], 1e-9)
	assert.Nil(t, Cashflows(1000, 100, 10, 0))
}

func TestCitizenComparisons(t *testing.T) {
	c := assumptions.Default().Comparisons
	got := CitizenComparisons(2000, 540, 36500*0.57/1000, 36500, c)

	assert.InDelta(t, 2000.0/540.0, got.MonthsFreePerYear, 1e-9)
	assert.Equal(t, 991.0, got.TreesEquivalentPerYear)
	assert.Equal(t, 116.0, got.CarTripsAvoidedPerYear)
	assert.Equal(t, 1.0, got.HouseholdsEquivalent)

	none := CitizenComparisons(2000, 0, 0, 0, c)
	assert.Zero(t, none.MonthsFreePerYear)
	assert.Zero(t, none.TreesEquivalentPerYear)
}
