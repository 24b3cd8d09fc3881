// Package economics evaluates a sized PV system as an investment: payback,
// NPV, IRR, LCOE, CO2 offset and the household-friendly equivalents.
//
// All figures derive from the midpoint of the savings range. Degradation
// compounds against savings and production; O&M stays flat.
package economics

import (
	"math"

	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
	"github.com/iwvelando/solar-estimator/pkg/sizing"
)

// Params are the per-run economic inputs.
type Params struct {
	InstallCostPerKwp        float64 `json:"installCostPerKwp"`
	OMCostPerKwpPerYear      float64 `json:"omCostPerKwpPerYear"`
	DegradationPctPerYear    float64 `json:"degradationPctPerYear"`
	DiscountRatePct          float64 `json:"discountRatePct"`
	ProjectLifeYears         int     `json:"projectLifeYears"`
	CumulativeHorizonYears   int     `json:"cumulativeHorizonYears"`
	GridCO2IntensityKgPerKwh float64 `json:"gridCo2IntensityKgPerKwh"`
}

// ParamsFromAssumptions returns the registry defaults.
func ParamsFromAssumptions(a assumptions.Set) Params {
	return Params{
		InstallCostPerKwp:        a.Economics.InstallCostSarPerKwp,
		OMCostPerKwpPerYear:      a.Economics.OMCostSarPerKwpPerYear,
		DegradationPctPerYear:    a.PVSystem.DegradationPctPerYear,
		DiscountRatePct:          a.Economics.DiscountRatePct,
		ProjectLifeYears:         a.Economics.ProjectLifeYears,
		CumulativeHorizonYears:   a.Economics.CumulativeHorizonYears,
		GridCO2IntensityKgPerKwh: a.Economics.GridCO2IntensityKgPerKwh,
	}
}

// Result holds every investment metric for one run.
type Result struct {
	TotalInstallCostSar    float64   `json:"totalInstallCostSar"`
	AnnualOMSar            float64   `json:"annualOmSar"`
	MidSavingsSar          float64   `json:"midSavingsSar"`
	AnnualSavingsMinSar    float64   `json:"annualSavingsMinSar"`
	AnnualSavingsMaxSar    float64   `json:"annualSavingsMaxSar"`
	PaybackViable          bool      `json:"paybackViable"`
	SimplePaybackYears     float64   `json:"simplePaybackYears"`
	NPVSar                 float64   `json:"npvSar"`
	IRRPct                 float64   `json:"irrPct"`
	IRRStatus              IRRStatus `json:"irrStatus"`
	IRRIterations          int       `json:"irrIterations"`
	LCOESarPerKwh          float64   `json:"lcoeSarPerKwh"`
	CO2OffsetTonsPerYear   float64   `json:"co2OffsetTonsPerYear"`
	CostPerPanelSar        float64   `json:"costPerPanelSar"`
	CostPerKwpSar          float64   `json:"costPerKwpSar"`
	CumulativeSavingsSar   float64   `json:"cumulativeSavingsSar"`
	CumulativeHorizonYears int       `json:"cumulativeHorizonYears"`
	MonthlySavingsMinSar   float64   `json:"monthlySavingsMinSar"`
	MonthlySavingsMaxSar   float64   `json:"monthlySavingsMaxSar"`
}

// Cashflows returns the net cash flow for years 1..life.
func Cashflows(midSavings, annualOM, degradationPct float64, life int) []float64 {
	if life <= 0 {
		return nil
	}
	keep := 1 - mathutil.ApplyPercentage(1, degradationPct)
	out := make([]float64, life)
	for y := range life {
		out[y] = midSavings*math.Pow(keep, float64(y)) - annualOM
	}
	return out
}

// Evaluate computes the investment metrics. Callers only invoke it when the
// install cost per kWp is positive.
func Evaluate(sz sizing.Result, p Params, solver assumptions.Solver, annualProductionKwh, savingsMin, savingsMax float64) Result {
	production := mathutil.NonNegative(annualProductionKwh)
	cost := sz.SystemKwp * mathutil.NonNegative(p.InstallCostPerKwp)
	om := sz.SystemKwp * mathutil.NonNegative(p.OMCostPerKwpPerYear)
	mid := (savingsMin + savingsMax) / 2
	discount := p.DiscountRatePct / constants.PercentageMultiplier
	keep := 1 - mathutil.ApplyPercentage(1, p.DegradationPctPerYear)

	r := Result{
		TotalInstallCostSar:    cost,
		AnnualOMSar:            om,
		MidSavingsSar:          mid,
		AnnualSavingsMinSar:    savingsMin,
		AnnualSavingsMaxSar:    savingsMax,
		CumulativeHorizonYears: p.CumulativeHorizonYears,
		MonthlySavingsMinSar:   savingsMin / constants.MonthsPerYear,
		MonthlySavingsMaxSar:   savingsMax / constants.MonthsPerYear,
		CO2OffsetTonsPerYear:   production * p.GridCO2IntensityKgPerKwh / constants.KgPerTon,
	}

	if net := mid - om; net > solver.PaybackEpsilonSar {
		r.PaybackViable = true
		r.SimplePaybackYears = cost / net
	}

	cashflows := Cashflows(mid, om, p.DegradationPctPerYear, p.ProjectLifeYears)
	r.NPVSar = NPVAt(discount, cost, cashflows)

	var discountedEnergy float64
	for y := 1; y <= p.ProjectLifeYears; y++ {
		discountedEnergy += production * math.Pow(keep, float64(y-1)) / math.Pow(1+discount, float64(y))
	}
	if discountedEnergy > 0 {
		r.LCOESarPerKwh = cost / discountedEnergy
	}

	irr := SolveIRR(cost, cashflows, solver)
	r.IRRPct, r.IRRStatus, r.IRRIterations = irr.RatePct, irr.Status, irr.Iterations

	if sz.PanelCount > 0 {
		r.CostPerPanelSar = cost / float64(sz.PanelCount)
	}
	if sz.SystemKwp > 0 {
		r.CostPerKwpSar = cost / sz.SystemKwp
	}

	r.CumulativeSavingsSar = -cost
	for _, cf := range Cashflows(mid, om, p.DegradationPctPerYear, p.CumulativeHorizonYears) {
		r.CumulativeSavingsSar += cf
	}

	return r
}
