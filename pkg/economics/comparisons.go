package economics

import (
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
)

// Comparisons restate the result in household terms.
type Comparisons struct {
	MonthsFreePerYear      float64 `json:"monthsFreePerYear"`
	TreesEquivalentPerYear float64 `json:"treesEquivalentPerYear"`
	CarTripsAvoidedPerYear float64 `json:"carTripsAvoidedPerYear"`
	HouseholdsEquivalent   float64 `json:"householdsEquivalent"`
}

// CitizenComparisons converts mid savings, CO2 offset and production into
// months of free electricity, trees, car trips and households powered.
func CitizenComparisons(midSavings, monthlyBillBefore, co2TonsPerYear, annualProductionKwh float64, c assumptions.Comparisons) Comparisons {
	co2Kg := mathutil.NonNegative(co2TonsPerYear) * constants.KgPerTon
	out := Comparisons{
		TreesEquivalentPerYear: mathutil.RoundTo(mathutil.SafeDivide(co2Kg, c.TreeKgCO2PerYear, 0), 0),
		CarTripsAvoidedPerYear: mathutil.RoundTo(mathutil.SafeDivide(co2Kg, c.CarTripKgCO2, 0), 0),
		HouseholdsEquivalent:   mathutil.RoundTo(mathutil.SafeDivide(mathutil.NonNegative(annualProductionKwh), c.HouseholdKwhPerYear, 0), 1),
	}
	if monthlyBillBefore > 0 {
		out.MonthsFreePerYear = mathutil.NonNegative(midSavings) / monthlyBillBefore
	}
	return out
}
