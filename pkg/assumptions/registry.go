package assumptions

import (
	"strings"

	"github.com/iwvelando/solar-estimator/pkg/constants"
)

// Entry is one named constant with its unit and citation.
type Entry struct {
	Key    string  `json:"key"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Source string  `json:"source"`
}

// Entries flattens the set into a stable, ordered table.
func (s Set) Entries() []Entry {
	t, pv, sc, ec, so, pg, cm := s.Tariff, s.PVSystem, s.SelfConsumption, s.Economics, s.Solver, s.PVGIS, s.Comparisons

	entries := []Entry{
		{"tariff.tier1MaxKwhPerMonth", t.Tier1MaxKwhPerMonth, "kWh/month", t.Source},
		{"tariff.tier1RateSarPerKwh", t.Tier1RateSarPerKwh, "SAR/kWh", t.Source},
		{"tariff.tier2RateSarPerKwh", t.Tier2RateSarPerKwh, "SAR/kWh", t.Source},
		{"pvSystem.wPerM2", pv.WPerM2, "W/m²", pv.Source},
		{"pvSystem.packingFactor", pv.PackingFactor, "fraction", pv.Source},
		{"pvSystem.systemLossPct", pv.SystemLossPct, "%", pv.Source},
		{"pvSystem.inverterEffPct", pv.InverterEffPct, "%", pv.Source},
		{"pvSystem.degradationPctPerYear", pv.DegradationPctPerYear, "%/yr", pv.Source},
		{"pvSystem.referencePanelWatts", pv.ReferencePanelWatts, "W", pv.Source},
		{"selfConsumption.conservativeLow", sc.ConservativeLow, "fraction", sc.Source},
		{"selfConsumption.conservativeHigh", sc.ConservativeHigh, "fraction", sc.Source},
		{"selfConsumption.profileLow", sc.ProfileLow, "fraction", sc.Source},
		{"selfConsumption.profileHigh", sc.ProfileHigh, "fraction", sc.Source},
	}

	for i, w := range s.Seasonal.RawWeights {
		entries = append(entries, Entry{
			Key:    "seasonal.rawWeights." + strings.ToLower(constants.MonthNames[i]),
			Value:  w,
			Unit:   "weight",
			Source: s.Seasonal.Source,
		})
	}

	entries = append(entries,
		Entry{"economics.installCostSarPerKwp", ec.InstallCostSarPerKwp, "SAR/kWp", ec.Source},
		Entry{"economics.omCostSarPerKwpPerYear", ec.OMCostSarPerKwpPerYear, "SAR/kWp/yr", ec.Source},
		Entry{"economics.discountRatePct", ec.DiscountRatePct, "%", ec.Source},
		Entry{"economics.projectLifeYears", float64(ec.ProjectLifeYears), "years", ec.Source},
		Entry{"economics.cumulativeHorizonYears", float64(ec.CumulativeHorizonYears), "years", ec.Source},
		Entry{"economics.gridCo2IntensityKgPerKwh", ec.GridCO2IntensityKgPerKwh, "kg CO2/kWh", ec.Source},
		Entry{"solver.initialGuess", so.InitialGuess, "rate", "IRR solver control"},
		Entry{"solver.tolerance", so.Tolerance, "SAR", "IRR solver control"},
		Entry{"solver.maxIterations", float64(so.MaxIterations), "count", "IRR solver control"},
		Entry{"solver.minRate", so.MinRate, "rate", "IRR solver control"},
		Entry{"solver.maxRate", so.MaxRate, "rate", "IRR solver control"},
		Entry{"solver.paybackEpsilonSar", so.PaybackEpsilonSar, "SAR/yr", "Payback viability floor"},
		Entry{"pvgis.cacheTtlHours", pg.CacheTTL.Hours(), "hours", pg.Source},
		Entry{"pvgis.defaultAngleDeg", pg.DefaultAngleDeg, "degrees", pg.Source},
		Entry{"comparisons.treeKgCo2PerYear", cm.TreeKgCO2PerYear, "kg CO2/yr", cm.Source},
		Entry{"comparisons.carTripKgCo2", cm.CarTripKgCO2, "kg CO2", cm.Source},
		Entry{"comparisons.householdKwhPerYear", cm.HouseholdKwhPerYear, "kWh/yr", cm.Source},
	)

	return entries
}

// Lookup returns the entry with the given key.
func (s Set) Lookup(key string) (Entry, bool) {
	for _, e := range s.Entries() {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}
