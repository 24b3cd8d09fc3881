// Package savings turns monthly PV production and household consumption into
// a range of bill savings. It always reports a (min, max) pair; a caller
// override collapses the range to a point without changing the shape.
package savings

import (
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
	"github.com/iwvelando/solar-estimator/pkg/seasonal"
	"github.com/iwvelando/solar-estimator/pkg/tariff"
)

// Export describes grid export. CreditRatePerKwh is nil unless the caller
// has a confirmed contractual rate; no rate is ever assumed.
type Export struct {
	Enabled          bool     `json:"enabled" mapstructure:"enabled"`
	CreditRatePerKwh *float64 `json:"creditRatePerKwh" mapstructure:"creditRatePerKwh"`
	UtilityProgram   string   `json:"utilityProgram,omitempty" mapstructure:"utilityProgram"`
}

// Input is everything one savings computation needs.
type Input struct {
	MonthlyProductionKwh    [constants.MonthsPerYear]float64
	MonthlyAvgKwh           float64
	Export                  Export
	Mode                    Mode
	SelfConsumptionOverride *float64
}

// Range is the annual savings envelope.
type Range struct {
	MinSarPerYear           float64    `json:"minSarPerYear"`
	MaxSarPerYear           float64    `json:"maxSarPerYear"`
	MinKwhSelfConsumed      float64    `json:"minKwhSelfConsumedPerYear"`
	MaxKwhSelfConsumed      float64    `json:"maxKwhSelfConsumedPerYear"`
	MinKwhExported          float64    `json:"minKwhExportedPerYear"`
	MaxKwhExported          float64    `json:"maxKwhExportedPerYear"`
	SelfConsumptionPct      [2]float64 `json:"selfConsumptionPctRange"`
	AnnualProductionKwh     float64    `json:"annualProductionKwh"`
	AnnualConsumptionKwh    float64    `json:"annualConsumptionKwh"`
	ExportCreditApplied     bool       `json:"exportCreditApplied"`
	AnnualBillBeforeSar     float64    `json:"annualBillBeforeSar"`
	MonthlyBillBeforeAvgSar float64    `json:"monthlyBillBeforeAvgSar"`
}

// Month is one row of the breakdown.
type Month struct {
	Month              string  `json:"month"`
	MonthNum           int     `json:"monthNum"`
	ProductionKwh      float64 `json:"productionKwh"`
	ConsumptionKwh     float64 `json:"consumptionKwh"`
	SelfConsumedMinKwh float64 `json:"selfConsumedMinKwh"`
	SelfConsumedMaxKwh float64 `json:"selfConsumedMaxKwh"`
	ExportedMinKwh     float64 `json:"exportedMinKwh"`
	ExportedMaxKwh     float64 `json:"exportedMaxKwh"`
	BillBeforeSar      float64 `json:"billBeforeSar"`
	ExportCreditMinSar float64 `json:"exportCreditMinSar"`
	ExportCreditMaxSar float64 `json:"exportCreditMaxSar"`
	SavingsMinSar      float64 `json:"savingsMinSar"`
	SavingsMaxSar      float64 `json:"savingsMaxSar"`
}

// Breakdown is the Jan..Dec month table.
type Breakdown [constants.MonthsPerYear]Month

// SelfConsumptionBounds returns the fractions used for the run. A positive
// override wins over the mode preset and is capped at 1.
func SelfConsumptionBounds(mode Mode, override *float64, sc assumptions.SelfConsumption) (low, high float64) {
	if override != nil && mathutil.IsFinite(*override) && *override > 0 {
		v := min(*override, 1)
		return v, v
	}
	return mode.Bounds(sc)
}

// CreditRate returns the export credit rate to apply, or false when the
// credit gate is closed. All three conditions must hold.
func CreditRate(mode Mode, exp Export) (float64, bool) {
	if mode != ModeNetBilling || !exp.Enabled || exp.CreditRatePerKwh == nil {
		return 0, false
	}
	rate := *exp.CreditRatePerKwh
	if !mathutil.IsFinite(rate) || rate < 0 {
		return 0, false
	}
	return rate, true
}

// Compute produces the annual range and the monthly breakdown.
func Compute(in Input, a assumptions.Set) (Range, Breakdown) {
	scLow, scHigh := SelfConsumptionBounds(in.Mode, in.SelfConsumptionOverride, a.SelfConsumption)
	rate, credit := CreditRate(in.Mode, in.Export)
	consumption := seasonal.Distribute(in.MonthlyAvgKwh, seasonal.Normalize(a.Seasonal.RawWeights))

	var r Range
	var rows Breakdown

	for i := range constants.MonthsPerYear {
		prod := mathutil.NonNegative(in.MonthlyProductionKwh[i])
		cons := consumption[i]

		scMin := min(prod*scLow, cons)
		scMax := min(prod*scHigh, cons)

		// Min self-consumption pairs with max export.
		expMin := mathutil.NonNegative(prod - scMax)
		expMax := mathutil.NonNegative(prod - scMin)

		base := tariff.Bill(cons, a.Tariff).MonthlyBillSar
		savMin := base - tariff.ReducedBill(cons, scMin, a.Tariff).MonthlyBillSar
		savMax := base - tariff.ReducedBill(cons, scMax, a.Tariff).MonthlyBillSar

		var creditMin, creditMax float64
		if credit {
			creditMin = expMin * rate
			creditMax = expMax * rate
			savMin += creditMin
			savMax += creditMax
		}

		savMin = mathutil.NonNegative(savMin)
		savMax = mathutil.NonNegative(savMax)

		rows[i] = Month{
			Month:              constants.MonthNames[i],
			MonthNum:           i + 1,
			ProductionKwh:      prod,
			ConsumptionKwh:     cons,
			SelfConsumedMinKwh: scMin,
			SelfConsumedMaxKwh: scMax,
			ExportedMinKwh:     expMin,
			ExportedMaxKwh:     expMax,
			BillBeforeSar:      base,
			ExportCreditMinSar: creditMin,
			ExportCreditMaxSar: creditMax,
			SavingsMinSar:      savMin,
			SavingsMaxSar:      savMax,
		}

		r.MinSarPerYear += savMin
		r.MaxSarPerYear += savMax
		r.MinKwhSelfConsumed += scMin
		r.MaxKwhSelfConsumed += scMax
		r.MinKwhExported += expMin
		r.MaxKwhExported += expMax
		r.AnnualProductionKwh += prod
		r.AnnualConsumptionKwh += cons
		r.AnnualBillBeforeSar += base
	}

	r.SelfConsumptionPct = [2]float64{scLow * constants.PercentageMultiplier, scHigh * constants.PercentageMultiplier}
	r.ExportCreditApplied = credit
	r.MonthlyBillBeforeAvgSar = r.AnnualBillBeforeSar / constants.MonthsPerYear

	return r, rows
}

// Mid is the midpoint of the annual savings range.
func (r Range) Mid() float64 {
	return (r.MinSarPerYear + r.MaxSarPerYear) / 2
}

// OffsetPct is the share of annual consumption covered by the upper
// self-consumption bound, capped at 100.
func (r Range) OffsetPct() float64 {
	if r.AnnualConsumptionKwh <= 0 {
		return 0
	}
	return min(constants.PercentageMultiplier, mathutil.CalculatePercentage(r.MaxKwhSelfConsumed, r.AnnualConsumptionKwh))
}
