// Package tariff computes residential bills under the two-tier monthly block
// tariff. Money arithmetic is done in decimal so tier boundaries and rounding
// are exact.
package tariff

import (
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Result is the bill for one month of consumption.
type Result struct {
	MonthlyBillSar       float64 `json:"monthlyBillSar"`
	AnnualBillSar        float64 `json:"annualBillSar"`
	Tier1Kwh             float64 `json:"tier1Kwh"`
	Tier2Kwh             float64 `json:"tier2Kwh"`
	BlendedRateSarPerKwh float64 `json:"blendedRateSarPerKwh"`
}

// Bill tiers one month of consumption. AnnualBillSar is twelve times that
// month and is meant for display only; seasonal totals must sum monthly bills.
func Bill(monthlyKwh float64, t assumptions.Tariff) Result {
	kwh := decimal.NewFromFloat(mathutil.NonNegative(monthlyKwh))
	tier1Max := decimal.NewFromFloat(t.Tier1MaxKwhPerMonth)
	rate1 := decimal.NewFromFloat(t.Tier1RateSarPerKwh)
	rate2 := decimal.NewFromFloat(t.Tier2RateSarPerKwh)

	tier1 := decimal.Min(kwh, tier1Max)
	tier2 := decimal.Max(decimal.Zero, kwh.Sub(tier1Max))

	monthly := tier1.Mul(rate1).Add(tier2.Mul(rate2))
	annual := monthly.Mul(decimal.NewFromInt(constants.MonthsPerYear))

	blended := rate1
	if kwh.IsPositive() {
		blended = monthly.Div(kwh)
	}

	return Result{
		MonthlyBillSar:       monthly.Round(2).InexactFloat64(),
		AnnualBillSar:        annual.Round(2).InexactFloat64(),
		Tier1Kwh:             tier1.InexactFloat64(),
		Tier2Kwh:             tier2.InexactFloat64(),
		BlendedRateSarPerKwh: blended.Round(4).InexactFloat64(),
	}
}

// ReducedBill bills the grid imports left after self-consumption.
func ReducedBill(baseMonthlyKwh, selfConsumedKwh float64, t assumptions.Tariff) Result {
	return Bill(mathutil.NonNegative(baseMonthlyKwh-selfConsumedKwh), t)
}

// MonthlySavings is the bill reduction for one month, never negative.
func MonthlySavings(baseMonthlyKwh, selfConsumedKwh float64, t assumptions.Tariff) float64 {
	before := Bill(baseMonthlyKwh, t).MonthlyBillSar
	after := ReducedBill(baseMonthlyKwh, selfConsumedKwh, t).MonthlyBillSar
	return mathutil.NonNegative(before - after)
}

// KwhFromBill estimates monthly consumption from a monthly bill. The second
// return value is false when the bill is not positive.
func KwhFromBill(monthlySar float64, t assumptions.Tariff) (float64, bool) {
	if !mathutil.IsFinite(monthlySar) || monthlySar <= 0 || t.Tier1RateSarPerKwh <= 0 {
		return 0, false
	}

	bill := decimal.NewFromFloat(monthlySar)
	rate1 := decimal.NewFromFloat(t.Tier1RateSarPerKwh)
	tier1Max := decimal.NewFromFloat(t.Tier1MaxKwhPerMonth)
	tier1Cost := tier1Max.Mul(rate1)

	if bill.LessThanOrEqual(tier1Cost) || t.Tier2RateSarPerKwh <= 0 {
		return bill.Div(rate1).InexactFloat64(), true
	}

	rate2 := decimal.NewFromFloat(t.Tier2RateSarPerKwh)
	return tier1Max.Add(bill.Sub(tier1Cost).Div(rate2)).InexactFloat64(), true
}
