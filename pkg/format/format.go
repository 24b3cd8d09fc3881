// Package format renders engine values for people: grouped SAR amounts,
// energy, capacity, percentages and year counts.
package format

import (
	"strings"

	"github.com/iwvelando/solar-estimator/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// SAR returns a whole-riyal amount with thousands separators (e.g., "SAR 1,235").
func SAR(amount float64) string {
	return SARDecimals(amount, 0)
}

// SARDecimals returns an amount with a fixed number of decimals (e.g., "SAR 1,234.50").
func SARDecimals(amount float64, decimals int) string {
	return "SAR " + Number(amount, decimals)
}

// SARRange returns a min–max amount. A suffix starting with "SAR" has that
// prefix dropped, so "SAR/yr" renders as "SAR 1,200 – 2,400 /yr".
func SARRange(minAmount, maxAmount float64, suffix string) string {
	out := "SAR " + Number(minAmount, 0) + " – " + Number(maxAmount, 0)
	if suffix == "" {
		return out
	}
	if rest, ok := strings.CutPrefix(suffix, "SAR"); ok {
		return out + " " + rest
	}
	return out + " " + suffix
}

// KWh returns whole kilowatt-hours with separators (e.g., "36,500 kWh").
func KWh(value float64) string {
	return Number(value, 0) + " kWh"
}

// KWp returns capacity with trailing zeros trimmed (e.g., "21.6 kWp").
func KWp(value float64) string {
	return printer.Sprintf("%v", number.Decimal(mathutil.RoundTo(value, 3), number.MaxFractionDigits(3))) + " kWp"
}

// Pct returns a percentage with the given decimals (e.g., "43%").
func Pct(value float64, decimals int) string {
	return Number(value, decimals) + "%"
}

// Years returns a count with singular or plural unit.
func Years(value float64) string {
	unit := "years"
	if value == 1 {
		unit = "year"
	}
	return printer.Sprintf("%v", number.Decimal(mathutil.RoundTo(value, 1), number.MaxFractionDigits(1))) + " " + unit
}

// CO2 returns an offset in metric tonnes per year (e.g., "2.4 tonnes CO₂/yr").
func CO2(tonnes float64) string {
	return printer.Sprintf("%v", number.Decimal(mathutil.RoundTo(tonnes, 1), number.MaxFractionDigits(1))) + " tonnes CO₂/yr"
}

// Number returns a grouped number with exactly decimals fraction digits.
func Number(value float64, decimals int) string {
	return printer.Sprintf("%v", number.Decimal(mathutil.RoundTo(value, decimals),
		number.MinFractionDigits(decimals),
		number.MaxFractionDigits(decimals),
	))
}
