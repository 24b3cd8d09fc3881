package validation

import (
	"fmt"

	"github.com/iwvelando/solar-estimator/pkg/constants"
)

// ValidateRoofArea warns when the usable area is outside the range a
// residential rooftop normally falls in.
func ValidateRoofArea(areaM2 float64) string {
	if areaM2 <= 0 {
		return "Roof area is zero or negative - the estimate will show a zero-size system"
	}
	if areaM2 < constants.MinRecommendedAreaM2 || areaM2 > constants.MaxRecommendedAreaM2 {
		return fmt.Sprintf("Roof area %.0f m² is outside the typical residential range (%.0f-%.0f m²)",
			areaM2, constants.MinRecommendedAreaM2, constants.MaxRecommendedAreaM2)
	}
	return ""
}

// ValidateExport warns about export settings that will not produce a credit.
func ValidateExport(mode string, enabled bool, rate *float64) []string {
	var warnings []string
	if enabled && rate == nil {
		warnings = append(warnings, "Export is enabled but no credit rate is set - no export credit will be counted")
	}
	if rate != nil && *rate < 0 {
		warnings = append(warnings, fmt.Sprintf("Export credit rate %.4f is negative and will be ignored", *rate))
	}
	if mode == "net-billing" && !enabled {
		warnings = append(warnings, "Net-billing mode selected but export is disabled - savings use self-consumption only")
	}
	if enabled && rate != nil && mode != "net-billing" {
		warnings = append(warnings, fmt.Sprintf("Export credit rate is set but mode is %q - credit only applies in net-billing mode", mode))
	}
	return warnings
}

// InputValidator holds the estimate inputs checked for soft warnings.
type InputValidator struct {
	Mode              string
	RoofAreaM2        float64
	ShadingLossPct    float64
	MonthlyKwh        float64
	MonthlyBillSar    float64
	ExportEnabled     bool
	ExportRate        *float64
	InstallCostPerKwp float64
	Override          *float64
}

// ValidateAll validates the inputs and returns warnings
func (iv *InputValidator) ValidateAll() []string {
	var warnings []string

	if w := ValidateRoofArea(iv.RoofAreaM2); w != "" {
		warnings = append(warnings, w)
	}

	if iv.ShadingLossPct > 25 {
		warnings = append(warnings, fmt.Sprintf("Shading loss %.0f%% is unusually high for a rooftop", iv.ShadingLossPct))
	}

	if iv.MonthlyKwh <= 0 && iv.MonthlyBillSar <= 0 {
		warnings = append(warnings, "No consumption or bill given - savings will be zero")
	}

	warnings = append(warnings, ValidateExport(iv.Mode, iv.ExportEnabled, iv.ExportRate)...)

	if iv.InstallCostPerKwp <= 0 {
		warnings = append(warnings, "Install cost is not set - investment metrics will be skipped")
	}

	if iv.Override != nil && *iv.Override > 1 {
		warnings = append(warnings, fmt.Sprintf("Self-consumption override %.2f is above 1 and will be capped at 1", *iv.Override))
	}

	return warnings
}
