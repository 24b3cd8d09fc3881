// Package sizing converts usable roof area into a DC nameplate system and maps
// between the display azimuth and the yield provider's aspect convention.
package sizing

import (
	"math"

	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
)

// Roof describes the usable mounting surface.
type Roof struct {
	UsableAreaM2     float64 `json:"usableAreaM2" mapstructure:"usableAreaM2" validate:"finite,gte=0"`
	TiltDeg          float64 `json:"tiltDeg" mapstructure:"tiltDeg" validate:"finite,gte=0,lte=90"`
	AzimuthDeg       float64 `json:"azimuthDeg" mapstructure:"azimuthDeg" validate:"finite"`
	ShadingLossPct   float64 `json:"shadingLossPct" mapstructure:"shadingLossPct" validate:"finite,gte=0,lte=100"`
	UseOptimalAngles bool    `json:"useOptimalAngles" mapstructure:"useOptimalAngles"`
}

// Result is the sized system.
type Result struct {
	SystemKwp       float64 `json:"systemKwp"`
	PanelCount      int     `json:"panelCount"`
	RoofCoveragePct float64 `json:"roofCoveragePct"`
}

// Size returns the DC nameplate capacity for the roof. Losses are never
// applied here; they are passed to the yield provider instead.
func Size(roof Roof, pv assumptions.PVSystem) Result {
	area := mathutil.NonNegative(roof.UsableAreaM2)
	kwPerM2 := mathutil.NonNegative(pv.WPerM2) / constants.WattsPerKilowatt * mathutil.NonNegative(pv.PackingFactor)
	if area == 0 || kwPerM2 == 0 {
		return Result{}
	}

	systemKwp := mathutil.RoundTo(area*kwPerM2, 2)

	panelCount := 0
	if pv.ReferencePanelWatts > 0 {
		panelCount = int(math.Floor(systemKwp * constants.WattsPerKilowatt / pv.ReferencePanelWatts))
	}

	panelKwp := float64(panelCount) * pv.ReferencePanelWatts / constants.WattsPerKilowatt
	areaUsed := panelKwp / kwPerM2
	coverage := math.Min(constants.PercentageMultiplier, math.Round(mathutil.CalculatePercentage(areaUsed, area)))

	return Result{
		SystemKwp:       systemKwp,
		PanelCount:      panelCount,
		RoofCoveragePct: coverage,
	}
}

// CombinedLossPct folds shading into the system loss multiplicatively and
// caps the result at the provider's accepted maximum.
func CombinedLossPct(systemLossPct, shadingLossPct float64) float64 {
	sys := mathutil.Clamp(mathutil.NonNegative(systemLossPct), 0, constants.PercentageMultiplier) / constants.PercentageMultiplier
	shade := mathutil.Clamp(mathutil.NonNegative(shadingLossPct), 0, constants.PercentageMultiplier) / constants.PercentageMultiplier
	combined := (1 - (1-sys)*(1-shade)) * constants.PercentageMultiplier
	return math.Min(constants.MaxCombinedLossPct, mathutil.RoundTo(combined, 1))
}

// DisplayToPVGISAspect converts a compass azimuth (0=N, 90=E, 180=S, 270=W)
// into the provider aspect (0=S, 90=W, -90=E, ±180=N), in [-180, 180).
func DisplayToPVGISAspect(azimuthDeg float64) float64 {
	return wrap(azimuthDeg-180, -180)
}

// PVGISAspectToDisplay is the inverse of DisplayToPVGISAspect, in [0, 360).
func PVGISAspectToDisplay(aspectDeg float64) float64 {
	return wrap(aspectDeg+180, 0)
}

// wrap maps deg into [lo, lo+360).
func wrap(deg, lo float64) float64 {
	d := math.Mod(deg-lo, 360)
	if d < 0 {
		d += 360
	}
	return d + lo
}
