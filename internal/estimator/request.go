package estimator

import (
	"errors"
	"fmt"

	"github.com/iwvelando/solar-estimator/internal/cities"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/savings"
	"github.com/iwvelando/solar-estimator/pkg/sizing"
)

// ErrNoLocation is returned when a request names neither a city nor
// coordinates.
var ErrNoLocation = errors.New("no location given")

// Location is a catalog city or explicit coordinates. Coordinates win when
// both are set.
type Location struct {
	CityID string   `json:"cityId,omitempty" mapstructure:"cityId"`
	Lat    *float64 `json:"lat,omitempty" mapstructure:"lat"`
	Lon    *float64 `json:"lon,omitempty" mapstructure:"lon"`
}

// Consumption is either an average monthly kWh or a monthly bill; the kWh
// figure wins when both are positive.
type Consumption struct {
	MonthlyKwh     float64 `json:"monthlyKwh" mapstructure:"monthlyKwh" validate:"finite,gte=0"`
	MonthlyBillSar float64 `json:"monthlyBillSar,omitempty" mapstructure:"monthlyBillSar" validate:"finite,gte=0"`
}

// Advanced holds the per-run technical and cost settings. InverterEffPct is
// informational; the provider's system loss already covers the inverter.
type Advanced struct {
	WPerM2                float64 `json:"wPerM2" mapstructure:"wPerM2" validate:"finite,gte=0"`
	PackingFactor         float64 `json:"packingFactor" mapstructure:"packingFactor" validate:"finite,gte=0,lte=1"`
	SystemLossPct         float64 `json:"systemLossPct" mapstructure:"systemLossPct" validate:"finite,gte=0,lte=100"`
	InverterEffPct        float64 `json:"inverterEffPct" mapstructure:"inverterEffPct" validate:"finite,gte=0,lte=100"`
	DegradationPctPerYear float64 `json:"degradationPctPerYear" mapstructure:"degradationPctPerYear" validate:"finite,gte=0,lt=100"`
	ProjectLifeYears      int     `json:"projectLifeYears" mapstructure:"projectLifeYears" validate:"gte=1,lte=100"`
	InstallCostPerKwp     float64 `json:"installCostPerKwp" mapstructure:"installCostPerKwp" validate:"finite,gte=0"`
	OMCostPerKwpPerYear   float64 `json:"omCostPerKwpPerYear" mapstructure:"omCostPerKwpPerYear" validate:"finite,gte=0"`
	DiscountRatePct       float64 `json:"discountRatePct" mapstructure:"discountRatePct" validate:"finite,gt=-100"`
}

// DefaultAdvanced copies the registry values into an Advanced.
func DefaultAdvanced(a assumptions.Set) Advanced {
	return Advanced{
		WPerM2:                a.PVSystem.WPerM2,
		PackingFactor:         a.PVSystem.PackingFactor,
		SystemLossPct:         a.PVSystem.SystemLossPct,
		InverterEffPct:        a.PVSystem.InverterEffPct,
		DegradationPctPerYear: a.PVSystem.DegradationPctPerYear,
		ProjectLifeYears:      a.Economics.ProjectLifeYears,
		InstallCostPerKwp:     a.Economics.InstallCostSarPerKwp,
		OMCostPerKwpPerYear:   a.Economics.OMCostSarPerKwpPerYear,
		DiscountRatePct:       a.Economics.DiscountRatePct,
	}
}

// Request is one estimate's inputs.
type Request struct {
	Location                Location       `json:"location"`
	Roof                    sizing.Roof    `json:"roof"`
	Consumption             Consumption    `json:"consumption"`
	Advanced                Advanced       `json:"advanced"`
	Export                  savings.Export `json:"export"`
	Mode                    savings.Mode   `json:"mode"`
	SelfConsumptionOverride *float64       `json:"selfConsumptionOverride,omitempty"`
}

// DefaultRequest is a south-facing 100 m² roof in Riyadh using 3000 kWh a
// month, with export off and the conservative range.
func DefaultRequest(a assumptions.Set) Request {
	return Request{
		Location: Location{CityID: cities.DefaultID},
		Roof: sizing.Roof{
			UsableAreaM2:   constants.DefaultRoofAreaM2,
			TiltDeg:        constants.DefaultTiltDeg,
			AzimuthDeg:     constants.DefaultAzimuthDeg,
			ShadingLossPct: constants.DefaultShadingLossPct,
		},
		Consumption: Consumption{MonthlyKwh: constants.DefaultMonthlyKwh},
		Advanced:    DefaultAdvanced(a),
		Mode:        savings.ModeConservative,
	}
}

// ResolvedLocation is where the estimate was computed. For explicit
// coordinates City is the nearest catalog entry.
type ResolvedLocation struct {
	City       cities.City `json:"city"`
	Lat        float64     `json:"lat"`
	Lon        float64     `json:"lon"`
	Custom     bool        `json:"custom"`
	DistanceKm float64     `json:"distanceKm,omitempty"`
}

// ResolveLocation turns l into coordinates.
func ResolveLocation(l Location) (ResolvedLocation, error) {
	if l.Lat != nil && l.Lon != nil {
		city, dist := cities.FindNearest(*l.Lat, *l.Lon)
		return ResolvedLocation{City: city, Lat: *l.Lat, Lon: *l.Lon, Custom: true, DistanceKm: dist}, nil
	}
	if l.Lat != nil || l.Lon != nil {
		return ResolvedLocation{}, fmt.Errorf("%w: both lat and lon are needed", ErrNoLocation)
	}
	if l.CityID == "" {
		return ResolvedLocation{}, ErrNoLocation
	}
	city, err := cities.FindByID(l.CityID)
	if err != nil {
		return ResolvedLocation{}, err
	}
	return ResolvedLocation{City: city, Lat: city.Lat, Lon: city.Lon}, nil
}

// apply returns a copy of a with the run's advanced settings in place, so
// the pure engine packages see one consistent set.
func (adv Advanced) apply(a assumptions.Set) assumptions.Set {
	a.PVSystem.WPerM2 = adv.WPerM2
	a.PVSystem.PackingFactor = adv.PackingFactor
	a.PVSystem.SystemLossPct = adv.SystemLossPct
	a.PVSystem.InverterEffPct = adv.InverterEffPct
	a.PVSystem.DegradationPctPerYear = adv.DegradationPctPerYear
	a.Economics.ProjectLifeYears = adv.ProjectLifeYears
	a.Economics.InstallCostSarPerKwp = adv.InstallCostPerKwp
	a.Economics.OMCostSarPerKwpPerYear = adv.OMCostPerKwpPerYear
	a.Economics.DiscountRatePct = adv.DiscountRatePct
	return a
}
