package pvgis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/iwvelando/solar-estimator/pkg/constants"
)

// Response mirrors the parts of the provider's PVcalc JSON the estimator
// reads. Unknown fields are ignored.
type Response struct {
	Inputs  Inputs  `json:"inputs"`
	Outputs Outputs `json:"outputs"`

	raw json.RawMessage
}

// Inputs echoes the request as the provider understood it.
type Inputs struct {
	Location       Location       `json:"location"`
	MeteoData      MeteoData      `json:"meteo_data"`
	MountingSystem MountingSystem `json:"mounting_system"`
	PVModule       PVModule       `json:"pv_module"`
}

// Location of the simulated site.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// MeteoData names the radiation database behind the numbers.
type MeteoData struct {
	RadiationDB string `json:"radiation_db"`
	MeteoDB     string `json:"meteo_db"`
	YearMin     int    `json:"year_min"`
	YearMax     int    `json:"year_max"`
	UseHorizon  Flag   `json:"use_horizon"`
	HorizonDB   string `json:"horizon_db"`
}

// MountingSystem reports the tilt and aspect used, which differ from the
// request when the provider optimised them.
type MountingSystem struct {
	Fixed struct {
		Slope   AngleValue `json:"slope"`
		Azimuth AngleValue `json:"azimuth"`
		Type    string     `json:"type"`
	} `json:"fixed"`
}

// AngleValue is a mounting angle and whether the provider chose it.
type AngleValue struct {
	Value   float64 `json:"value"`
	Optimal Flag    `json:"optimal"`
}

// PVModule describes the simulated array.
type PVModule struct {
	Technology string  `json:"technology"`
	PeakPower  float64 `json:"peak_power"`
	SystemLoss float64 `json:"system_loss"`
}

// Outputs holds the monthly series and annual totals for a fixed array.
type Outputs struct {
	Monthly struct {
		Fixed []MonthlyOutput `json:"fixed"`
	} `json:"monthly"`
	Totals struct {
		Fixed Totals `json:"fixed"`
	} `json:"totals"`
}

// MonthlyOutput is one month of the long-term average.
type MonthlyOutput struct {
	Month int     `json:"month"`
	Ed    float64 `json:"E_d"`    // kWh/day
	Em    float64 `json:"E_m"`    // kWh/month
	Hd    float64 `json:"H(i)_d"` // kWh/m²/day on plane
	Hm    float64 `json:"H(i)_m"` // kWh/m²/month on plane
	SDm   float64 `json:"SD_m"`
}

// Totals are annual figures; the loss terms are percentages.
type Totals struct {
	Ed     float64         `json:"E_d"`
	Em     float64         `json:"E_m"`
	Ey     float64         `json:"E_y"`
	Hd     float64         `json:"H(i)_d"`
	Hm     float64         `json:"H(i)_m"`
	Hy     float64         `json:"H(i)_y"`
	SDm    float64         `json:"SD_m"`
	SDy    float64         `json:"SD_y"`
	LAOI   float64         `json:"l_aoi"`
	LSpec  json.RawMessage `json:"l_spec"` // number or text such as "?(0)"
	LTg    float64         `json:"l_tg"`
	LTotal float64         `json:"l_total"`
}

// Flag decodes booleans the provider sends as true/false, 0/1 or strings of
// either.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.Trim(data, `"`)) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("cannot decode %s as a flag", data)
	}
	return nil
}

// DecodeResponse parses a provider body and checks it carries a full year of
// monthly output.
func DecodeResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if _, err := r.MonthlyProduction(); err != nil {
		return nil, err
	}
	r.raw = append(json.RawMessage(nil), data...)
	return &r, nil
}

// Raw returns the body the response was decoded from.
func (r *Response) Raw() json.RawMessage {
	return r.raw
}

// MonthlyProduction returns E_m ordered January to December.
func (r *Response) MonthlyProduction() ([constants.MonthsPerYear]float64, error) {
	var out [constants.MonthsPerYear]float64
	rows := r.Outputs.Monthly.Fixed
	if len(rows) != constants.MonthsPerYear {
		return out, fmt.Errorf("%w: expected %d months, got %d", ErrMalformedResponse, constants.MonthsPerYear, len(rows))
	}

	var seen [constants.MonthsPerYear]bool
	for _, m := range rows {
		if m.Month < 1 || m.Month > constants.MonthsPerYear || seen[m.Month-1] {
			return out, fmt.Errorf("%w: unexpected month %d", ErrMalformedResponse, m.Month)
		}
		seen[m.Month-1] = true
		out[m.Month-1] = m.Em
	}
	return out, nil
}

// AnnualProduction returns E_y in kWh.
func (r *Response) AnnualProduction() float64 {
	return r.Outputs.Totals.Fixed.Ey
}

// OptimalSlope returns the tilt the provider used.
func (r *Response) OptimalSlope() float64 {
	return r.Inputs.MountingSystem.Fixed.Slope.Value
}
