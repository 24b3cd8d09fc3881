package pvgis

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/validation"
)

var queryValidator = validation.NewValidator()

// Query is one yield request. Bounds keep the proxy to Saudi Arabia's
// bounding box and to values the provider accepts. Aspect uses the
// provider's convention (0 = south, 90 = west, -90 = east).
type Query struct {
	Lat                float64 `json:"lat" validate:"finite,gte=16,lte=32"`
	Lon                float64 `json:"lon" validate:"finite,gte=34,lte=56"`
	PeakPowerKwp       float64 `json:"peakpower" validate:"finite,gte=0.5,lte=5000"`
	LossPct            float64 `json:"loss" validate:"finite,gte=0,lte=50"`
	AngleDeg           float64 `json:"angle" validate:"finite,gte=0,lte=45"`
	Aspect             float64 `json:"aspect" validate:"finite,gte=-180,lte=180"`
	OptimalAngles      bool    `json:"optimalangles,omitempty"`
	OptimalInclination bool    `json:"optimalinclination,omitempty"`
}

// Validate returns an error wrapping ErrInvalidQuery.
func (q Query) Validate() error {
	if err := queryValidator.Struct(q); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidQuery, err)
	}
	return nil
}

// ParseQuery reads a query from URL parameters. lat, lon, peakpower and loss
// are required; angle falls back to defaultAngle and aspect to south.
func ParseQuery(values url.Values, defaultAngle float64) (Query, error) {
	q := Query{AngleDeg: defaultAngle}
	var problems []string

	required := []struct {
		name string
		dst  *float64
	}{
		{"lat", &q.Lat},
		{"lon", &q.Lon},
		{"peakpower", &q.PeakPowerKwp},
		{"loss", &q.LossPct},
	}
	for _, f := range required {
		raw := strings.TrimSpace(values.Get(f.name))
		if raw == "" {
			problems = append(problems, f.name+" is required")
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s is not a number: %q", f.name, raw))
			continue
		}
		*f.dst = v
	}

	optional := []struct {
		name string
		dst  *float64
	}{
		{"angle", &q.AngleDeg},
		{"aspect", &q.Aspect},
	}
	for _, f := range optional {
		raw := strings.TrimSpace(values.Get(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s is not a number: %q", f.name, raw))
			continue
		}
		*f.dst = v
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"optimalangles", &q.OptimalAngles},
		{"optimalinclination", &q.OptimalInclination},
	}
	for _, f := range flags {
		switch strings.TrimSpace(values.Get(f.name)) {
		case "", "0":
		case "1":
			*f.dst = true
		default:
			problems = append(problems, f.name+" must be 0 or 1")
		}
	}

	if len(problems) > 0 {
		return Query{}, fmt.Errorf("%w: %s", ErrInvalidQuery, strings.Join(problems, "; "))
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// BuildURL renders the provider URL for q. Optimal angles win over optimal
// inclination, which wins over an explicit tilt.
func BuildURL(q Query, cfg assumptions.PVGIS) (string, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid provider base url %q: %w", cfg.BaseURL, err)
	}

	params := u.Query()
	params.Set("lat", formatFloat(q.Lat))
	params.Set("lon", formatFloat(q.Lon))
	params.Set("peakpower", formatFloat(q.PeakPowerKwp))
	params.Set("loss", formatFloat(q.LossPct))
	params.Set("pvtechchoice", cfg.PVTechnology)
	params.Set("mountingplace", cfg.MountingPlace)
	params.Set("outputformat", cfg.OutputFormat)
	params.Set("browser", "0")

	switch {
	case q.OptimalAngles:
		params.Set("optimalangles", "1")
	case q.OptimalInclination:
		params.Set("optimalinclination", "1")
		params.Set("aspect", formatFloat(q.Aspect))
	default:
		params.Set("angle", formatFloat(q.AngleDeg))
		params.Set("aspect", formatFloat(q.Aspect))
	}

	u.RawQuery = params.Encode()
	return u.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
