// Package assumptions is the versioned registry of every numeric constant the
// estimator uses. Calculation packages receive a Set as a parameter and never
// hard-code these values.
package assumptions

import (
	"fmt"
	"time"

	"github.com/iwvelando/solar-estimator/pkg/validation"
)

// Version identifies the registry revision. Bump it whenever a value changes.
const Version = "2024.11"

// Set is one complete, read-only snapshot of the registry.
type Set struct {
	Version         string          `json:"version" mapstructure:"version"`
	Tariff          Tariff          `json:"tariff" mapstructure:"tariff"`
	PVSystem        PVSystem        `json:"pvSystem" mapstructure:"pvSystem"`
	SelfConsumption SelfConsumption `json:"selfConsumption" mapstructure:"selfConsumption"`
	Seasonal        Seasonal        `json:"seasonal" mapstructure:"seasonal"`
	Economics       Economics       `json:"economics" mapstructure:"economics"`
	Solver          Solver          `json:"solver" mapstructure:"solver"`
	PVGIS           PVGIS           `json:"pvgis" mapstructure:"pvgis"`
	Comparisons     Comparisons     `json:"comparisons" mapstructure:"comparisons"`
	NetBilling      NetBilling      `json:"netBilling" mapstructure:"netBilling"`
}

// Tariff is the two-tier residential block tariff. Tiering applies per month.
type Tariff struct {
	Tier1MaxKwhPerMonth float64 `json:"tier1MaxKwhPerMonth" mapstructure:"tier1MaxKwhPerMonth" validate:"finite,gt=0"`
	Tier1RateSarPerKwh  float64 `json:"tier1RateSarPerKwh" mapstructure:"tier1RateSarPerKwh" validate:"finite,gt=0"`
	Tier2RateSarPerKwh  float64 `json:"tier2RateSarPerKwh" mapstructure:"tier2RateSarPerKwh" validate:"finite,gt=0"`
	Source              string  `json:"source" mapstructure:"source"`
	LastVerified        string  `json:"lastVerified" mapstructure:"lastVerified"`
}

// Tier1BlockCostSar is the bill for a month that exactly fills tier 1.
func (t Tariff) Tier1BlockCostSar() float64 {
	return t.Tier1MaxKwhPerMonth * t.Tier1RateSarPerKwh
}

// PVSystem holds module and balance-of-system defaults.
type PVSystem struct {
	WPerM2                float64 `json:"wPerM2" mapstructure:"wPerM2" validate:"finite,gt=0,lte=400"`
	PackingFactor         float64 `json:"packingFactor" mapstructure:"packingFactor" validate:"finite,gt=0,lte=1"`
	SystemLossPct         float64 `json:"systemLossPct" mapstructure:"systemLossPct" validate:"finite,gte=0,lte=50"`
	InverterEffPct        float64 `json:"inverterEffPct" mapstructure:"inverterEffPct" validate:"finite,gt=0,lte=100"`
	DegradationPctPerYear float64 `json:"degradationPctPerYear" mapstructure:"degradationPctPerYear" validate:"finite,gte=0,lt=100"`
	ReferencePanelWatts   float64 `json:"referencePanelWatts" mapstructure:"referencePanelWatts" validate:"finite,gt=0"`
	Source                string  `json:"source" mapstructure:"source"`
}

// SelfConsumption holds the fraction-of-production bounds per savings mode.
type SelfConsumption struct {
	ConservativeLow  float64 `json:"conservativeLow" mapstructure:"conservativeLow" validate:"finite,gte=0,lte=1"`
	ConservativeHigh float64 `json:"conservativeHigh" mapstructure:"conservativeHigh" validate:"finite,gte=0,lte=1,gtefield=ConservativeLow"`
	ProfileLow       float64 `json:"profileLow" mapstructure:"profileLow" validate:"finite,gte=0,lte=1"`
	ProfileHigh      float64 `json:"profileHigh" mapstructure:"profileHigh" validate:"finite,gte=0,lte=1,gtefield=ProfileLow"`
	Source           string  `json:"source" mapstructure:"source"`
}

// Seasonal holds the raw Jan..Dec consumption weights before normalization.
type Seasonal struct {
	RawWeights [12]float64 `json:"rawWeights" mapstructure:"rawWeights" validate:"dive,finite,gte=0"`
	Source     string      `json:"source" mapstructure:"source"`
}

// Economics holds investment defaults.
type Economics struct {
	InstallCostSarPerKwp     float64 `json:"installCostSarPerKwp" mapstructure:"installCostSarPerKwp" validate:"finite,gte=0"`
	OMCostSarPerKwpPerYear   float64 `json:"omCostSarPerKwpPerYear" mapstructure:"omCostSarPerKwpPerYear" validate:"finite,gte=0"`
	DiscountRatePct          float64 `json:"discountRatePct" mapstructure:"discountRatePct" validate:"finite,gt=-100"`
	ProjectLifeYears         int     `json:"projectLifeYears" mapstructure:"projectLifeYears" validate:"gte=1,lte=60"`
	CumulativeHorizonYears   int     `json:"cumulativeHorizonYears" mapstructure:"cumulativeHorizonYears" validate:"gte=1,lte=60"`
	GridCO2IntensityKgPerKwh float64 `json:"gridCo2IntensityKgPerKwh" mapstructure:"gridCo2IntensityKgPerKwh" validate:"finite,gte=0"`
	Source                   string  `json:"source" mapstructure:"source"`
}

// Solver holds the IRR iteration controls and the payback floor.
type Solver struct {
	InitialGuess      float64 `json:"initialGuess" mapstructure:"initialGuess" validate:"finite"`
	Tolerance         float64 `json:"tolerance" mapstructure:"tolerance" validate:"finite,gt=0"`
	MaxIterations     int     `json:"maxIterations" mapstructure:"maxIterations" validate:"gte=1,lte=1000"`
	MinRate           float64 `json:"minRate" mapstructure:"minRate" validate:"finite,gt=-1"`
	MaxRate           float64 `json:"maxRate" mapstructure:"maxRate" validate:"finite,gtfield=MinRate"`
	PaybackEpsilonSar float64 `json:"paybackEpsilonSar" mapstructure:"paybackEpsilonSar" validate:"finite,gt=0"`
}

// PVGIS holds yield-provider request defaults.
type PVGIS struct {
	BaseURL         string        `json:"baseUrl" mapstructure:"baseUrl" validate:"required,url"`
	CacheTTL        time.Duration `json:"cacheTtl" mapstructure:"cacheTtl" validate:"gte=0"`
	PVTechnology    string        `json:"pvTechnology" mapstructure:"pvTechnology" validate:"required"`
	MountingPlace   string        `json:"mountingPlace" mapstructure:"mountingPlace" validate:"required"`
	OutputFormat    string        `json:"outputFormat" mapstructure:"outputFormat" validate:"required"`
	DefaultAngleDeg float64       `json:"defaultAngleDeg" mapstructure:"defaultAngleDeg" validate:"finite,gte=0,lte=90"`
	Source          string        `json:"source" mapstructure:"source"`
}

// Comparisons holds the divisors for household-friendly equivalents.
type Comparisons struct {
	TreeKgCO2PerYear    float64 `json:"treeKgCo2PerYear" mapstructure:"treeKgCo2PerYear" validate:"finite,gt=0"`
	CarTripKgCO2        float64 `json:"carTripKgCo2" mapstructure:"carTripKgCo2" validate:"finite,gt=0"`
	HouseholdKwhPerYear float64 `json:"householdKwhPerYear" mapstructure:"householdKwhPerYear" validate:"finite,gt=0"`
	Source              string  `json:"source" mapstructure:"source"`
}

// NetBilling documents the export-credit policy. It carries no default rate.
type NetBilling struct {
	Note   string `json:"note" mapstructure:"note"`
	Source string `json:"source" mapstructure:"source"`
}

// Default returns a fresh copy of the registry.
func Default() Set {
	return Set{
		Version: Version,
		Tariff: Tariff{
			Tier1MaxKwhPerMonth: 6000,
			Tier1RateSarPerKwh:  0.18,
			Tier2RateSarPerKwh:  0.30,
			Source:              "Saudi Electricity Company (SEC) residential tariff, effective Jan 2018. https://www.se.com.sa/en-us/customers/pages/tariff.aspx",
			LastVerified:        "2024-11",
		},
		PVSystem: PVSystem{
			WPerM2:                216,
			PackingFactor:         1.0,
			SystemLossPct:         14,
			InverterEffPct:        96,
			DegradationPctPerYear: 0.5,
			ReferencePanelWatts:   400,
			Source:                "Fraunhofer ISE 2012 Photovoltaics Report (degradation); PVGIS documentation (system loss default)",
		},
		SelfConsumption: SelfConsumption{
			ConservativeLow:  0.20,
			ConservativeHigh: 0.40,
			ProfileLow:       0.35,
			ProfileHigh:      0.60,
			Source:           "Fraunhofer ISE 2015, Self-consumption of solar electricity: residential without storage 20-40%",
		},
		Seasonal: Seasonal{
			RawWeights: [12]float64{0.65, 0.65, 0.75, 0.80, 1.00, 1.40, 1.80, 1.80, 1.40, 1.00, 0.80, 0.65},
			Source:     "Saudi residential AC-driven load shape, summer peak about 1.8x winter",
		},
		Economics: Economics{
			InstallCostSarPerKwp:     3500,
			OMCostSarPerKwpPerYear:   50,
			DiscountRatePct:          5,
			ProjectLifeYears:         25,
			CumulativeHorizonYears:   25,
			GridCO2IntensityKgPerKwh: 0.57,
			Source:                   "REPDO 2023 market survey and Enerdata (install cost); IEA 2022 emission factors (CO2); Saudi bank rates 2024 (discount)",
		},
		Solver: Solver{
			InitialGuess:      0.10,
			Tolerance:         0.01,
			MaxIterations:     20,
			MinRate:           -0.99,
			MaxRate:           10,
			PaybackEpsilonSar: 1,
		},
		PVGIS: PVGIS{
			BaseURL:         "https://re.jrc.ec.europa.eu/api/v5_3/PVcalc",
			CacheTTL:        24 * time.Hour,
			PVTechnology:    "crystSi",
			MountingPlace:   "building",
			OutputFormat:    "json",
			DefaultAngleDeg: 22,
			Source:          "Joint Research Centre PVGIS v5.3, European Commission. https://re.jrc.ec.europa.eu/pvgis5",
		},
		Comparisons: Comparisons{
			TreeKgCO2PerYear:    21,
			CarTripKgCO2:        180,
			HouseholdKwhPerYear: 36000,
			Source:              "Mature tree absorbs about 21 kg CO2/yr; Riyadh-Jeddah car trip about 180 kg CO2; average Saudi household about 36,000 kWh/yr",
		},
		NetBilling: NetBilling{
			Note:   "Export credit rates are set contractually by SEC per customer agreement. No export credit rate is ever assumed.",
			Source: "REPDO Net Metering Guidelines (2018+). https://www.repdo.gov.sa",
		},
	}
}

// Validate checks every value against its allowed range.
func (s Set) Validate() error {
	if err := validation.NewValidator().Struct(s); err != nil {
		return fmt.Errorf("invalid assumptions %s: %w", s.Version, err)
	}
	return nil
}
