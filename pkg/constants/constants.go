// Package constants provides shared constants for the solar-estimator application.
package constants

// Calendar constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// WattsPerKilowatt converts between W and kW
	WattsPerKilowatt = 1000.0

	// KgPerTon converts between kilograms and metric tons
	KgPerTon = 1000.0
)

// MonthNames are the short English month labels used in breakdowns, Jan first.
var MonthNames = [MonthsPerYear]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the machine-readable output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "SOLAR"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024

	// DefaultUpstreamTimeoutSeconds bounds a single yield-provider call
	DefaultUpstreamTimeoutSeconds = 30

	// UpstreamErrorBodyLimit is how much of an upstream error body is kept
	UpstreamErrorBodyLimit = 500
)

// Input defaults for a new estimate
const (
	DefaultRoofAreaM2      = 100.0
	DefaultTiltDeg         = 22.0
	DefaultAzimuthDeg      = 180.0
	DefaultShadingLossPct  = 5.0
	DefaultMonthlyKwh      = 3000.0
	DefaultCityID          = "riyadh"
	MaxCombinedLossPct     = 50.0
	MinRecommendedAreaM2   = 10.0
	MaxRecommendedAreaM2   = 500.0
	FloatComparisonEpsilon = 1e-9
)
