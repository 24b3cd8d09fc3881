// Package config defines the estimate configuration file and the functions
// that load, validate and convert it into an estimator request.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/solar-estimator/internal/estimator"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/savings"
	"github.com/iwvelando/solar-estimator/pkg/sizing"
	"github.com/iwvelando/solar-estimator/pkg/validation"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for one estimate.
type Configuration struct {
	Location                estimator.Location    `yaml:"location" mapstructure:"location"`
	Roof                    sizing.Roof           `yaml:"roof" mapstructure:"roof"`
	Consumption             estimator.Consumption `yaml:"consumption" mapstructure:"consumption"`
	Advanced                AdvancedOverrides     `yaml:"advanced,omitempty" mapstructure:"advanced"`
	Export                  savings.Export        `yaml:"export,omitempty" mapstructure:"export"`
	Mode                    string                `yaml:"mode,omitempty" mapstructure:"mode"`
	SelfConsumptionOverride *float64              `yaml:"selfConsumptionOverride,omitempty" mapstructure:"selfConsumptionOverride" validate:"omitempty,finite"`
	Logging                 LoggingConfig         `yaml:"logging,omitempty" mapstructure:"logging"`
	Output                  OutputConfig          `yaml:"output,omitempty" mapstructure:"output"`
	PVGIS                   PVGISConfig           `yaml:"pvgis,omitempty" mapstructure:"pvgis"`
	Assumptions             assumptions.Set       `yaml:"assumptions,omitempty" mapstructure:"assumptions"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, json
}

// PVGISConfig controls the yield provider client. The endpoint itself lives
// in the assumptions registry.
type PVGISConfig struct {
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout" validate:"gte=0"`
	Cache   CacheConfig   `yaml:"cache,omitempty" mapstructure:"cache"`
}

// CacheConfig selects the yield cache. An empty directory keeps entries in
// memory; TTL 0 means the registry's cacheTtl.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Directory string        `yaml:"directory,omitempty" mapstructure:"directory"`
	TTL       time.Duration `yaml:"ttl,omitempty" mapstructure:"ttl" validate:"gte=0"`
}

// AdvancedOverrides replaces individual registry values for this run. Nil
// fields keep the registry value, so an assumptions override still flows
// through when advanced is silent.
type AdvancedOverrides struct {
	WPerM2                *float64 `yaml:"wPerM2,omitempty" mapstructure:"wPerM2" validate:"omitempty,finite,gte=0"`
	PackingFactor         *float64 `yaml:"packingFactor,omitempty" mapstructure:"packingFactor" validate:"omitempty,finite,gte=0,lte=1"`
	SystemLossPct         *float64 `yaml:"systemLossPct,omitempty" mapstructure:"systemLossPct" validate:"omitempty,finite,gte=0,lte=100"`
	InverterEffPct        *float64 `yaml:"inverterEffPct,omitempty" mapstructure:"inverterEffPct" validate:"omitempty,finite,gte=0,lte=100"`
	DegradationPctPerYear *float64 `yaml:"degradationPctPerYear,omitempty" mapstructure:"degradationPctPerYear" validate:"omitempty,finite,gte=0,lt=100"`
	ProjectLifeYears      *int     `yaml:"projectLifeYears,omitempty" mapstructure:"projectLifeYears" validate:"omitempty,gte=1,lte=100"`
	InstallCostPerKwp     *float64 `yaml:"installCostPerKwp,omitempty" mapstructure:"installCostPerKwp" validate:"omitempty,finite,gte=0"`
	OMCostPerKwpPerYear   *float64 `yaml:"omCostPerKwpPerYear,omitempty" mapstructure:"omCostPerKwpPerYear" validate:"omitempty,finite,gte=0"`
	DiscountRatePct       *float64 `yaml:"discountRatePct,omitempty" mapstructure:"discountRatePct" validate:"omitempty,finite,gt=-100"`
}

// Apply returns adv with every set override in place.
func (o AdvancedOverrides) Apply(adv estimator.Advanced) estimator.Advanced {
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat(&adv.WPerM2, o.WPerM2)
	setFloat(&adv.PackingFactor, o.PackingFactor)
	setFloat(&adv.SystemLossPct, o.SystemLossPct)
	setFloat(&adv.InverterEffPct, o.InverterEffPct)
	setFloat(&adv.DegradationPctPerYear, o.DegradationPctPerYear)
	setFloat(&adv.InstallCostPerKwp, o.InstallCostPerKwp)
	setFloat(&adv.OMCostPerKwpPerYear, o.OMCostPerKwpPerYear)
	setFloat(&adv.DiscountRatePct, o.DiscountRatePct)
	if o.ProjectLifeYears != nil {
		adv.ProjectLifeYears = *o.ProjectLifeYears
	}
	return adv
}

// Default returns the configuration used for every key the file leaves out.
func Default() *Configuration {
	req := estimator.DefaultRequest(assumptions.Default())
	return &Configuration{
		Location:    req.Location,
		Roof:        req.Roof,
		Consumption: req.Consumption,
		Mode:        req.Mode.String(),
		Logging:     LoggingConfig{Level: "info", Format: "json"},
		Output:      OutputConfig{Format: constants.OutputFormatPretty},
		PVGIS: PVGISConfig{
			Timeout: constants.DefaultUpstreamTimeoutSeconds * time.Second,
			Cache:   CacheConfig{Enabled: true},
		},
		Assumptions: assumptions.Default(),
	}
}

// envKeys are registered with viper so SOLAR_* variables apply even when
// the file does not mention the key.
var envKeys = map[string]string{
	"mode":            "conservative",
	"location.cityId": constants.DefaultCityID,
	"logging.level":   "info",
	"logging.format":  "json",
	"output.format":   constants.OutputFormatPretty,
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"mode":          "mode",
	"city":          "location.cityId",
	"log-level":     "logging.level",
	"output-format": "output.format",
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	return LoadConfigurationWithFlags(configPath, nil)
}

// LoadConfigurationWithFlags is LoadConfiguration with command line flags
// taking precedence over the environment and the file. Only flags that were
// set on the command line override anything.
func LoadConfigurationWithFlags(configPath string, flags *pflag.FlagSet) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, def := range envKeys {
		v.SetDefault(key, def)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("unable to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}

	configuration := Default()
	if err := v.Unmarshal(configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	return configuration, nil
}

// Validate returns an error for values the estimator cannot run with.
func (c *Configuration) Validate() error {
	if _, err := savings.ParseMode(c.Mode); err != nil {
		return err
	}
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}
	if err := validation.NewValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Request converts the configuration into an estimator request.
func (c *Configuration) Request() (estimator.Request, error) {
	mode, err := savings.ParseMode(c.Mode)
	if err != nil {
		return estimator.Request{}, err
	}

	return estimator.Request{
		Location:                c.Location,
		Roof:                    c.Roof,
		Consumption:             c.Consumption,
		Advanced:                c.Advanced.Apply(estimator.DefaultAdvanced(c.Assumptions)),
		Export:                  c.Export,
		Mode:                    mode,
		SelfConsumptionOverride: c.SelfConsumptionOverride,
	}, nil
}

// MinCacheTTL is the shortest time a yield reply is kept.
const MinCacheTTL = 24 * time.Hour

// CacheTTL is the configured cache TTL, or the registry's when unset,
// raised to MinCacheTTL.
func (c *Configuration) CacheTTL() time.Duration {
	return EffectiveCacheTTL(c.PVGIS.Cache.TTL, c.Assumptions.PVGIS.CacheTTL)
}

// EffectiveCacheTTL picks configured over registry and never returns less
// than MinCacheTTL.
func EffectiveCacheTTL(configured, registry time.Duration) time.Duration {
	return max(requestedTTL(configured, registry), MinCacheTTL)
}

// CacheTTLWarning describes a requested TTL that EffectiveCacheTTL raises,
// or returns "" when there is nothing to report.
func CacheTTLWarning(configured, registry time.Duration) string {
	ttl := requestedTTL(configured, registry)
	if ttl <= 0 || ttl >= MinCacheTTL {
		return ""
	}
	return fmt.Sprintf("Cache TTL %s is below the %s minimum - using %s", ttl, MinCacheTTL, MinCacheTTL)
}

func requestedTTL(configured, registry time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return registry
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	mode := c.Mode
	if m, err := savings.ParseMode(c.Mode); err == nil {
		mode = m.String()
	}

	iv := validation.InputValidator{
		Mode:              mode,
		RoofAreaM2:        c.Roof.UsableAreaM2,
		ShadingLossPct:    c.Roof.ShadingLossPct,
		MonthlyKwh:        c.Consumption.MonthlyKwh,
		MonthlyBillSar:    c.Consumption.MonthlyBillSar,
		ExportEnabled:     c.Export.Enabled,
		ExportRate:        c.Export.CreditRatePerKwh,
		InstallCostPerKwp: c.Advanced.Apply(estimator.DefaultAdvanced(c.Assumptions)).InstallCostPerKwp,
		Override:          c.SelfConsumptionOverride,
	}
	warnings := iv.ValidateAll()
	if w := CacheTTLWarning(c.PVGIS.Cache.TTL, c.Assumptions.PVGIS.CacheTTL); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}
