package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/savings"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		path      string
		wantError bool
	}{
		{
			name:      "Non-existent config file",
			path:      "nonexistent.yaml",
			wantError: true,
		},
		{
			name:      "Malformed YAML",
			body:      "roof: [unclosed",
			wantError: true,
		},
		{
			name: "Empty file keeps defaults",
			body: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = writeConfig(t, tt.body)
			}
			config, err := LoadConfiguration(path)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
			assert.Equal(t, "riyadh", config.Location.CityID)
			assert.Equal(t, "conservative", config.Mode)
			assert.Equal(t, 100.0, config.Roof.UsableAreaM2)
			assert.Equal(t, assumptions.Default(), config.Assumptions)
		})
	}
}

func TestLoadConfigurationValues(t *testing.T) {
	path := writeConfig(t, `
location:
  lat: 21.4858
  lon: 39.1925
roof:
  usableAreaM2: 60
  tiltDeg: 25
  azimuthDeg: 135
  shadingLossPct: 10
consumption:
  monthlyBillSar: 900
export:
  enabled: true
  creditRatePerKwh: 0.07
mode: net-billing
selfConsumptionOverride: 0.8
advanced:
  installCostPerKwp: 4000
pvgis:
  timeout: 5s
  cache:
    enabled: true
    directory: /tmp/pvgis-cache
    ttl: 48h
assumptions:
  tariff:
    tier2RateSarPerKwh: 0.35
`)

	config, err := LoadConfiguration(path)
	require.NoError(t, err)

	require.NotNil(t, config.Location.Lat)
	require.NotNil(t, config.Location.Lon)
	assert.InDelta(t, 21.4858, *config.Location.Lat, 1e-9)
	assert.InDelta(t, 39.1925, *config.Location.Lon, 1e-9)
	assert.Equal(t, 60.0, config.Roof.UsableAreaM2)
	assert.Equal(t, 135.0, config.Roof.AzimuthDeg)
	assert.Equal(t, 900.0, config.Consumption.MonthlyBillSar)
	assert.True(t, config.Export.Enabled)
	require.NotNil(t, config.Export.CreditRatePerKwh)
	assert.InDelta(t, 0.07, *config.Export.CreditRatePerKwh, 1e-12)
	assert.Equal(t, "net-billing", config.Mode)
	require.NotNil(t, config.SelfConsumptionOverride)
	assert.InDelta(t, 0.8, *config.SelfConsumptionOverride, 1e-12)
	assert.Equal(t, 5*time.Second, config.PVGIS.Timeout)
	assert.Equal(t, "/tmp/pvgis-cache", config.PVGIS.Cache.Directory)
	assert.Equal(t, 48*time.Hour, config.CacheTTL())

	// A partial assumptions block only replaces the keys it names.
	def := assumptions.Default()
	assert.Equal(t, 0.35, config.Assumptions.Tariff.Tier2RateSarPerKwh)
	assert.Equal(t, def.Tariff.Tier1RateSarPerKwh, config.Assumptions.Tariff.Tier1RateSarPerKwh)
	assert.Equal(t, def.Tariff.Tier1MaxKwhPerMonth, config.Assumptions.Tariff.Tier1MaxKwhPerMonth)
	assert.Equal(t, def.Seasonal, config.Assumptions.Seasonal)
	assert.Equal(t, def.Solver, config.Assumptions.Solver)

	require.NoError(t, config.Validate())
}

func TestLoadConfigurationEnvironment(t *testing.T) {
	t.Setenv("SOLAR_MODE", "profile")
	t.Setenv("SOLAR_LOCATION_CITYID", "jeddah")

	config, err := LoadConfiguration(writeConfig(t, "mode: conservative\n"))
	require.NoError(t, err)
	assert.Equal(t, "profile", config.Mode)
	assert.Equal(t, "jeddah", config.Location.CityID)
}

func TestLoadConfigurationWithFlags(t *testing.T) {
	newFlags := func() *pflag.FlagSet {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("mode", "", "")
		fs.String("city", "", "")
		fs.String("log-level", "", "")
		fs.String("output-format", "", "")
		return fs
	}
	path := writeConfig(t, "mode: conservative\nlogging:\n  level: warn\n")

	t.Run("unset flags leave the file alone", func(t *testing.T) {
		config, err := LoadConfigurationWithFlags(path, newFlags())
		require.NoError(t, err)
		assert.Equal(t, "conservative", config.Mode)
		assert.Equal(t, "warn", config.Logging.Level)
		assert.Equal(t, "riyadh", config.Location.CityID)
	})

	t.Run("set flags win", func(t *testing.T) {
		fs := newFlags()
		require.NoError(t, fs.Parse([]string{"--mode", "profile", "--city", "dammam", "--log-level", "debug", "--output-format", "json"}))

		config, err := LoadConfigurationWithFlags(path, fs)
		require.NoError(t, err)
		assert.Equal(t, "profile", config.Mode)
		assert.Equal(t, "dammam", config.Location.CityID)
		assert.Equal(t, "debug", config.Logging.Level)
		assert.Equal(t, "json", config.Output.Format)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Configuration)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Configuration) {}},
		{
			name:    "unknown mode",
			mutate:  func(c *Configuration) { c.Mode = "aggressive" },
			wantErr: "aggressive",
		},
		{
			name:    "bad output format",
			mutate:  func(c *Configuration) { c.Output.Format = "xml" },
			wantErr: "xml",
		},
		{
			name:    "negative roof area",
			mutate:  func(c *Configuration) { c.Roof.UsableAreaM2 = -5 },
			wantErr: "UsableAreaM2",
		},
		{
			name: "packing factor above one",
			mutate: func(c *Configuration) {
				v := 1.5
				c.Advanced.PackingFactor = &v
			},
			wantErr: "PackingFactor",
		},
		{
			name:    "broken assumptions",
			mutate:  func(c *Configuration) { c.Assumptions.Solver.MaxIterations = 0 },
			wantErr: "MaxIterations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfiguration(t *testing.T) {
	c := Default()
	assert.Empty(t, c.ValidateConfiguration())

	c.Mode = " Net-Billing "
	c.Roof.UsableAreaM2 = 2000
	warnings := c.ValidateConfiguration()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "2000")
	assert.Contains(t, warnings[1], "export is disabled")

	c = Default()
	zero := 0.0
	c.Advanced.InstallCostPerKwp = &zero
	assert.Contains(t, c.ValidateConfiguration(), "Install cost is not set - investment metrics will be skipped")
}

func TestRequest(t *testing.T) {
	c := Default()
	c.Mode = "profile"
	cost := 4200.0
	life := 20
	c.Advanced.InstallCostPerKwp = &cost
	c.Advanced.ProjectLifeYears = &life
	c.Assumptions.PVSystem.WPerM2 = 220

	req, err := c.Request()
	require.NoError(t, err)
	assert.Equal(t, savings.ModeProfile, req.Mode)
	assert.Equal(t, 4200.0, req.Advanced.InstallCostPerKwp)
	assert.Equal(t, 20, req.Advanced.ProjectLifeYears)
	// Registry overrides reach the request when advanced leaves a key unset.
	assert.Equal(t, 220.0, req.Advanced.WPerM2)
	assert.Equal(t, c.Assumptions.Economics.OMCostSarPerKwpPerYear, req.Advanced.OMCostPerKwpPerYear)
	assert.Equal(t, "riyadh", req.Location.CityID)

	c.Mode = "bogus"
	_, err = c.Request()
	assert.ErrorIs(t, err, savings.ErrUnknownMode)
}

func TestCacheTTL(t *testing.T) {
	c := Default()
	assert.Equal(t, c.Assumptions.PVGIS.CacheTTL, c.CacheTTL())

	c.PVGIS.Cache.TTL = 72 * time.Hour
	assert.Equal(t, 72*time.Hour, c.CacheTTL())

	// Shorter TTLs are raised to a day.
	c.PVGIS.Cache.TTL = 10 * time.Minute
	assert.Equal(t, MinCacheTTL, c.CacheTTL())

	c.PVGIS.Cache.TTL = 0
	c.Assumptions.PVGIS.CacheTTL = time.Hour
	assert.Equal(t, MinCacheTTL, c.CacheTTL())
}

func TestCacheTTLWarning(t *testing.T) {
	tests := []struct {
		name       string
		configured time.Duration
		registry   time.Duration
		want       string
	}{
		{name: "registry default", registry: 24 * time.Hour},
		{name: "long configured", configured: 48 * time.Hour, registry: time.Hour},
		{name: "short configured", configured: 10 * time.Minute, registry: 24 * time.Hour, want: "10m0s"},
		{name: "short registry", registry: 2 * time.Hour, want: "2h0m0s"},
		{name: "unset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CacheTTLWarning(tt.configured, tt.registry)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
			assert.Contains(t, got, "24h0m0s minimum")
		})
	}

	c := Default()
	c.PVGIS.Cache.TTL = 30 * time.Minute
	warnings := c.ValidateConfiguration()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "30m0s")
}
