package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwvelando/solar-estimator/internal/config"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultServerAddress, cfg.Address)
	assert.Equal(t, constants.DefaultMaxBodySizeBytes, cfg.BodySizeBytes())
	assert.Equal(t, 30*time.Second, cfg.PVGIS.Timeout)
	assert.True(t, cfg.PVGIS.Cache.Enabled)
	assert.Empty(t, cfg.PVGIS.Cache.Directory)
	assert.Empty(t, cfg.Logging.Level)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultServerAddress, cfg.Address)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeFile(t, "server-config.yaml", `address: 127.0.0.1:9000
maxBodySize: 2M
allowedOrigins:
  - http://localhost:3000
logging:
  level: debug
  format: console
  outputFile: /tmp/server.log
pvgis:
  timeout: 5s
  cache:
    enabled: true
    directory: /var/cache/solar
    ttl: 36h
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Address)
	assert.Equal(t, int64(2*1024*1024), cfg.BodySizeBytes())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "/tmp/server.log", cfg.Logging.OutputFile)
	assert.Equal(t, 5*time.Second, cfg.PVGIS.Timeout)
	assert.Equal(t, "/var/cache/solar", cfg.PVGIS.Cache.Directory)
	assert.Equal(t, 36*time.Hour, cfg.CacheTTL(assumptions.Default()))
	assert.Empty(t, cfg.Warnings(assumptions.Default()))
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"bad size":    "maxBodySize: invalid",
		"bad yaml":    "address: [",
		"bad timeout": "pvgis:\n  timeout: soon\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "bad.yaml", body))
			assert.Error(t, err)
		})
	}
}

func TestSetBodySizeBytes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetBodySizeBytes(4096)
	assert.Equal(t, int64(4096), cfg.BodySizeBytes())
	assert.Equal(t, "4096", cfg.MaxBodySize)

	cfg.SetBodySizeBytes(0)
	assert.Equal(t, int64(4096), cfg.BodySizeBytes())
}

func TestParseSize(t *testing.T) {
	tests := map[string]int64{
		"":          constants.DefaultMaxBodySizeBytes,
		"1024":      1024,
		"512b":      512,
		"256K":      256 * 1024,
		"1m":        1024 * 1024,
		"3MB":       3 * 1024 * 1024,
		"  4096   ": 4096,
	}

	for input, expected := range tests {
		got, err := ParseSize(input)
		require.NoError(t, err, "ParseSize(%q)", input)
		assert.Equal(t, expected, got, "ParseSize(%q)", input)
	}

	for _, input := range []string{"1TB", "2G", "abc", "99999999999999999999"} {
		_, err := ParseSize(input)
		assert.Error(t, err, "ParseSize(%q)", input)
	}
}

func TestLoadAssumptions(t *testing.T) {
	cfg := DefaultConfig()
	a, err := cfg.LoadAssumptions()
	require.NoError(t, err)
	assert.Equal(t, assumptions.Default(), a)
	assert.Equal(t, a.PVGIS.CacheTTL, cfg.CacheTTL(a))

	cfg.AssumptionsFile = writeFile(t, "assumptions.yaml", `assumptions:
  tariff:
    tier2RateSarPerKwh: 0.4
  pvgis:
    cacheTtl: 1h
`)
	a, err = cfg.LoadAssumptions()
	require.NoError(t, err)
	assert.Equal(t, 0.4, a.Tariff.Tier2RateSarPerKwh)
	assert.Equal(t, assumptions.Default().Tariff.Tier1RateSarPerKwh, a.Tariff.Tier1RateSarPerKwh)
	assert.Equal(t, config.MinCacheTTL, cfg.CacheTTL(a))
	require.Len(t, cfg.Warnings(a), 1)
	assert.Contains(t, cfg.Warnings(a)[0], "1h0m0s")

	cfg.AssumptionsFile = writeFile(t, "broken.yaml", "assumptions:\n  solver:\n    maxIterations: 0\n")
	_, err = cfg.LoadAssumptions()
	assert.Error(t, err)

	cfg.AssumptionsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.LoadAssumptions()
	assert.Error(t, err)
}
