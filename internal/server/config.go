package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/solar-estimator/internal/config"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address         string               `yaml:"address"`
	MaxBodySize     string               `yaml:"maxBodySize"`
	AllowedOrigins  []string             `yaml:"allowedOrigins"`
	AssumptionsFile string               `yaml:"assumptionsFile"`
	Logging         config.LoggingConfig `yaml:"logging"`
	PVGIS           config.PVGISConfig   `yaml:"pvgis"`
	bodySizeBytes   int64
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Address:     constants.DefaultServerAddress,
		MaxBodySize: fmt.Sprintf("%d", constants.DefaultMaxBodySizeBytes),
		PVGIS: config.PVGISConfig{
			Timeout: constants.DefaultUpstreamTimeoutSeconds * time.Second,
			Cache:   config.CacheConfig{Enabled: true},
		},
		bodySizeBytes: constants.DefaultMaxBodySizeBytes,
	}
}

// LoadConfig loads the server configuration from YAML. If the file does not exist,
// defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BodySizeBytes returns the configured request body limit in bytes.
func (c *Config) BodySizeBytes() int64 {
	return c.bodySizeBytes
}

// SetBodySizeBytes overrides the configured request body limit.
func (c *Config) SetBodySizeBytes(size int64) {
	if size > 0 {
		c.bodySizeBytes = size
		c.MaxBodySize = fmt.Sprintf("%d", size)
	}
}

// LoadAssumptions returns the registry the server should run with: the
// built-in set, or the assumptions block of AssumptionsFile when one is set.
func (c *Config) LoadAssumptions() (assumptions.Set, error) {
	if c.AssumptionsFile == "" {
		return assumptions.Default(), nil
	}
	est, err := config.LoadConfiguration(c.AssumptionsFile)
	if err != nil {
		return assumptions.Set{}, fmt.Errorf("failed to load assumptions: %w", err)
	}
	if err := est.Assumptions.Validate(); err != nil {
		return assumptions.Set{}, fmt.Errorf("invalid assumptions in %s: %w", c.AssumptionsFile, err)
	}
	return est.Assumptions, nil
}

// CacheTTL is the configured cache TTL, or the registry's when unset,
// raised to config.MinCacheTTL.
func (c *Config) CacheTTL(a assumptions.Set) time.Duration {
	return config.EffectiveCacheTTL(c.PVGIS.Cache.TTL, a.PVGIS.CacheTTL)
}

// Warnings lists settings that were adjusted rather than rejected.
func (c *Config) Warnings(a assumptions.Set) []string {
	var warnings []string
	if w := config.CacheTTLWarning(c.PVGIS.Cache.TTL, a.PVGIS.CacheTTL); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

func (c *Config) normalize() error {
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}
	if c.PVGIS.Timeout <= 0 {
		c.PVGIS.Timeout = constants.DefaultUpstreamTimeoutSeconds * time.Second
	}

	sizeStr := strings.TrimSpace(c.MaxBodySize)
	if sizeStr == "" {
		c.bodySizeBytes = constants.DefaultMaxBodySizeBytes
		c.MaxBodySize = fmt.Sprintf("%d", constants.DefaultMaxBodySizeBytes)
		return nil
	}

	bytes, err := ParseSize(sizeStr)
	if err != nil {
		return err
	}
	if bytes <= 0 {
		bytes = constants.DefaultMaxBodySizeBytes
	}
	c.bodySizeBytes = bytes
	return nil
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "10M") into bytes.
func ParseSize(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return constants.DefaultMaxBodySizeBytes, nil
	}

	upper := strings.ToUpper(trimmed)
	idx := len(upper)
	for idx > 0 && !unicode.IsDigit(rune(upper[idx-1])) {
		idx--
	}
	if idx == 0 {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	numPart := strings.TrimSpace(upper[:idx])
	unitPart := strings.TrimSpace(upper[idx:])

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}

	var multiplier int64
	switch unitPart {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	default:
		return 0, fmt.Errorf("unsupported size unit %q", unitPart)
	}

	result := n * multiplier
	if result < 0 || (n != 0 && result/multiplier != n) {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return result, nil
}
