package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iwvelando/solar-estimator/internal/cities"
	"github.com/iwvelando/solar-estimator/internal/config"
	"github.com/iwvelando/solar-estimator/internal/estimator"
	"github.com/iwvelando/solar-estimator/internal/metrics"
	"github.com/iwvelando/solar-estimator/internal/pvgis"
	"github.com/iwvelando/solar-estimator/internal/pvgis/cache"
	"github.com/iwvelando/solar-estimator/internal/server"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
	"github.com/iwvelando/solar-estimator/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "solar-estimator",
		Short:         "Rooftop solar savings and payback estimates for Saudi homes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String("config", constants.DefaultConfigFile, "path to configuration file")
	cmd.PersistentFlags().String("output-format", "", "type of output override: pretty, csv, json")
	cmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	cmd.PersistentFlags().String("mode", "", "savings mode override: conservative, profile, net-billing")
	cmd.PersistentFlags().String("city", "", "city id override (see the cities command)")

	cmd.AddCommand(estimateCmd(), serveCmd(), citiesCmd(), assumptionsCmd())
	return cmd
}

func estimateCmd() *cobra.Command {
	var production []float64

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Run one estimate from a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEstimate(ctx, cmd, production)
		},
	}

	cmd.Flags().Float64SliceVar(&production, "production", nil,
		"twelve monthly kWh values (Jan..Dec) to evaluate instead of querying the yield provider")
	return cmd
}

func runEstimate(ctx context.Context, cmd *cobra.Command, production []float64) error {
	configLocation, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")

	conf, err := config.LoadConfigurationWithFlags(configLocation, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration at %s: %w", configLocation, err)
	}

	logger, err := initializeLogger(conf.Logging, logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := conf.Validate(); err != nil {
		return err
	}
	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main.runEstimate"),
		)
	}

	req, err := conf.Request()
	if err != nil {
		return err
	}

	var res *estimator.Result
	if len(production) > 0 {
		res, err = evaluateProduction(conf.Assumptions, req, production, logger)
	} else {
		res, err = fetchAndEstimate(ctx, conf, req, logger)
	}
	if err != nil {
		return err
	}

	return output.Write(cmd.OutOrStdout(), conf.Output.Format, res)
}

func evaluateProduction(a assumptions.Set, req estimator.Request, production []float64, logger *zap.Logger) (*estimator.Result, error) {
	if len(production) != constants.MonthsPerYear {
		return nil, fmt.Errorf("--production needs %d monthly values, got %d", constants.MonthsPerYear, len(production))
	}
	var monthly [constants.MonthsPerYear]float64
	copy(monthly[:], production)
	return estimator.New(a, nil, logger, nil).Evaluate(req, monthly, mathutil.Sum12(monthly))
}

func fetchAndEstimate(ctx context.Context, conf *config.Configuration, req estimator.Request, logger *zap.Logger) (*estimator.Result, error) {
	provider, err := newProvider(conf.Assumptions, conf.PVGIS, conf.CacheTTL(), logger, nil)
	if err != nil {
		return nil, err
	}
	return estimator.New(conf.Assumptions, provider, logger, nil).Run(ctx, req)
}

// newProvider builds the yield client behind its cache.
func newProvider(a assumptions.Set, pc config.PVGISConfig, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) (*pvgis.CachedProvider, error) {
	store, err := cache.Open(pc.Cache.Directory, pc.Cache.Enabled, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to open yield cache: %w", err)
	}
	client := pvgis.NewClient(a.PVGIS,
		pvgis.WithTimeout(pc.Timeout),
		pvgis.WithLogger(logger),
		pvgis.WithMetrics(m),
	)
	return pvgis.NewCachedProvider(client, store, logger, m), nil
}

func serveCmd() *cobra.Command {
	var serverConfig, address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the estimator HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logLevel, _ := cmd.Flags().GetString("log-level")

			cfg, err := server.LoadConfig(serverConfig)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Address = address
			}

			logger, err := initializeLogger(cfg.Logging, logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			a, err := cfg.LoadAssumptions()
			if err != nil {
				return err
			}
			for _, warning := range cfg.Warnings(a) {
				logger.Warn("Configuration warning: "+warning,
					zap.String("op", "main.serve"),
				)
			}

			m := metrics.New()
			provider, err := newProvider(a, cfg.PVGIS, cfg.CacheTTL(a), logger, m)
			if err != nil {
				return err
			}

			listener, err := net.Listen("tcp", cfg.Address)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
			}

			handler := server.NewHandler(server.Options{
				Logger:         logger,
				Metrics:        m,
				Assumptions:    a,
				Provider:       provider,
				MaxBodySize:    cfg.BodySizeBytes(),
				AllowedOrigins: cfg.AllowedOrigins,
				Version:        version,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(listener, handler, logger).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&serverConfig, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	return cmd
}

func citiesCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "cities",
		Short: "List the supported cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := cities.All()
			if region != "" {
				list = nil
				for name, byRegion := range cities.ByRegion() {
					if strings.EqualFold(name, region) {
						list = byRegion
					}
				}
				if list == nil {
					return fmt.Errorf("unknown region %q (expected one of %s)", region, strings.Join(cities.Regions(), ", "))
				}
			}

			if outputFormat(cmd) == constants.OutputFormatJSON {
				return writeJSON(cmd, list)
			}
			return output.PrettyCities(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "only list cities in this region")
	return cmd
}

func assumptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assumptions",
		Short: "Print the assumptions registry with sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadAssumptions(cmd)
			if err != nil {
				return err
			}
			if outputFormat(cmd) == constants.OutputFormatJSON {
				return writeJSON(cmd, a)
			}
			return output.PrettyAssumptions(cmd.OutOrStdout(), a)
		},
	}
}

// loadAssumptions returns the registry with the config file's overrides
// applied. A missing default config file means the built-in registry; a
// missing file named with --config is an error.
func loadAssumptions(cmd *cobra.Command) (assumptions.Set, error) {
	configLocation, _ := cmd.Flags().GetString("config")
	if _, err := os.Stat(configLocation); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return assumptions.Default(), nil
	}

	conf, err := config.LoadConfigurationWithFlags(configLocation, cmd.Flags())
	if err != nil {
		return assumptions.Set{}, fmt.Errorf("failed to load configuration at %s: %w", configLocation, err)
	}
	if err := conf.Assumptions.Validate(); err != nil {
		return assumptions.Set{}, fmt.Errorf("invalid assumptions in %s: %w", configLocation, err)
	}
	return conf.Assumptions, nil
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output-format")
	return strings.ToLower(strings.TrimSpace(f))
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
