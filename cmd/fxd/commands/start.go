package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/fxd/internal/logger"
	"github.com/marmos91/fxd/internal/telemetry"
	"github.com/marmos91/fxd/pkg/adapter/xfer"
	"github.com/marmos91/fxd/pkg/config"
	"github.com/marmos91/fxd/pkg/lock"
	"github.com/marmos91/fxd/pkg/metrics"
	prom "github.com/marmos91/fxd/pkg/metrics/prometheus"
	"github.com/spf13/cobra"
)

// metricsStopTimeout bounds the metrics server shutdown after the exchange
// server has stopped.
const metricsStopTimeout = 5 * time.Second

var (
	startPort        int
	startBindAddress string
	startStorage     string
	startStoragePath string
	startLogLevel    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the fxd server",
	Long: `Start the fxd server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/fxd/config.yaml. When no file exists the
built-in defaults are used.

The server stops on SIGINT or SIGTERM. Connected clients receive
SERVER_SHUTDOWN and the process waits up to shutdown_timeout for in-flight
transfers before closing the remaining connections.

Examples:
  # Start with the default configuration
  fxd start

  # Serve an in-memory store on port 9100
  fxd start --port 9100 --storage memory

  # Start with environment variable overrides
  FXD_LOGGING_LEVEL=DEBUG fxd start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().IntVarP(&startPort, "port", "p", 0, "TCP port to listen on (overrides server.port)")
	startCmd.Flags().StringVar(&startBindAddress, "bind-address", "", "Address to bind (overrides server.bind_address)")
	startCmd.Flags().StringVar(&startStorage, "storage", "", "Storage backend: filesystem, memory or badger (overrides storage.type)")
	startCmd.Flags().StringVar(&startStoragePath, "storage-path", "", "Storage directory (overrides storage.path)")
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level: DEBUG, INFO, WARN or ERROR (overrides logging.level)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadStartConfig(cmd)
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "fxd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "fxd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	if cfg.Metrics.Enabled {
		reg := metrics.InitRegistry()
		srv, err := metrics.StartServer(cfg.Metrics.BindAddress, cfg.Metrics.Port, reg)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info("Metrics enabled", "address", srv.Addr())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), metricsStopTimeout)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				logger.Error("metrics server shutdown error", logger.KeyError, err)
			}
		}()
	}

	st, err := config.CreateStore(ctx, cfg.Storage, prom.NewStoreMetrics())
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", logger.KeyError, err)
		}
	}()

	locks := lock.NewRegistry(prom.NewLockMetrics())
	server := xfer.New(cfg.XferConfig(), st, locks, prom.NewXferMetrics())

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Serve(ctx)
	}()

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// loadStartConfig loads the configuration and applies command line
// overrides on top of it. An explicit --config must exist; otherwise a
// missing default file means built-in defaults.
func loadStartConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := GetConfigFile(); path != "" {
		cfg, err = config.MustLoad(path)
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		return nil, err
	}
	applyStartFlags(cmd, cfg)

	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func applyStartFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = startPort
	}
	if flags.Changed("bind-address") {
		cfg.Server.BindAddress = startBindAddress
	}
	if flags.Changed("storage") {
		cfg.Storage.Type = startStorage
		if !flags.Changed("storage-path") {
			// Re-derive the default path for the new backend.
			cfg.Storage.Path = ""
		}
	}
	if flags.Changed("storage-path") {
		cfg.Storage.Path = startStoragePath
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = startLogLevel
	}
}
