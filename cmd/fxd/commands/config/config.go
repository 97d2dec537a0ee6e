// Package config implements configuration management subcommands.
package config

import (
	"net"

	"github.com/marmos91/fxd/pkg/config"
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect fxd configuration files.

Use 'fxd init' to create a new configuration file.

Subcommands:
  validate  Validate configuration file
  show      Display current configuration
  schema    Generate JSON schema for config.yaml`,
}

func init() {
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
}

// load reads the file named by the inherited --config flag. Without one the
// default location is used, falling back to built-in defaults.
func load(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := config.MustLoad(path)
		return cfg, path, err
	}
	cfg, err := config.Load("")
	if err != nil {
		return nil, "", err
	}
	if config.DefaultConfigExists() {
		return cfg, config.GetDefaultConfigPath(), nil
	}
	return cfg, "defaults", nil
}

// summary lists the settings an operator checks first.
func summary(cfg *config.Config) [][2]string {
	storagePath := cfg.Storage.Path
	if storagePath == "" {
		storagePath = "-"
	}
	metricsAddr := "disabled"
	if cfg.Metrics.Enabled {
		metricsAddr = net.JoinHostPort(cfg.Metrics.BindAddress, itoa(cfg.Metrics.Port))
	}
	maxConns := "unlimited"
	if cfg.Server.MaxConnections > 0 {
		maxConns = itoa(cfg.Server.MaxConnections)
	}

	return [][2]string{
		{"server.address", net.JoinHostPort(cfg.Server.BindAddress, itoa(cfg.Server.Port))},
		{"server.max_connections", maxConns},
		{"server.max_line_length", cfg.Server.MaxLineLength.String()},
		{"shutdown_timeout", cfg.ShutdownTimeout.String()},
		{"lock.busy_retry_interval", cfg.Lock.BusyRetryInterval.String()},
		{"storage.type", cfg.Storage.Type},
		{"storage.path", storagePath},
		{"storage.max_object_size", cfg.Storage.MaxObjectSize.String()},
		{"logging", cfg.Logging.Level + " " + cfg.Logging.Format + " -> " + cfg.Logging.Output},
		{"metrics", metricsAddr},
		{"telemetry", enabled(cfg.Telemetry.Enabled)},
		{"profiling", enabled(cfg.Telemetry.Profiling.Enabled)},
	}
}
