package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/fxd/internal/bytesize"
	"github.com/marmos91/fxd/pkg/adapter/xfer"
	"github.com/marmos91/fxd/pkg/lock"
	"github.com/marmos91/fxd/pkg/protocol"
)

// DefaultMaxObjectSize bounds objects in the memory and badger backends.
const DefaultMaxObjectSize = 256 * bytesize.MiB

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", nil) are replaced with defaults; explicit values are
// preserved. Booleans cannot be distinguished from their zero value, so
// opt-in features (telemetry, profiling, metrics) stay disabled.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyShutdownTimeoutDefaults(cfg)
	applyServerDefaults(&cfg.Server)
	applyLockDefaults(&cfg.Lock)
	applyStorageDefaults(&cfg.Storage)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
}

// applyMetricsDefaults sets the metrics port when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = xfer.DefaultShutdownTimeout
	}
}

func applyServerDefaults(cfg *xfer.Config) {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = xfer.DefaultPort
	}
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = protocol.DefaultMaxLineLength
	}
	if cfg.ShutdownNoticeTimeout == 0 {
		cfg.ShutdownNoticeTimeout = xfer.DefaultShutdownNoticeTimeout
	}
}

func applyLockDefaults(cfg *LockConfig) {
	if cfg.BusyRetryInterval == 0 {
		cfg.BusyRetryInterval = lock.DefaultRetryInterval
	}
}

// applyStorageDefaults defaults to a filesystem store under the user's
// data directory.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Path == "" && cfg.Type != "memory" {
		cfg.Path = filepath.Join(getDataDir(), cfg.Type)
	}
	if cfg.MaxObjectSize == 0 {
		cfg.MaxObjectSize = DefaultMaxObjectSize
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
// Used when no configuration file exists and to generate sample files.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{Insecure: true},
		Lock:      LockConfig{BusyRetryInterval: 200 * time.Millisecond},
	}
	ApplyDefaults(cfg)
	return cfg
}
