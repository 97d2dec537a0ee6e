package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

const sampleConfigTemplate = `# fxd Configuration File
#
# Values can be overridden with FXD_* environment variables, for example
# FXD_LOGGING_LEVEL=DEBUG.

logging:
  # DEBUG, INFO, WARN or ERROR
  level: "{{ .Logging.Level }}"
  # text or json
  format: "{{ .Logging.Format }}"
  # stdout, stderr or a file path
  output: "{{ .Logging.Output }}"

telemetry:
  enabled: false
  endpoint: "{{ .Telemetry.Endpoint }}"
  insecure: true
  sample_rate: {{ .Telemetry.SampleRate }}
  profiling:
    enabled: false
    endpoint: "{{ .Telemetry.Profiling.Endpoint }}"

metrics:
  enabled: false
  port: 9090

# Maximum wait for connections to finish after SERVER_SHUTDOWN is sent
shutdown_timeout: {{ .ShutdownTimeout }}

server:
  bind_address: "{{ .Server.BindAddress }}"
  port: {{ .Server.Port }}
  # 0 = unlimited
  max_connections: {{ .Server.MaxConnections }}
  # Longest accepted HELLO or command line
  max_line_length: {{ .Server.MaxLineLength }}
  # Write deadline for the SERVER_SHUTDOWN notice
  shutdown_notice_timeout: {{ .Server.ShutdownNoticeTimeout }}
  # Periodic connection-count logging, 0 disables
  metrics_log_interval: {{ .Server.MetricsLogInterval }}

lock:
  # Pause between write lock attempts; one NOTIFY BUSY is sent per attempt
  busy_retry_interval: {{ .Lock.BusyRetryInterval }}

storage:
  # filesystem, memory or badger
  type: {{ .Storage.Type }}
  path: '{{ .Storage.Path }}'
  # memory and badger only
  max_object_size: {{ .Storage.MaxObjectSize }}
`

var sampleConfig = template.Must(template.New("config").Parse(sampleConfigTemplate))

// InitConfig writes a sample configuration file to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	data, err := renderSampleConfig(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func renderSampleConfig(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := sampleConfig.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to render sample config: %w", err)
	}
	return buf.Bytes(), nil
}
