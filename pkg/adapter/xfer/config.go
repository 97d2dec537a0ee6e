package xfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/fxd/internal/bytesize"
	"github.com/marmos91/fxd/pkg/lock"
	"github.com/marmos91/fxd/pkg/protocol"
)

// Default values applied by New for zero fields.
const (
	DefaultPort                  = 9000
	DefaultShutdownTimeout       = 10 * time.Second
	DefaultShutdownNoticeTimeout = time.Second
)

// Config holds configuration parameters for the file-exchange server.
//
// Default values (applied by New if zero):
//   - Port: 9000
//   - MaxConnections: 0 (unlimited)
//   - MaxLineLength: 1Ki
//   - BusyRetryInterval: 200ms
//   - ShutdownTimeout: 10s
//   - ShutdownNoticeTimeout: 1s
//   - MetricsLogInterval: 0 (disabled)
//
// BusyRetryInterval and ShutdownTimeout live in other sections of the
// configuration file and are copied in by the config package.
type Config struct {
	// BindAddress is the IP address to bind to. Empty or "0.0.0.0" binds
	// all interfaces.
	BindAddress string `mapstructure:"bind_address" validate:"omitempty,ip" yaml:"bind_address"`

	// Port is the TCP port to listen on. Tests may set UseEphemeralPort.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// UseEphemeralPort keeps Port 0 instead of applying the default.
	UseEphemeralPort bool `mapstructure:"-" yaml:"-"`

	// MaxConnections limits concurrent client connections. Extra clients
	// wait in the kernel backlog until a slot frees. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections"`

	// MaxLineLength bounds the HELLO and command lines. Longer lines are
	// rejected as a failed handshake or a bad header.
	MaxLineLength bytesize.ByteSize `mapstructure:"max_line_length" yaml:"max_line_length"`

	// ShutdownNoticeTimeout is the write deadline for the SERVER_SHUTDOWN
	// notice on each connection.
	ShutdownNoticeTimeout time.Duration `mapstructure:"shutdown_notice_timeout" validate:"min=0" yaml:"shutdown_notice_timeout"`

	// MetricsLogInterval enables periodic logging of connection counts.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0" yaml:"metrics_log_interval"`

	// BusyRetryInterval is the pause between exclusive lock attempts while a
	// writer waits. Each failed attempt sends one NOTIFY BUSY line.
	BusyRetryInterval time.Duration `mapstructure:"-" yaml:"-"`

	// ShutdownTimeout bounds the wait for connection workers after the
	// shutdown broadcast.
	ShutdownTimeout time.Duration `mapstructure:"-" yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.Port == 0 && !c.UseEphemeralPort {
		c.Port = DefaultPort
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = protocol.DefaultMaxLineLength
	}
	if c.BusyRetryInterval == 0 {
		c.BusyRetryInterval = lock.DefaultRetryInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ShutdownNoticeTimeout == 0 {
		c.ShutdownNoticeTimeout = DefaultShutdownNoticeTimeout
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max_connections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxLineLength < 8 {
		return fmt.Errorf("invalid max_line_length %s: must be at least 8 bytes", c.MaxLineLength)
	}
	if c.BusyRetryInterval < 0 || c.ShutdownTimeout < 0 || c.ShutdownNoticeTimeout < 0 {
		return errors.New("timeouts must be >= 0")
	}
	return nil
}
