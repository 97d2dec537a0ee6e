// Package xfer implements the fxd file-exchange protocol on top of the
// shared TCP lifecycle in package adapter.
//
// Each accepted connection performs exactly one exchange: a HELLO
// handshake, one READ or WRITE command, and the payload transfer. Readers of
// a file share its lock; a writer holds it exclusively and is told
// NOTIFY BUSY while it waits.
package xfer

import (
	"context"
	"fmt"

	"github.com/marmos91/fxd/internal/logger"
	"github.com/marmos91/fxd/pkg/adapter"
	"github.com/marmos91/fxd/pkg/lock"
	"github.com/marmos91/fxd/pkg/metrics"
	"github.com/marmos91/fxd/pkg/protocol"
	"github.com/marmos91/fxd/pkg/store"
)

// ProtocolName is reported by Protocol and used in log messages.
const ProtocolName = "fxd"

// Adapter serves the file-exchange protocol.
//
// Architecture:
// Adapter embeds BaseAdapter for the listener, connection registry and
// shutdown broadcast. It supplies itself as the ConnectionFactory; every
// connection shares the adapter's lock registry and store.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections) [BaseAdapter]
//  3. SERVER_SHUTDOWN written to every registered connection, which is then
//     force-closed [BaseAdapter]
//  4. ShutdownCtx cancelled, ending busy-retry loops [BaseAdapter]
//  5. Wait for connection workers up to ShutdownTimeout [BaseAdapter]
type Adapter struct {
	*adapter.BaseAdapter

	config  Config
	locks   *lock.Registry
	store   store.Store
	metrics metrics.XferMetrics
}

// New creates a stopped Adapter. locks may be nil, in which case a private
// registry is created; m may be nil to disable metrics.
//
// Panics if config validation fails or st is nil.
func New(config Config, st store.Store, locks *lock.Registry, m metrics.XferMetrics) *Adapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid %s config: %v", ProtocolName, err))
	}
	if st == nil {
		panic("xfer: nil store")
	}
	if locks == nil {
		locks = lock.NewRegistry(nil)
	}

	base := adapter.NewBaseAdapter(adapter.BaseConfig{
		BindAddress:           config.BindAddress,
		Port:                  config.Port,
		MaxConnections:        config.MaxConnections,
		ShutdownTimeout:       config.ShutdownTimeout,
		ShutdownNotice:        []byte(protocol.MsgServerShutdown + "\n"),
		ShutdownNoticeTimeout: config.ShutdownNoticeTimeout,
		MetricsLogInterval:    config.MetricsLogInterval,
	}, ProtocolName)
	if m != nil {
		base.Metrics = m
	}

	logger.Debug(ProtocolName+" adapter configured",
		logger.KeyStore, st.Type(),
		"max_line_length", config.MaxLineLength.String(),
		"busy_retry_interval", config.BusyRetryInterval)

	return &Adapter{
		BaseAdapter: base,
		config:      config,
		locks:       locks,
		store:       st,
		metrics:     m,
	}
}

// Serve accepts connections until ctx is cancelled or Stop is called. It
// returns only after the shutdown broadcast has completed.
func (s *Adapter) Serve(ctx context.Context) error {
	return s.ServeWithFactory(ctx, s)
}

// NewConnection implements adapter.ConnectionFactory.
func (s *Adapter) NewConnection(conn *adapter.TrackedConn) adapter.ConnectionHandler {
	return NewConnection(s, conn)
}

// Locks returns the lock registry shared by all connections.
func (s *Adapter) Locks() *lock.Registry { return s.locks }

// Store returns the backing store.
func (s *Adapter) Store() store.Store { return s.store }

// Settings returns the effective configuration, defaults applied.
func (s *Adapter) Settings() Config { return s.config }
