package adapter

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/fxd/internal/logger"
)

// ConnectionHandler serves one accepted connection. Serve blocks until the
// exchange is finished or the connection fails.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates the protocol handler for an accepted connection.
type ConnectionFactory interface {
	NewConnection(conn *TrackedConn) ConnectionHandler
}

// BaseConfig holds configuration common to protocol adapters.
type BaseConfig struct {
	// BindAddress is the IP address to bind to. Empty binds all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int

	// MaxConnections limits concurrent connections. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout bounds how long Serve waits for workers after the
	// shutdown broadcast.
	ShutdownTimeout time.Duration

	// ShutdownNotice is written to every connection at shutdown. Empty
	// disables the notice; connections are still closed.
	ShutdownNotice []byte

	// ShutdownNoticeTimeout is the write deadline for the notice.
	ShutdownNoticeTimeout time.Duration

	// MetricsLogInterval enables periodic connection-count logging. 0 disables.
	MetricsLogInterval time.Duration
}

// MetricsRecorder receives connection lifecycle events. Nil disables metrics.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// BaseAdapter implements the accept loop, connection tracking and shutdown
// broadcast. Protocol adapters embed it and supply a ConnectionFactory.
//
// Shutdown order: stop accepting (listener closed), broadcast the notice to
// every registered connection and close it, cancel ShutdownCtx, then wait
// for worker goroutines up to ShutdownTimeout.
type BaseAdapter struct {
	Config BaseConfig

	protocolName string

	// Metrics is optional.
	Metrics MetricsRecorder

	// Conns tracks every live connection for the shutdown broadcast.
	Conns *ConnRegistry

	listener   net.Listener
	listenerMu sync.RWMutex

	// ListenerReady is closed once Serve has bound (or failed to bind).
	ListenerReady chan struct{}
	readyOnce     sync.Once

	workers      sync.WaitGroup
	shutdownOnce sync.Once

	// Shutdown is closed when shutdown starts.
	Shutdown chan struct{}

	// ConnCount is the number of running connection workers.
	ConnCount atomic.Int32

	connSemaphore chan struct{}

	// ShutdownCtx is handed to every connection and cancelled on shutdown so
	// that waits (such as busy-retry loops) end promptly.
	ShutdownCtx    context.Context
	CancelRequests context.CancelFunc
}

// NewBaseAdapter creates a stopped adapter. Call ServeWithFactory to start.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	var sem chan struct{}
	if config.MaxConnections > 0 {
		sem = make(chan struct{}, config.MaxConnections)
		logger.Debug(protocol+" connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug(protocol+" connection limit", "max_connections", "unlimited")
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())

	return &BaseAdapter{
		Config:         config,
		protocolName:   protocol,
		Conns:          NewConnRegistry(),
		ListenerReady:  make(chan struct{}),
		Shutdown:       make(chan struct{}),
		connSemaphore:  sem,
		ShutdownCtx:    shutdownCtx,
		CancelRequests: cancel,
	}
}

func (b *BaseAdapter) markReady() {
	b.readyOnce.Do(func() { close(b.ListenerReady) })
}

// ServeWithFactory binds the listener and runs the accept loop until ctx is
// cancelled or Stop is called. Only a bind failure is returned early; errors
// on individual connections never stop the loop.
func (b *BaseAdapter) ServeWithFactory(ctx context.Context, factory ConnectionFactory) error {
	addr := net.JoinHostPort(b.Config.BindAddress, strconv.Itoa(b.Config.Port))
	lc := net.ListenConfig{Control: listenControl}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		b.markReady()
		return fmt.Errorf("failed to create %s listener on %s: %w", b.protocolName, addr, err)
	}

	b.listenerMu.Lock()
	b.listener = ln
	select {
	case <-b.Shutdown:
		// Stopped before we bound.
		_ = ln.Close()
	default:
	}
	b.listenerMu.Unlock()
	b.markReady()

	logger.Info(b.protocolName+" server listening", "address", ln.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info(b.protocolName+" shutdown signal received", logger.KeyReason, context.Cause(ctx))
			b.initiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(b.ShutdownCtx)
	}

	for {
		if b.connSemaphore != nil {
			select {
			case b.connSemaphore <- struct{}{}:
			case <-b.Shutdown:
				return b.gracefulShutdown()
			}
		}

		netConn, err := ln.Accept()
		if err != nil {
			b.releaseSlot()
			select {
			case <-b.Shutdown:
				return b.gracefulShutdown()
			default:
				logger.Debug("Error accepting "+b.protocolName+" connection", logger.KeyError, err)
				continue
			}
		}

		if tcp, ok := netConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", logger.KeyError, err)
			}
		}

		b.startWorker(factory, NewTrackedConn(uuid.NewString(), netConn))
	}
}

// startWorker registers conn and runs its handler in a new goroutine.
func (b *BaseAdapter) startWorker(factory ConnectionFactory, conn *TrackedConn) {
	if !b.Conns.Add(conn) {
		// Accepted while the broadcast was running: give it the same treatment.
		if len(b.Config.ShutdownNotice) > 0 {
			_ = conn.notify(b.Config.ShutdownNotice, b.Config.ShutdownNoticeTimeout)
		}
		_ = conn.Close()
		b.releaseSlot()
		return
	}

	b.workers.Add(1)
	active := b.ConnCount.Add(1)
	if b.Metrics != nil {
		b.Metrics.RecordConnectionAccepted()
		b.Metrics.SetActiveConnections(active)
	}
	logger.Debug(b.protocolName+" connection accepted",
		logger.KeyConnectionID, conn.ID(),
		logger.KeyClientAddr, conn.RemoteAddr().String(),
		logger.KeyActive, active)

	handler := factory.NewConnection(conn)

	go func() {
		defer func() {
			b.Conns.Remove(conn.ID())
			_ = conn.Close()

			remaining := b.ConnCount.Add(-1)
			b.releaseSlot()
			if b.Metrics != nil {
				b.Metrics.RecordConnectionClosed()
				b.Metrics.SetActiveConnections(remaining)
			}
			logger.Debug(b.protocolName+" connection closed",
				logger.KeyConnectionID, conn.ID(),
				logger.KeyActive, remaining)
			b.workers.Done()
		}()

		handler.Serve(b.ShutdownCtx)
	}()
}

func (b *BaseAdapter) releaseSlot() {
	if b.connSemaphore != nil {
		<-b.connSemaphore
	}
}

// initiateShutdown runs the shutdown broadcast exactly once. Concurrent
// callers block until the broadcast has finished.
func (b *BaseAdapter) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")
		close(b.Shutdown)

		b.listenerMu.Lock()
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				logger.Debug("Error closing "+b.protocolName+" listener", logger.KeyError, err)
			}
		}
		b.listenerMu.Unlock()

		res := b.Conns.Shutdown(b.Config.ShutdownNotice, b.Config.ShutdownNoticeTimeout)
		if b.Metrics != nil {
			for i := 0; i < res.Closed; i++ {
				b.Metrics.RecordConnectionForceClosed()
			}
		}
		logger.Info(b.protocolName+" shutdown broadcast complete",
			"notified", res.Notified, "closed", res.Closed)

		b.CancelRequests()
	})
}

// gracefulShutdown waits for workers after the broadcast.
func (b *BaseAdapter) gracefulShutdown() error {
	b.initiateShutdown()
	return b.waitWorkers(b.Config.ShutdownTimeout)
}

func (b *BaseAdapter) waitWorkers(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		b.workers.Wait()
		close(done)
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-done:
		logger.Info(b.protocolName + " shutdown complete: all connections closed")
		return nil
	case <-expired:
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown timeout exceeded",
			logger.KeyActive, remaining, "timeout", timeout)
		return fmt.Errorf("%s shutdown timeout: %d workers still running", b.protocolName, remaining)
	}
}

// Stop initiates shutdown and waits for workers until ctx is done.
// A nil ctx waits up to ShutdownTimeout.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.waitWorkers(b.Config.ShutdownTimeout)
	}

	done := make(chan struct{})
	go func() {
		b.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn(b.protocolName+" stop context cancelled",
			logger.KeyActive, b.ConnCount.Load(), logger.KeyError, ctx.Err())
		return ctx.Err()
	}
}

func (b *BaseAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics",
				"active_connections", b.ConnCount.Load(),
				"registered_connections", b.Conns.Len())
		}
	}
}

// ActiveConnections returns the number of running connection workers.
func (b *BaseAdapter) ActiveConnections() int32 {
	return b.ConnCount.Load()
}

// ListenerAddr blocks until Serve has bound and returns the listen address,
// or "" if binding failed.
func (b *BaseAdapter) ListenerAddr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Port returns the configured TCP port.
func (b *BaseAdapter) Port() int {
	return b.Config.Port
}

// Protocol returns the protocol name.
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}
