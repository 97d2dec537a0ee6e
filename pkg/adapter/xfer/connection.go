package xfer

import (
	"context"
	"errors"
	"io"
	"runtime/debug"
	"time"

	"github.com/marmos91/fxd/internal/logger"
	"github.com/marmos91/fxd/internal/telemetry"
	"github.com/marmos91/fxd/pkg/adapter"
	"github.com/marmos91/fxd/pkg/metrics"
	"github.com/marmos91/fxd/pkg/protocol"
	"github.com/marmos91/fxd/pkg/store"
)

// connState tracks where a connection is in its single exchange.
type connState int

const (
	stateAwaitingHello connState = iota
	stateHandshakeOK
	stateRejected
	stateWaitingForLock
	stateLockHeld
	stateReceiving
	stateSending
	stateDone
	stateAborted
)

var stateNames = [...]string{
	stateAwaitingHello:  "awaiting_hello",
	stateHandshakeOK:    "handshake_ok",
	stateRejected:       "rejected",
	stateWaitingForLock: "waiting_for_lock",
	stateLockHeld:       "lock_held",
	stateReceiving:      "receiving",
	stateSending:        "sending",
	stateDone:           "done",
	stateAborted:        "aborted",
}

func (s connState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Connection serves one accepted client. It is owned by its worker
// goroutine; only the TrackedConn is shared with the connection registry.
type Connection struct {
	server *Adapter
	conn   *adapter.TrackedConn
	codec  *protocol.Codec

	clientID string
	request  protocol.Request
	state    connState
	started  time.Time
}

// NewConnection creates a handler for conn.
func NewConnection(server *Adapter, conn *adapter.TrackedConn) *Connection {
	return &Connection{
		server: server,
		conn:   conn,
		codec:  protocol.NewCodec(conn),
		state:  stateAwaitingHello,
	}
}

// State returns the current protocol state name.
func (c *Connection) State() string { return c.state.String() }

// Serve runs the handshake, the single command and its transfer. Every
// failure ends the exchange; none of them reach the accept loop.
func (c *Connection) Serve(ctx context.Context) {
	remote := c.conn.RemoteAddr().String()

	ctx, span := telemetry.StartConnectionSpan(ctx, c.conn.ID(), remote)
	defer span.End()

	lc := logger.NewLogContext(c.conn.ID(), remote).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	defer func() {
		if r := recover(); r != nil {
			c.state = stateAborted
			logger.ErrorCtx(ctx, "Panic in "+ProtocolName+" connection handler",
				logger.KeyError, r, "stack", string(debug.Stack()))
		}
	}()

	if err := c.handshake(ctx); err != nil {
		c.state = stateRejected
		c.recordHandshake(false)
		c.fail(ctx, err)
		return
	}
	c.recordHandshake(true)
	ctx = logger.WithContext(ctx, lc.WithClientID(c.clientID))
	telemetry.SetAttributes(ctx, telemetry.ClientID(c.clientID))

	err := c.dispatch(ctx)
	c.recordRequest(err)
	if err != nil {
		c.state = stateAborted
		c.fail(ctx, err)
		return
	}
	c.state = stateDone
}

// fail reports err to the peer when it has a wire form and logs it at the
// level its class deserves.
func (c *Connection) fail(ctx context.Context, err error) {
	telemetry.RecordError(ctx, err)

	if reply, ok := protocol.ReplyFor(err); ok {
		if werr := c.codec.WriteLine(reply); werr != nil {
			logger.DebugCtx(ctx, "Could not deliver error reply",
				logger.KeyReply, reply, logger.KeyError, werr)
		}
		if errors.Is(err, protocol.ErrLineTooLong) {
			c.drain()
		}
		if errors.Is(err, protocol.ErrCannotOpen) {
			logger.WarnCtx(ctx, "Request failed", logger.KeyReply, reply, logger.KeyError, err)
		} else {
			logger.DebugCtx(ctx, "Request rejected", logger.KeyReply, reply, logger.KeyError, err)
		}
		return
	}

	switch {
	case errors.Is(err, context.Canceled):
		logger.DebugCtx(ctx, "Request aborted by server shutdown", logger.KeyState, c.state.String())
	case protocol.IsTransport(err):
		logger.DebugCtx(ctx, "Connection ended mid-exchange",
			logger.KeyState, c.state.String(), logger.KeyError, err)
	default:
		logger.WarnCtx(ctx, "Request failed",
			logger.KeyState, c.state.String(), logger.KeyError, err)
	}
}

// Bounds on the input discarded after an oversized line was rejected.
const (
	drainLimit   = 1 << 20
	drainTimeout = time.Second
)

// drain half-closes the stream and discards what the peer is still sending.
// Closing a TCP socket with unread input sends RST, which can destroy the
// ERR reply before the peer reads it.
func (c *Connection) drain() {
	if cw, ok := c.conn.Conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(drainTimeout))
	_, _ = io.CopyN(io.Discard, c.codec, drainLimit)
}

func (c *Connection) recordHandshake(accepted bool) {
	if c.server.metrics != nil {
		c.server.metrics.RecordHandshake(accepted)
	}
}

func (c *Connection) recordRequest(err error) {
	if c.server.metrics == nil {
		return
	}
	c.server.metrics.RecordRequest(c.request.Verb, outcome(err), time.Since(c.started))
}

func (c *Connection) recordBytes(n int64) {
	if c.server.metrics != nil {
		c.server.metrics.RecordBytes(c.request.Verb, n)
	}
}

// outcome classifies a request result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, protocol.ErrFileNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, protocol.ErrCannotOpen), errors.Is(err, store.ErrTooLarge):
		return metrics.OutcomeFailed
	case errors.Is(err, context.Canceled), protocol.IsTransport(err):
		return metrics.OutcomeAborted
	default:
		if _, ok := protocol.ReplyFor(err); ok {
			return metrics.OutcomeRejected
		}
		return metrics.OutcomeFailed
	}
}
