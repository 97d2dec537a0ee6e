package xfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/fxd/internal/logger"
	"github.com/marmos91/fxd/internal/telemetry"
	"github.com/marmos91/fxd/pkg/bufpool"
	"github.com/marmos91/fxd/pkg/lock"
	"github.com/marmos91/fxd/pkg/protocol"
)

// handleWrite replaces the file with everything the peer sends until it
// half-closes.
//
// States: waiting_for_lock (NOTIFY BUSY per failed attempt) -> lock_held ->
// receiving -> done. A failed notification or server shutdown aborts the
// wait. Bytes received before a transport error stay in the store.
func (c *Connection) handleWrite(ctx context.Context, fl *lock.FileLock) error {
	name := c.request.Filename

	c.state = stateWaitingForLock
	busy := 0
	held, err := fl.AcquireExclusive(ctx, c.server.config.BusyRetryInterval, func(attempt int) error {
		busy = attempt
		if c.server.metrics != nil {
			c.server.metrics.RecordBusyNotification()
		}
		telemetry.AddEvent(ctx, telemetry.EventLockBusy, telemetry.BusyAttempts(attempt))
		logger.DebugCtx(ctx, "File busy, writer waiting", logger.KeyAttempt, attempt)
		return c.codec.WriteLine(protocol.NotifyBusy(name))
	})
	if err != nil {
		return fmt.Errorf("waiting for %s after %d busy notifications: %w", name, busy, err)
	}
	defer held.Release()

	c.state = stateLockHeld
	telemetry.AddEvent(ctx, telemetry.EventLockGranted,
		telemetry.LockMode(held.Mode().String()), telemetry.BusyAttempts(busy))

	w, err := c.server.store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrCannotOpen, err)
	}

	if err := c.codec.WriteLine(protocol.OKWrite(name)); err != nil {
		_ = w.Close()
		return err
	}

	c.state = stateReceiving
	n, copyErr := bufpool.Copy(w, c.codec)
	closeErr := w.Close()
	c.recordBytes(n)
	telemetry.SetAttributes(ctx, telemetry.Bytes(n))

	// The confirmation follows the release.
	held.Release()

	if err := errors.Join(copyErr, closeErr); err != nil {
		return fmt.Errorf("receiving %s after %d bytes: %w", name, n, err)
	}

	logger.InfoCtx(ctx, "File received", logger.KeyBytesRead, n, logger.KeyAttempt, busy)
	return c.codec.WriteLine(protocol.MsgFileReceived)
}
