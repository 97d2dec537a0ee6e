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
	"github.com/marmos91/fxd/pkg/store"
)

// handleRead streams the file to the peer under a shared lock. The end of
// the stream is the success signal; nothing follows the payload.
func (c *Connection) handleRead(ctx context.Context, fl *lock.FileLock) error {
	c.state = stateWaitingForLock
	held := fl.AcquireShared()
	defer held.Release()

	c.state = stateLockHeld
	telemetry.AddEvent(ctx, telemetry.EventLockGranted, telemetry.LockMode(held.Mode().String()))

	name := c.request.Filename
	rc, err := c.server.store.Open(ctx, name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.WarnCtx(ctx, "Store open failed", logger.KeyError, err)
		}
		return fmt.Errorf("%w: %w", protocol.ErrFileNotFound, err)
	}
	defer rc.Close()

	c.state = stateSending
	n, err := bufpool.Copy(c.codec, rc)
	c.recordBytes(n)
	telemetry.SetAttributes(ctx, telemetry.Bytes(n))
	if err != nil {
		return fmt.Errorf("sending %s after %d bytes: %w", name, n, err)
	}

	logger.InfoCtx(ctx, "File sent", logger.KeyBytesWritten, n)
	return nil
}
