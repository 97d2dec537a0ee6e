package xfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/fxd/internal/logger"
	"github.com/marmos91/fxd/internal/telemetry"
	"github.com/marmos91/fxd/pkg/protocol"
)

// dispatch reads the one command line of the exchange and runs its handler.
// Validation happens before the lock registry is touched, so rejected names
// never create a lock.
func (c *Connection) dispatch(ctx context.Context) error {
	line, err := c.codec.ReadLine(c.server.config.MaxLineLength.Int())
	c.started = time.Now()
	if err != nil {
		if errors.Is(err, protocol.ErrLineTooLong) {
			return fmt.Errorf("%w: %w", protocol.ErrBadHeader, err)
		}
		return err
	}

	req, err := protocol.ParseRequest(line)
	if err != nil {
		logger.DebugCtx(ctx, "Invalid command line", logger.KeyLine, truncate(line), logger.KeyError, err)
		return err
	}
	c.request = req

	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithRequest(req.Verb, req.Filename))
	ctx, span := telemetry.StartRequestSpan(ctx, req.Verb, req.Filename,
		telemetry.StoreType(c.server.store.Type()))
	defer span.End()

	logger.DebugCtx(ctx, "Request parsed")

	fl := c.server.locks.Get(req.Filename)

	switch req.Verb {
	case protocol.VerbRead:
		err = c.handleRead(ctx, fl)
	case protocol.VerbWrite:
		err = c.handleWrite(ctx, fl)
	}
	// The request span lives only here; record before it ends.
	telemetry.RecordError(ctx, err)
	return err
}
