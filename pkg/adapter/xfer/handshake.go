package xfer

import (
	"context"
	"fmt"

	"github.com/marmos91/fxd/internal/logger"
	"github.com/marmos91/fxd/internal/telemetry"
	"github.com/marmos91/fxd/pkg/protocol"
)

// handshake reads the first line and accepts anything starting with HELLO.
// A close, a read failure or an oversized line all count as a missing
// handshake; the caller still tries to send the ERR line.
func (c *Connection) handshake(ctx context.Context) error {
	line, err := c.codec.ReadLine(c.server.config.MaxLineLength.Int())
	if err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrHandshakeRequired, err)
	}

	id, ok := protocol.ParseHello(line)
	if !ok {
		return fmt.Errorf("%w: got %q", protocol.ErrHandshakeRequired, truncate(line))
	}

	if err := c.codec.WriteLine(protocol.MsgOK); err != nil {
		return err
	}

	c.clientID = id
	c.state = stateHandshakeOK
	telemetry.AddEvent(ctx, telemetry.EventHandshake, telemetry.ClientID(id))
	logger.DebugCtx(ctx, "Handshake accepted", logger.KeyClientID, id)
	return nil
}

// truncate shortens a peer-supplied line before it is logged.
func truncate(line string) string {
	const maxLogged = 64
	if len(line) <= maxLogged {
		return line
	}
	return line[:maxLogged] + "..."
}
