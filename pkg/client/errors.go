package client

import (
	"errors"
	"fmt"

	"github.com/marmos91/fxd/pkg/protocol"
)

var (
	// ErrServerShutdown is returned when the server announced SERVER_SHUTDOWN
	// before the exchange completed.
	ErrServerShutdown = errors.New("server is shutting down")

	// ErrNoConfirmation is returned when a WRITE payload was sent but the
	// connection closed without the receipt line. The server may have
	// stored part or all of the payload.
	ErrNoConfirmation = errors.New("connection closed without write confirmation")

	// ErrUnexpectedReply is returned for a line the protocol does not allow
	// at that point of the exchange.
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// ServerError is an ERR line sent by the server. It unwraps to the matching
// protocol error, so errors.Is(err, protocol.ErrFileNotFound) works.
type ServerError struct {
	Reply string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server replied %q", e.Reply)
}

// Unwrap returns the protocol error the reply stands for, or nil.
func (e *ServerError) Unwrap() error {
	return replyErrors[e.Reply]
}

// IsNotFound reports whether the server could not find the file.
func (e *ServerError) IsNotFound() bool {
	return e.Reply == protocol.MsgFileNotFound
}

var replyErrors = map[string]error{
	protocol.MsgHandshakeRequired: protocol.ErrHandshakeRequired,
	protocol.MsgBadHeader:         protocol.ErrBadHeader,
	protocol.MsgInvalidFilename:   protocol.ErrInvalidFilename,
	protocol.MsgUnknownCommand:    protocol.ErrUnknownCommand,
	protocol.MsgFileNotFound:      protocol.ErrFileNotFound,
	protocol.MsgCannotOpen:        protocol.ErrCannotOpen,
}

// knownReply reports whether line is one of the ERR replies above.
func knownReply(line string) bool {
	_, ok := replyErrors[line]
	return ok
}
