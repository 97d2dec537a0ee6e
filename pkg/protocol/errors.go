package protocol

import "errors"

// Transport errors returned by the Codec.
var (
	// ErrConnectionClosed means the peer closed its side before a line
	// terminator arrived.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrLineTooLong means more than the allowed number of bytes arrived
	// without a line terminator.
	ErrLineTooLong = errors.New("line too long")

	// ErrStream wraps any other I/O failure on the underlying stream.
	ErrStream = errors.New("stream error")
)

// Protocol errors. Each maps to exactly one ERR reply line via ReplyFor.
var (
	ErrHandshakeRequired = errors.New("handshake required")
	ErrBadHeader         = errors.New("bad header")
	ErrInvalidFilename   = errors.New("invalid filename")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrFileNotFound      = errors.New("file not found")
	ErrCannotOpen        = errors.New("cannot open file for writing")
)

// ReplyFor returns the ERR line sent to a peer for a protocol error, and
// false when err has no wire representation.
func ReplyFor(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrHandshakeRequired):
		return MsgHandshakeRequired, true
	case errors.Is(err, ErrBadHeader):
		return MsgBadHeader, true
	case errors.Is(err, ErrInvalidFilename):
		return MsgInvalidFilename, true
	case errors.Is(err, ErrUnknownCommand):
		return MsgUnknownCommand, true
	case errors.Is(err, ErrFileNotFound):
		return MsgFileNotFound, true
	case errors.Is(err, ErrCannotOpen):
		return MsgCannotOpen, true
	}
	return "", false
}

// IsTransport reports whether err signals a dead or closed stream, i.e. no
// reply can be delivered.
func IsTransport(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrStream)
}
