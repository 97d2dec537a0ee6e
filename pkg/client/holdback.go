package client

import (
	"bytes"
	"io"

	"github.com/marmos91/fxd/pkg/protocol"
)

// holdbackSize covers the longest reply that can replace or end a READ
// stream.
const holdbackSize = 64

var shutdownNotice = []byte(protocol.MsgServerShutdown + "\n")

// holdback forwards a READ stream to w while keeping the last holdbackSize
// bytes back, so a trailing shutdown notice or a lone ERR reply is never
// delivered as file content.
type holdback struct {
	w       io.Writer
	tail    []byte
	seen    int64
	written int64
	werr    error
}

func newHoldback(w io.Writer) *holdback {
	return &holdback{w: w, tail: make([]byte, 0, 2*holdbackSize)}
}

func (h *holdback) Write(p []byte) (int, error) {
	h.seen += int64(len(p))
	h.tail = append(h.tail, p...)

	if over := len(h.tail) - holdbackSize; over > 0 {
		if err := h.emit(h.tail[:over]); err != nil {
			return 0, err
		}
		h.tail = append(h.tail[:0], h.tail[over:]...)
	}
	return len(p), nil
}

func (h *holdback) emit(p []byte) error {
	n, err := h.w.Write(p)
	h.written += int64(n)
	if err != nil {
		h.werr = err
	}
	return err
}

// finish interprets the held-back bytes once the server closed the stream.
func (h *holdback) finish() (int64, error) {
	if h.seen == int64(len(h.tail)) && bytes.HasSuffix(h.tail, []byte("\n")) {
		line := string(h.tail[:len(h.tail)-1])
		if knownReply(line) || line == protocol.MsgServerShutdown {
			return 0, replyError(line)
		}
	}

	if bytes.HasSuffix(h.tail, shutdownNotice) {
		if err := h.emit(h.tail[:len(h.tail)-len(shutdownNotice)]); err != nil {
			return h.written, err
		}
		return h.written, ErrServerShutdown
	}

	if err := h.emit(h.tail); err != nil {
		return h.written, err
	}
	return h.written, nil
}
