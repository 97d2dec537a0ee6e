// Package protocol implements the fxd wire format: newline-terminated ASCII
// header lines followed by a raw byte payload on the same stream.
//
// A connection carries exactly one exchange:
//
//	C: HELLO <id>          S: OK
//	C: WRITE <name>        S: NOTIFY BUSY <name>   (zero or more)
//	                       S: OK WRITE <name>
//	C: <bytes>, half-close S: File Received by server
//
// or, for reads:
//
//	C: READ <name>         S: <bytes>, close
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineLength bounds header lines when callers pass a
// non-positive limit to ReadLine.
const DefaultMaxLineLength = 1024

// Codec reads header lines and payload bytes from the same buffered stream,
// so payload bytes that arrive together with a header are never lost.
// A Codec is not safe for concurrent reads; writes go straight to the
// underlying writer, which is responsible for its own serialization.
type Codec struct {
	r *bufio.Reader
	w io.Writer
}

// NewCodec wraps rw.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{r: bufio.NewReader(rw), w: rw}
}

// ReadLine returns the next line without its "\n" (and optional "\r").
// It fails with ErrLineTooLong once more than limit bytes arrive without a
// terminator, and with ErrConnectionClosed if the stream ends first.
func (c *Codec) ReadLine(limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxLineLength
	}

	var line []byte
	for {
		chunk, err := c.r.ReadSlice('\n')
		line = append(line, chunk...)

		// Terminator excluded from the limit.
		n := len(line)
		if n > 0 && line[n-1] == '\n' {
			n--
		}
		if n > limit {
			return "", ErrLineTooLong
		}

		switch {
		case err == nil:
			line = line[:n]
			if n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			return string(line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return "", ErrConnectionClosed
		default:
			return "", fmt.Errorf("%w: %w", ErrStream, err)
		}
	}
}

// WriteLine writes s followed by "\n" in a single Write call.
func (c *Codec) WriteLine(s string) error {
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, s...)
	buf = append(buf, '\n')
	_, err := c.Write(buf)
	return err
}

// Write writes all of p, retrying short writes.
func (c *Codec) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := c.w.Write(p[written:])
		written += n
		if err != nil {
			return written, fmt.Errorf("%w: %w", ErrStream, err)
		}
		if n == 0 {
			return written, fmt.Errorf("%w: %w", ErrStream, io.ErrShortWrite)
		}
	}
	return written, nil
}

// Read reads payload bytes, draining anything buffered by ReadLine first.
// io.EOF is returned unchanged so io.Copy treats a half-close as success.
func (c *Codec) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: %w", ErrStream, err)
	}
	return n, err
}

// Buffered returns the number of payload bytes already read off the wire.
func (c *Codec) Buffered() int {
	return c.r.Buffered()
}
