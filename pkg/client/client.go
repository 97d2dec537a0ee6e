// Package client implements the client side of the fxd exchange.
//
// Every Read or Write opens its own connection, performs the HELLO
// handshake, sends one command and streams one file. Cancelling the context
// closes the connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/fxd/pkg/bufpool"
	"github.com/marmos91/fxd/pkg/protocol"
)

// DefaultDialTimeout bounds connection setup when Config.DialTimeout is zero.
const DefaultDialTimeout = 10 * time.Second

// replyLineLimit bounds reply lines; NOTIFY BUSY and OK WRITE echo the
// filename, so this is larger than the server's request limit.
const replyLineLimit = 4 * protocol.DefaultMaxLineLength

// drainTimeout bounds the read for a shutdown notice after a failed send.
const drainTimeout = time.Second

// BusyFunc is called for every NOTIFY BUSY received while a write waits for
// the file lock. attempt starts at 1.
type BusyFunc func(name string, attempt int)

// Config configures a Client.
type Config struct {
	// Address is the server's host:port.
	Address string

	// ClientID is sent with HELLO. Defaults to "fxd-" plus a random suffix.
	ClientID string

	// DialTimeout bounds connection setup. Default: 10s.
	DialTimeout time.Duration

	// OnBusy observes busy notifications during Write. Optional.
	OnBusy BusyFunc
}

// Client talks to one fxd server. It is safe for concurrent use; every call
// uses its own connection.
type Client struct {
	cfg Config
}

// New creates a client for cfg.Address.
func New(cfg Config) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "fxd-" + uuid.NewString()[:8]
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	return &Client{cfg: cfg}
}

// ID returns the identifier sent with HELLO.
func (c *Client) ID() string {
	return c.cfg.ClientID
}

// Read fetches name and copies its contents to w, returning the number of
// bytes delivered. The server signals the end of the file by closing the
// connection, so a file whose entire content is an ERR reply, or whose
// content ends with the shutdown notice, is reported as that reply.
func (c *Client) Read(ctx context.Context, name string, w io.Writer) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	s, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer s.close()

	req := protocol.Request{Verb: protocol.VerbRead, Filename: name}
	if err := s.codec.WriteLine(req.String()); err != nil {
		return 0, s.fail(ctx, fmt.Errorf("send request: %w", err))
	}

	hb := newHoldback(w)
	if _, err := bufpool.Copy(hb, s.codec); err != nil {
		if hb.werr != nil {
			return hb.written, hb.werr
		}
		return hb.written, s.fail(ctx, fmt.Errorf("receive %s: %w", name, err))
	}
	return hb.finish()
}

// Write uploads the contents of r as name, replacing any existing file. It
// waits while other clients hold the file (calling OnBusy on every
// notification), streams r once the server grants the write, half-closes
// the connection and waits for the receipt.
func (c *Client) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	s, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer s.close()

	req := protocol.Request{Verb: protocol.VerbWrite, Filename: name}
	if err := s.codec.WriteLine(req.String()); err != nil {
		return 0, s.fail(ctx, fmt.Errorf("send request: %w", err))
	}

	if err := c.awaitGrant(ctx, s); err != nil {
		return 0, err
	}

	src := &sourceReader{r: r}
	n, err := bufpool.Copy(s.conn, src)
	if src.err != nil {
		return n, fmt.Errorf("read source: %w", src.err)
	}
	if err != nil {
		// The server closes after announcing shutdown.
		_ = s.conn.SetReadDeadline(time.Now().Add(drainTimeout))
		if line, lerr := s.readLine(); lerr == nil && line == protocol.MsgServerShutdown {
			return n, ErrServerShutdown
		}
		return n, s.fail(ctx, fmt.Errorf("send %s: %w", name, err))
	}

	if err := s.closeWrite(); err != nil {
		return n, s.fail(ctx, fmt.Errorf("half-close: %w", err))
	}

	line, err := s.readLine()
	if err != nil {
		if errors.Is(err, protocol.ErrConnectionClosed) && ctx.Err() == nil {
			return n, ErrNoConfirmation
		}
		return n, s.fail(ctx, fmt.Errorf("read confirmation: %w", err))
	}
	if line != protocol.MsgFileReceived {
		return n, replyError(line)
	}
	return n, nil
}

func (c *Client) awaitGrant(ctx context.Context, s *session) error {
	attempt := 0
	for {
		line, err := s.readLine()
		if err != nil {
			return s.fail(ctx, fmt.Errorf("wait for write grant: %w", err))
		}
		if busy, ok := protocol.ParseNotifyBusy(line); ok {
			attempt++
			if c.cfg.OnBusy != nil {
				c.cfg.OnBusy(busy, attempt)
			}
			continue
		}
		if _, ok := protocol.ParseOKWrite(line); ok {
			return nil
		}
		return replyError(line)
	}
}

type session struct {
	conn  net.Conn
	codec *protocol.Codec
	stop  func() bool
}

func (c *Client) dial(ctx context.Context) (*session, error) {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.Address, err)
	}

	s := &session{conn: conn, codec: protocol.NewCodec(conn)}
	s.stop = context.AfterFunc(ctx, func() { _ = conn.Close() })

	if err := s.handshake(c.cfg.ClientID); err != nil {
		err = s.fail(ctx, err)
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) handshake(id string) error {
	if err := s.codec.WriteLine(protocol.Hello(id)); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	line, err := s.readLine()
	if err != nil {
		return fmt.Errorf("read handshake reply: %w", err)
	}
	if line != protocol.MsgOK {
		return replyError(line)
	}
	return nil
}

func (s *session) readLine() (string, error) {
	return s.codec.ReadLine(replyLineLimit)
}

func (s *session) closeWrite() error {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return errors.New("connection does not support half-close")
}

// fail prefers the context error when the failure was caused by
// cancellation closing the connection.
func (s *session) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *session) close() {
	s.stop()
	_ = s.conn.Close()
}

func replyError(line string) error {
	switch {
	case line == protocol.MsgServerShutdown:
		return ErrServerShutdown
	case protocol.IsError(line):
		return &ServerError{Reply: line}
	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, line)
	}
}

// checkName rejects names that would break request framing. Everything else
// is left for the server to judge.
func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("%w: %q", protocol.ErrInvalidFilename, name)
	}
	return nil
}

// sourceReader remembers the caller's read error so it can be told apart
// from a failed send.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}
