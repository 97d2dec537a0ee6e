package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/fxd/pkg/adapter/xfer"
	"github.com/marmos91/fxd/pkg/protocol"
	"github.com/marmos91/fxd/pkg/store"
	"github.com/marmos91/fxd/pkg/store/memory"
	"github.com/marmos91/fxd/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

type server struct {
	*xfer.Adapter
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, st store.Store) *server {
	t.Helper()
	if st == nil {
		st = memory.New(memory.Config{})
	}
	a := xfer.New(xfer.Config{
		BindAddress:           "127.0.0.1",
		UseEphemeralPort:      true,
		BusyRetryInterval:     20 * time.Millisecond,
		ShutdownTimeout:       3 * time.Second,
		ShutdownNoticeTimeout: 500 * time.Millisecond,
	}, st, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s := &server{Adapter: a, cancel: cancel, done: make(chan error, 1)}
	go func() { s.done <- a.Serve(ctx) }()

	s.addr = a.ListenerAddr()
	require.NotEmpty(t, s.addr)

	t.Cleanup(s.stop)
	return s
}

func (s *server) stop() {
	s.cancel()
	select {
	case err := <-s.done:
		s.done <- err
	case <-time.After(testTimeout):
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{Address: "127.0.0.1:1"})
	assert.True(t, strings.HasPrefix(c.ID(), "fxd-"))
	assert.Equal(t, DefaultDialTimeout, c.cfg.DialTimeout)

	c = New(Config{Address: "127.0.0.1:1", ClientID: "alice"})
	assert.Equal(t, "alice", c.ID())
}

func TestWriteThenRead(t *testing.T) {
	srv := startServer(t, nil)
	c := New(Config{Address: srv.addr})
	ctx := testContext(t)

	payload := make([]byte, 256*1024)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	n, err := c.Write(ctx, "blob.bin", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	var out bytes.Buffer
	n, err = c.Read(ctx, "blob.bin", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, out.Bytes())
}

func TestReadSmallAndEmptyFiles(t *testing.T) {
	st := memory.New(memory.Config{})
	srv := startServer(t, st)
	c := New(Config{Address: srv.addr})

	storetest.Put(t, st, "small.txt", []byte("hi\n"))
	storetest.Put(t, st, "empty.txt", nil)

	var out bytes.Buffer
	_, err := c.Read(testContext(t), "small.txt", &out)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out.String())

	out.Reset()
	n, err := c.Read(testContext(t), "empty.txt", &out)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReadMissing(t *testing.T) {
	srv := startServer(t, nil)
	c := New(Config{Address: srv.addr})

	var out bytes.Buffer
	_, err := c.Read(testContext(t), "nope.txt", &out)

	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.IsNotFound())
	assert.ErrorIs(t, err, protocol.ErrFileNotFound)
	assert.Zero(t, out.Len())
}

func TestInvalidNames(t *testing.T) {
	srv := startServer(t, nil)
	c := New(Config{Address: srv.addr})
	ctx := testContext(t)

	_, err := c.Write(ctx, "../escape", strings.NewReader("x"))
	assert.ErrorIs(t, err, protocol.ErrInvalidFilename)
	var se *ServerError
	assert.ErrorAs(t, err, &se, "path checks are the server's")

	_, err = c.Read(ctx, "two words", &bytes.Buffer{})
	assert.ErrorIs(t, err, protocol.ErrInvalidFilename)
	assert.False(t, errors.As(err, &se), "framing checks happen locally")

	_, err = c.Read(ctx, "", &bytes.Buffer{})
	assert.ErrorIs(t, err, protocol.ErrInvalidFilename)
}

func TestWriteWaitsWhileBusy(t *testing.T) {
	srv := startServer(t, nil)
	held := srv.Locks().Get("busy.txt").AcquireShared()

	var busy atomic.Int32
	c := New(Config{Address: srv.addr, OnBusy: func(name string, attempt int) {
		assert.Equal(t, "busy.txt", name)
		if int(busy.Add(1)) != attempt {
			t.Errorf("attempt %d out of order", attempt)
		}
	}})

	errc := make(chan error, 1)
	go func() {
		_, err := c.Write(testContext(t), "busy.txt", strings.NewReader("done"))
		errc <- err
	}()

	require.Eventually(t, func() bool { return busy.Load() >= 2 }, testTimeout, 5*time.Millisecond)
	held.Release()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("write did not finish")
	}
	assert.Equal(t, []byte("done"), storetest.Get(t, srv.Store(), "busy.txt"))
}

func TestWriteCancelledWhileBusy(t *testing.T) {
	srv := startServer(t, nil)
	held := srv.Locks().Get("f").AcquireShared()
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Config{Address: srv.addr, OnBusy: func(string, int) { cancel() }})

	_, err := c.Write(ctx, "f", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteDuringShutdown(t *testing.T) {
	srv := startServer(t, nil)
	held := srv.Locks().Get("f").AcquireShared()
	defer held.Release()

	var once atomic.Bool
	c := New(Config{Address: srv.addr, OnBusy: func(string, int) {
		if once.CompareAndSwap(false, true) {
			go srv.stop()
		}
	}})

	_, err := c.Write(testContext(t), "f", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrServerShutdown)
}

func TestWriteWithoutConfirmation(t *testing.T) {
	st := memory.New(memory.Config{MaxObjectSize: 8})
	srv := startServer(t, st)
	c := New(Config{Address: srv.addr})

	_, err := c.Write(testContext(t), "big", strings.NewReader("0123456789abcdef"))
	assert.ErrorIs(t, err, ErrNoConfirmation)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestWriteSourceError(t *testing.T) {
	srv := startServer(t, nil)
	c := New(Config{Address: srv.addr})

	_, err := c.Write(testContext(t), "f", failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestDialFailure(t *testing.T) {
	srv := startServer(t, nil)
	addr := srv.addr
	srv.stop()

	c := New(Config{Address: addr, DialTimeout: time.Second})
	_, err := c.Read(testContext(t), "f", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
}

func TestReplyError(t *testing.T) {
	assert.ErrorIs(t, replyError(protocol.MsgServerShutdown), ErrServerShutdown)
	assert.ErrorIs(t, replyError(protocol.MsgBadHeader), protocol.ErrBadHeader)
	var se *ServerError
	assert.ErrorAs(t, replyError("ERR something new"), &se, "unknown ERR replies stay ServerErrors")
	assert.ErrorIs(t, replyError("HELLO?"), ErrUnexpectedReply)

	se = &ServerError{Reply: "ERR something new"}
	assert.Nil(t, se.Unwrap())
	assert.Contains(t, se.Error(), "ERR something new")
}
