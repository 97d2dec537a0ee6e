package adapter

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// holdFactory creates handlers that block reading until the peer or the
// server closes the connection.
type holdFactory struct {
	served atomic.Int32
}

type holdHandler struct {
	conn *TrackedConn
	f    *holdFactory
}

func (f *holdFactory) NewConnection(conn *TrackedConn) ConnectionHandler {
	return &holdHandler{conn: conn, f: f}
}

func (h *holdHandler) Serve(ctx context.Context) {
	h.f.served.Add(1)
	_, _ = h.conn.Write([]byte("READY\n"))
	_, _ = io.Copy(io.Discard, h.conn)
}

type countingMetrics struct {
	accepted, closed, forced atomic.Int32
	active                   atomic.Int32
}

func (m *countingMetrics) RecordConnectionAccepted()    { m.accepted.Add(1) }
func (m *countingMetrics) RecordConnectionClosed()      { m.closed.Add(1) }
func (m *countingMetrics) RecordConnectionForceClosed() { m.forced.Add(1) }
func (m *countingMetrics) SetActiveConnections(n int32) { m.active.Store(n) }

func testConfig() BaseConfig {
	return BaseConfig{
		BindAddress:           "127.0.0.1",
		Port:                  0,
		ShutdownTimeout:       2 * time.Second,
		ShutdownNotice:        []byte("SERVER_SHUTDOWN\n"),
		ShutdownNoticeTimeout: 500 * time.Millisecond,
	}
}

func startAdapter(t *testing.T, cfg BaseConfig, f ConnectionFactory) (*BaseAdapter, context.CancelFunc, <-chan error) {
	t.Helper()
	b := NewBaseAdapter(cfg, "TEST")
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.ServeWithFactory(ctx, f) }()
	require.NotEmpty(t, b.ListenerAddr())
	t.Cleanup(cancel)
	return b, cancel, errCh
}

func dialReady(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	r := bufio.NewReader(c)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "READY\n", line)
	return c, r
}

func TestShutdownBroadcastsToAllConnections(t *testing.T) {
	f := &holdFactory{}
	m := &countingMetrics{}
	cfg := testConfig()
	b := NewBaseAdapter(cfg, "TEST")
	b.Metrics = m

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.ServeWithFactory(ctx, f) }()
	addr := b.ListenerAddr()
	require.NotEmpty(t, addr)

	const n = 3
	readers := make([]*bufio.Reader, n)
	for i := range readers {
		_, readers[i] = dialReady(t, addr)
	}
	require.Eventually(t, func() bool { return b.Conns.Len() == n }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}

	for _, r := range readers {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "SERVER_SHUTDOWN\n", line)
		_, err = r.ReadByte()
		assert.Error(t, err)
	}

	assert.Equal(t, int32(0), b.ActiveConnections())
	assert.Equal(t, int32(n), m.accepted.Load())
	assert.Equal(t, int32(n), m.closed.Load())
	assert.Equal(t, int32(n), m.forced.Load())
	assert.Equal(t, int32(0), m.active.Load())

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err, "listener must be closed after shutdown")
}

func TestWorkerExitDeregisters(t *testing.T) {
	f := &holdFactory{}
	b, _, _ := startAdapter(t, testConfig(), f)

	c, _ := dialReady(t, b.ListenerAddr())
	require.Eventually(t, func() bool { return b.Conns.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool {
		return b.Conns.Len() == 0 && b.ActiveConnections() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMaxConnections(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	f := &holdFactory{}
	b, _, _ := startAdapter(t, cfg, f)
	addr := b.ListenerAddr()

	first, _ := dialReady(t, addr)

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err) // kernel backlog still completes the handshake
	defer second.Close()

	r := bufio.NewReader(second)
	_ = second.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, err = r.ReadString('\n')
	assert.Error(t, err, "second connection must not be served while the first holds the slot")

	require.NoError(t, first.Close())
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "READY\n", line)
}

func TestStopIsIdempotent(t *testing.T) {
	b, _, errCh := startAdapter(t, testConfig(), &holdFactory{})
	dialReady(t, b.ListenerAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Stop(ctx))
	require.NoError(t, b.Stop(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestStopBeforeServe(t *testing.T) {
	b := NewBaseAdapter(testConfig(), "TEST")
	require.NoError(t, b.Stop(nil)) //nolint:staticcheck

	errCh := make(chan error, 1)
	go func() { errCh <- b.ServeWithFactory(context.Background(), &holdFactory{}) }()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept running after an earlier Stop")
	}
}

func TestBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testConfig()
	cfg.Port = occupied.Addr().(*net.TCPAddr).Port
	b := NewBaseAdapter(cfg, "TEST")

	err = b.ServeWithFactory(context.Background(), &holdFactory{})
	assert.Error(t, err)
	assert.Empty(t, b.ListenerAddr())
}

func TestAccessors(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 9000
	b := NewBaseAdapter(cfg, "FXD")
	assert.Equal(t, 9000, b.Port())
	assert.Equal(t, "FXD", b.Protocol())
}
