package xfer

import (
	"bufio"
	"context"
	"io"
	"maps"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/fxd/pkg/protocol"
	"github.com/marmos91/fxd/pkg/store"
	"github.com/marmos91/fxd/pkg/store/memory"
	"github.com/stretchr/testify/require"
)

const ioTimeout = 5 * time.Second

type testServer struct {
	*Adapter
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func testConfig() Config {
	return Config{
		BindAddress:           "127.0.0.1",
		UseEphemeralPort:      true,
		BusyRetryInterval:     20 * time.Millisecond,
		ShutdownTimeout:       3 * time.Second,
		ShutdownNoticeTimeout: 500 * time.Millisecond,
	}
}

func startServer(t *testing.T, cfg Config, st store.Store, m *recordingMetrics) *testServer {
	t.Helper()
	if st == nil {
		st = memory.New(memory.Config{})
	}
	var a *Adapter
	if m != nil {
		a = New(cfg, st, nil, m)
	} else {
		a = New(cfg, st, nil, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ts := &testServer{Adapter: a, cancel: cancel, done: make(chan error, 1)}
	go func() { ts.done <- a.Serve(ctx) }()

	ts.addr = a.ListenerAddr()
	require.NotEmpty(t, ts.addr)

	t.Cleanup(func() {
		cancel()
		select {
		case <-ts.done:
		case <-time.After(ioTimeout):
			t.Error("server did not stop")
		}
	})
	return ts
}

// shutdown cancels Serve and returns its result.
func (ts *testServer) shutdown(t *testing.T) error {
	t.Helper()
	ts.cancel()
	select {
	case err := <-ts.done:
		ts.done <- err // keep Cleanup happy
		return err
	case <-time.After(ioTimeout):
		t.Fatal("server did not stop")
		return nil
	}
}

// peer is a raw protocol client.
type peer struct {
	t    *testing.T
	conn *net.TCPConn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *peer {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, c.SetDeadline(time.Now().Add(ioTimeout)))
	t.Cleanup(func() { _ = c.Close() })
	return &peer{t: t, conn: c.(*net.TCPConn), r: bufio.NewReader(c)}
}

// connect dials and completes the handshake.
func connect(t *testing.T, addr string) *peer {
	t.Helper()
	p := dial(t, addr)
	p.send("HELLO tester")
	p.expect(protocol.MsgOK)
	return p
}

func (p *peer) send(line string) {
	p.t.Helper()
	_, err := io.WriteString(p.conn, line+"\n")
	require.NoError(p.t, err)
}

func (p *peer) sendRaw(data []byte) {
	p.t.Helper()
	_, err := p.conn.Write(data)
	require.NoError(p.t, err)
}

func (p *peer) closeWrite() {
	p.t.Helper()
	require.NoError(p.t, p.conn.CloseWrite())
}

func (p *peer) line() string {
	p.t.Helper()
	s, err := p.r.ReadString('\n')
	require.NoError(p.t, err, "partial line %q", s)
	return strings.TrimSuffix(s, "\n")
}

func (p *peer) expect(want string) {
	p.t.Helper()
	require.Equal(p.t, want, p.line())
}

// expectAfterBusy skips NOTIFY BUSY lines for name and returns how many it
// saw before want arrived.
func (p *peer) expectAfterBusy(name, want string) int {
	p.t.Helper()
	busy := 0
	for {
		l := p.line()
		if l == protocol.NotifyBusy(name) {
			busy++
			continue
		}
		require.Equal(p.t, want, l)
		return busy
	}
}

// expectClosed asserts that the server closed the stream.
func (p *peer) expectClosed() {
	p.t.Helper()
	rest, err := io.ReadAll(p.r)
	require.NoError(p.t, err)
	require.Empty(p.t, rest)
}

func (p *peer) readAll() []byte {
	p.t.Helper()
	data, err := io.ReadAll(p.r)
	require.NoError(p.t, err)
	return data
}

// write performs a full uncontended WRITE exchange.
func write(t *testing.T, addr, name string, data []byte) {
	t.Helper()
	p := connect(t, addr)
	p.send("WRITE " + name)
	p.expectAfterBusy(name, protocol.OKWrite(name))
	p.sendRaw(data)
	p.closeWrite()
	p.expect(protocol.MsgFileReceived)
	p.expectClosed()
}

// read performs a full READ exchange.
func read(t *testing.T, addr, name string) []byte {
	t.Helper()
	p := connect(t, addr)
	p.send("READ " + name)
	return p.readAll()
}

type recordingMetrics struct {
	mu         sync.Mutex
	accepted   int
	closed     int
	forced     int
	handshakes map[bool]int
	requests   map[string]int // "VERB outcome"
	bytes      map[string]int64
	busy       int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		handshakes: make(map[bool]int),
		requests:   make(map[string]int),
		bytes:      make(map[string]int64),
	}
}

func (m *recordingMetrics) lock() func() { m.mu.Lock(); return m.mu.Unlock }

func (m *recordingMetrics) RecordConnectionAccepted()    { defer m.lock()(); m.accepted++ }
func (m *recordingMetrics) RecordConnectionClosed()      { defer m.lock()(); m.closed++ }
func (m *recordingMetrics) RecordConnectionForceClosed() { defer m.lock()(); m.forced++ }
func (m *recordingMetrics) SetActiveConnections(int32)   {}
func (m *recordingMetrics) RecordHandshake(ok bool)      { defer m.lock()(); m.handshakes[ok]++ }
func (m *recordingMetrics) RecordBusyNotification()      { defer m.lock()(); m.busy++ }

func (m *recordingMetrics) RecordRequest(verb, outcome string, _ time.Duration) {
	defer m.lock()()
	m.requests[verb+" "+outcome]++
}

func (m *recordingMetrics) RecordBytes(verb string, n int64) {
	defer m.lock()()
	m.bytes[verb] += n
}

func (m *recordingMetrics) snapshot() recordingMetrics {
	defer m.lock()()
	return recordingMetrics{
		accepted: m.accepted, closed: m.closed, forced: m.forced, busy: m.busy,
		handshakes: maps.Clone(m.handshakes), requests: maps.Clone(m.requests), bytes: maps.Clone(m.bytes),
	}
}
