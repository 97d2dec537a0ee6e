package adapter

import (
	"net"
	"sync"
	"time"
)

// TrackedConn is an accepted connection registered with a ConnRegistry.
// Writes are serialized so that a shutdown notice is never interleaved with
// a reply line written by the connection's own worker.
type TrackedConn struct {
	net.Conn
	id  string
	wmu sync.Mutex
}

// NewTrackedConn wraps c under the given connection ID.
func NewTrackedConn(id string, c net.Conn) *TrackedConn {
	return &TrackedConn{Conn: c, id: id}
}

// ID returns the server-assigned connection ID.
func (c *TrackedConn) ID() string { return c.id }

// Write implements io.Writer, holding the connection's write lock.
func (c *TrackedConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.Conn.Write(p)
}

// notify writes msg within timeout. The deadline is set before taking the
// write lock so that a worker stuck writing to a slow peer is released.
func (c *TrackedConn) notify(msg []byte, timeout time.Duration) error {
	if timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	_, err := c.Write(msg)
	return err
}

// ConnRegistry is the set of open connections. A connection is a member from
// Add until Remove, or until Shutdown removes every member at once. After
// Shutdown no connection can be added.
type ConnRegistry struct {
	mu     sync.Mutex
	conns  map[string]*TrackedConn
	closed bool
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{conns: make(map[string]*TrackedConn)}
}

// Add registers c. It returns false once Shutdown has run; the caller then
// owns notifying and closing c itself.
func (r *ConnRegistry) Add(c *TrackedConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.conns[c.id] = c
	return true
}

// Remove deregisters the connection with the given ID.
func (r *ConnRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// Len returns the number of registered connections.
func (r *ConnRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Closed reports whether Shutdown has run.
func (r *ConnRegistry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// ShutdownResult summarizes a Shutdown broadcast.
type ShutdownResult struct {
	Notified int // connections that accepted the notice
	Closed   int // connections force-closed
}

// Shutdown empties the registry, refuses further Adds, sends notice to every
// former member (each bounded by timeout) and closes them. Notices go out in
// parallel; Shutdown returns once every connection has been closed.
func (r *ConnRegistry) Shutdown(notice []byte, timeout time.Duration) ShutdownResult {
	r.mu.Lock()
	r.closed = true
	members := make([]*TrackedConn, 0, len(r.conns))
	for _, c := range r.conns {
		members = append(members, c)
	}
	clear(r.conns)
	r.mu.Unlock()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		notified int
	)
	for _, c := range members {
		wg.Add(1)
		go func(c *TrackedConn) {
			defer wg.Done()
			err := c.notify(notice, timeout)
			_ = c.Conn.Close()
			if err == nil {
				mu.Lock()
				notified++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	return ShutdownResult{Notified: notified, Closed: len(members)}
}
