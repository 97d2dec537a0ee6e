// Package bufpool recycles fixed-size byte buffers for streaming file bodies
// between sockets and storage.
package bufpool

import (
	"io"
	"sync"
)

// DefaultSize is the buffer size used by the package-level pool.
const DefaultSize = 32 << 10

// Pool hands out buffers of a single size. Buffers with a different capacity
// are dropped on Put.
type Pool struct {
	size int
	pool sync.Pool
}

// New returns a Pool of size-byte buffers. A non-positive size selects
// DefaultSize.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	p := &Pool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Size returns the length of buffers returned by Get.
func (p *Pool) Size() int { return p.size }

// Get returns a buffer of length Size.
func (p *Pool) Get() *[]byte {
	bp := p.pool.Get().(*[]byte)
	*bp = (*bp)[:p.size]
	return bp
}

// Put returns bp to the pool.
func (p *Pool) Put(bp *[]byte) {
	if bp == nil || cap(*bp) != p.size {
		return
	}
	p.pool.Put(bp)
}

// Copy is io.CopyBuffer with a pooled buffer.
func (p *Pool) Copy(dst io.Writer, src io.Reader) (int64, error) {
	bp := p.Get()
	defer p.Put(bp)
	return io.CopyBuffer(dst, src, *bp)
}

var defaultPool = New(DefaultSize)

// Get returns a buffer from the default pool.
func Get() *[]byte { return defaultPool.Get() }

// Put returns a buffer to the default pool.
func Put(bp *[]byte) { defaultPool.Put(bp) }

// Copy copies src to dst through a buffer from the default pool.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	return defaultPool.Copy(dst, src)
}
