package bufpool

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPut(t *testing.T) {
	p := New(1024)
	assert.Equal(t, 1024, p.Size())

	bp := p.Get()
	require.NotNil(t, bp)
	assert.Len(t, *bp, 1024)

	*bp = (*bp)[:10]
	p.Put(bp)

	again := p.Get()
	assert.Len(t, *again, 1024)
}

func TestPutForeignBuffer(t *testing.T) {
	p := New(64)
	foreign := make([]byte, 128)
	p.Put(&foreign)
	p.Put(nil)

	assert.Len(t, *p.Get(), 64)
}

func TestNewDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultSize, New(0).Size())
	assert.Equal(t, DefaultSize, New(-1).Size())
}

func TestCopy(t *testing.T) {
	payload := strings.Repeat("fxd", 50_000)

	var dst bytes.Buffer
	n, err := Copy(&dst, strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, dst.String())
}

type failingReader struct{ after int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("reset by peer")
	}
	n := min(len(p), f.after)
	f.after -= n
	return n, nil
}

func TestCopyPropagatesErrors(t *testing.T) {
	p := New(8)
	n, err := p.Copy(io.Discard, &failingReader{after: 20})
	assert.EqualError(t, err, "reset by peer")
	assert.Equal(t, int64(20), n)
}

func TestConcurrentUse(t *testing.T) {
	p := New(256)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bp := p.Get()
				(*bp)[0] = byte(i)
				p.Put(bp)
			}
		}(i)
	}
	wg.Wait()
}
