package lock

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryReturnsSameInstance(t *testing.T) {
	r := NewRegistry(nil)

	a := r.Get("report.csv")
	b := r.Get("report.csv")
	c := r.Get("other.csv")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "report.csv", a.Name())
	assert.Equal(t, 2, r.Len())
}

func TestRegistryConcurrentFirstTouch(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 64
	got := make([]*FileLock, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			got[i] = r.Get("race.txt")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistryLookupAndNames(t *testing.T) {
	r := NewRegistry(nil)

	_, ok := r.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len(), "Lookup must not create entries")

	for i := 3; i > 0; i-- {
		r.Get(fmt.Sprintf("f%d", i))
	}
	l, ok := r.Lookup("f2")
	assert.True(t, ok)
	assert.Equal(t, "f2", l.Name())

	assert.Equal(t, []string{"f1", "f2", "f3"}, r.Names())
}

func TestRegistryKeepsLocksAfterRelease(t *testing.T) {
	r := NewRegistry(nil)
	l := r.Get("a")
	h := l.TryAcquireExclusive()
	h.Release()

	assert.Same(t, l, r.Get("a"))
}
