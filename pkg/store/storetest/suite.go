// Package storetest provides a conformance suite every store.Store
// implementation must pass.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/fxd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest. Use t.TempDir and
// t.Cleanup for any resources.
type Factory func(t *testing.T) store.Store

// RunConformanceSuite runs every conformance test against factory.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, factory(t)) })
	t.Run("OpenMissing", func(t *testing.T) { testOpenMissing(t, factory(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory(t)) })
	t.Run("EmptyObject", func(t *testing.T) { testEmptyObject(t, factory(t)) })
	t.Run("BinaryContent", func(t *testing.T) { testBinaryContent(t, factory(t)) })
	t.Run("Stat", func(t *testing.T) { testStat(t, factory(t)) })
	t.Run("InvalidNames", func(t *testing.T) { testInvalidNames(t, factory(t)) })
	t.Run("ConcurrentNames", func(t *testing.T) { testConcurrentNames(t, factory(t)) })
	t.Run("CancelledContext", func(t *testing.T) { testCancelledContext(t, factory(t)) })
	t.Run("Healthcheck", func(t *testing.T) { testHealthcheck(t, factory(t)) })
}

// Put writes data to name and closes the writer.
func Put(t *testing.T, s store.Store, name string, data []byte) {
	t.Helper()
	w, err := s.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

// Get reads the full contents of name.
func Get(t *testing.T, s store.Store, name string) []byte {
	t.Helper()
	r, err := s.Open(context.Background(), name)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func testRoundTrip(t *testing.T, s store.Store) {
	Put(t, s, "notes.txt", []byte("hello fxd"))
	assert.Equal(t, "hello fxd", string(Get(t, s, "notes.txt")))
}

func testOpenMissing(t *testing.T, s store.Store) {
	_, err := s.Open(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Stat(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testOverwrite(t *testing.T, s store.Store) {
	Put(t, s, "f", []byte("a much longer first version"))
	Put(t, s, "f", []byte("short"))
	assert.Equal(t, "short", string(Get(t, s, "f")))
}

func testEmptyObject(t *testing.T, s store.Store) {
	w, err := s.Create(context.Background(), "empty")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Empty(t, Get(t, s, "empty"))
	info, err := s.Stat(context.Background(), "empty")
	require.NoError(t, err)
	assert.Zero(t, info.Size)
}

func testBinaryContent(t *testing.T, s store.Store) {
	data := make([]byte, 300_000)
	for i := range data {
		data[i] = byte(i * 7)
	}

	w, err := s.Create(context.Background(), "blob.bin")
	require.NoError(t, err)
	for chunk := range slices(data, 4096) {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.True(t, bytes.Equal(data, Get(t, s, "blob.bin")))
}

func slices(data []byte, size int) func(func([]byte) bool) {
	return func(yield func([]byte) bool) {
		for len(data) > 0 {
			n := min(size, len(data))
			if !yield(data[:n]) {
				return
			}
			data = data[n:]
		}
	}
}

func testStat(t *testing.T, s store.Store) {
	before := time.Now().Add(-time.Second)
	Put(t, s, "sized", []byte("0123456789"))

	info, err := s.Stat(context.Background(), "sized")
	require.NoError(t, err)
	assert.Equal(t, "sized", info.Name)
	assert.Equal(t, int64(10), info.Size)
	assert.True(t, info.ModTime.After(before), "mod time %v not after %v", info.ModTime, before)
}

func testInvalidNames(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../escape"} {
		_, err := s.Open(ctx, name)
		assert.ErrorIs(t, err, store.ErrInvalidName, "Open(%q)", name)

		_, err = s.Create(ctx, name)
		assert.ErrorIs(t, err, store.ErrInvalidName, "Create(%q)", name)
	}
}

func testConcurrentNames(t *testing.T, s store.Store) {
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("obj-%d", i)
			w, err := s.Create(context.Background(), name)
			if err != nil {
				errs <- err
				return
			}
			if _, err := w.Write([]byte(name)); err != nil {
				errs <- err
			}
			if err := w.Close(); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	for i := 0; i < 32; i++ {
		name := fmt.Sprintf("obj-%d", i)
		assert.Equal(t, name, string(Get(t, s, name)))
	}
}

func testCancelledContext(t *testing.T, s store.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Open(ctx, "x")
	assert.True(t, errors.Is(err, context.Canceled))
	_, err = s.Create(ctx, "x")
	assert.True(t, errors.Is(err, context.Canceled))
}

func testHealthcheck(t *testing.T, s store.Store) {
	assert.NoError(t, s.Healthcheck(context.Background()))
	assert.NotEmpty(t, s.Type())
}
