// Package memory keeps objects in process memory. Contents are lost on
// restart; intended for tests and throwaway servers.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/marmos91/fxd/pkg/store"
)

// Config configures a memory store.
type Config struct {
	// MaxObjectSize bounds a single object. Zero means unlimited.
	MaxObjectSize int64 `mapstructure:"max_object_size"`
}

type object struct {
	data    []byte
	modTime time.Time
}

// Store implements store.Store on a map.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	limit   int64
	closed  bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty memory store.
func New(cfg Config) *Store {
	return &Store{
		objects: make(map[string]object),
		limit:   cfg.MaxObjectSize,
	}
}

func (s *Store) check(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return store.ValidateName(name)
}

// Open implements store.Store.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	obj, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	// Committed slices are never mutated, so readers share them.
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Create implements store.Store. The object is replaced when the writer is
// closed.
func (s *Store) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, store.ErrClosed
	}
	return &writer{store: s, name: name}, nil
}

// Stat implements store.Store.
func (s *Store) Stat(ctx context.Context, name string) (store.Info, error) {
	if err := s.check(ctx, name); err != nil {
		return store.Info{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	if !ok {
		return store.Info{}, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return store.Info{Name: name, Size: int64(len(obj.data)), ModTime: obj.modTime}, nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Healthcheck implements store.Store.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// Type implements store.Store.
func (s *Store) Type() string { return "memory" }

// Close drops all objects.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.objects = make(map[string]object)
	return nil
}

func (s *Store) commit(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.objects[name] = object{data: data, modTime: time.Now()}
	return nil
}

type writer struct {
	store *Store
	name  string
	buf   bytes.Buffer
	done  bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, store.ErrClosed
	}
	if limit := w.store.limit; limit > 0 {
		room := limit - int64(w.buf.Len())
		if int64(len(p)) > room {
			n, _ := w.buf.Write(p[:max(room, 0)])
			return n, fmt.Errorf("%w: %s exceeds %d bytes", store.ErrTooLarge, w.name, limit)
		}
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.store.commit(w.name, bytes.Clone(w.buf.Bytes()))
}
