package lock

import (
	"slices"
	"sync"
)

// Registry maps filenames to their FileLock. Entries are created on first
// use and never removed, so every caller asking for the same name gets the
// same lock for as long as the Registry lives.
type Registry struct {
	mu      sync.Mutex
	locks   map[string]*FileLock
	metrics *Metrics
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *Metrics) *Registry {
	return &Registry{
		locks:   make(map[string]*FileLock),
		metrics: m,
	}
}

// Get returns the lock for name, creating it if absent.
func (r *Registry) Get(name string) *FileLock {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.locks[name]; ok {
		return l
	}
	l := newFileLock(name, r.metrics)
	r.locks[name] = l
	r.metrics.SetRegistered(len(r.locks))
	return l
}

// Lookup returns the lock for name without creating it.
func (r *Registry) Lookup(name string) (*FileLock, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	return l, ok
}

// Len returns the number of filenames ever locked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// Names returns every registered filename in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.locks))
	for name := range r.locks {
		names = append(names, name)
	}
	r.mu.Unlock()

	slices.Sort(names)
	return names
}
