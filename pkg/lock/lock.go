// Package lock provides per-file reader/writer locks for the transfer server.
//
// Every filename maps to exactly one FileLock for the lifetime of a Registry.
// Readers share the lock; a writer holds it exclusively. Writers acquire by
// polling (see FileLock.AcquireExclusive) so that the caller can report
// contention to its client between attempts.
package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Mode is the access mode a lock is held in.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

// DefaultRetryInterval is the pause between exclusive try-acquire attempts.
const DefaultRetryInterval = 200 * time.Millisecond

// FileLock guards one filename. The zero value is not usable; obtain
// instances from a Registry.
type FileLock struct {
	name    string
	mu      sync.RWMutex
	readers atomic.Int32
	writer  atomic.Bool
	metrics *Metrics
}

func newFileLock(name string, m *Metrics) *FileLock {
	return &FileLock{name: name, metrics: m}
}

// Name returns the filename this lock guards.
func (l *FileLock) Name() string { return l.name }

// Readers returns the number of current shared holders.
func (l *FileLock) Readers() int { return int(l.readers.Load()) }

// Writer reports whether the lock is held exclusively.
func (l *FileLock) Writer() bool { return l.writer.Load() }

// Held is an acquired lock. Release is safe to call more than once; only the
// first call unlocks.
type Held struct {
	lock     *FileLock
	mode     Mode
	acquired time.Time
	once     sync.Once
}

// Mode returns the mode the lock was acquired in.
func (h *Held) Mode() Mode { return h.mode }

// Release unlocks and records the hold duration.
func (h *Held) Release() {
	h.once.Do(func() {
		l := h.lock
		if h.mode == Exclusive {
			l.writer.Store(false)
			l.mu.Unlock()
		} else {
			l.readers.Add(-1)
			l.mu.RUnlock()
		}
		l.metrics.ObserveHold(h.mode, time.Since(h.acquired))
		l.metrics.HeldDelta(h.mode, -1)
	})
}

func (l *FileLock) held(mode Mode, start time.Time) *Held {
	now := time.Now()
	if mode == Exclusive {
		l.writer.Store(true)
	} else {
		l.readers.Add(1)
	}
	l.metrics.ObserveAcquire(mode, true)
	l.metrics.ObserveWait(mode, now.Sub(start))
	l.metrics.HeldDelta(mode, 1)
	return &Held{lock: l, mode: mode, acquired: now}
}

// AcquireShared blocks until the lock can be held in shared mode.
func (l *FileLock) AcquireShared() *Held {
	start := time.Now()
	l.mu.RLock()
	return l.held(Shared, start)
}

// TryAcquireShared acquires in shared mode without blocking. It returns nil
// when a writer holds the lock.
func (l *FileLock) TryAcquireShared() *Held {
	if !l.mu.TryRLock() {
		l.metrics.ObserveAcquire(Shared, false)
		return nil
	}
	return l.held(Shared, time.Now())
}

// TryAcquireExclusive acquires in exclusive mode without blocking. It returns
// nil when any other holder is present.
func (l *FileLock) TryAcquireExclusive() *Held {
	if !l.mu.TryLock() {
		l.metrics.ObserveAcquire(Exclusive, false)
		return nil
	}
	return l.held(Exclusive, time.Now())
}

// BusyFunc is called after each failed exclusive attempt, before waiting.
// attempt starts at 1. Returning an error aborts acquisition.
type BusyFunc func(attempt int) error

// AcquireExclusive polls TryLock every interval until it succeeds, ctx is
// done, or onBusy fails. Waiters are not queued: whichever poller wins the
// race after a release gets the lock.
func (l *FileLock) AcquireExclusive(ctx context.Context, interval time.Duration, onBusy BusyFunc) (*Held, error) {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	start := time.Now()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		if l.mu.TryLock() {
			return l.held(Exclusive, start), nil
		}
		l.metrics.ObserveAcquire(Exclusive, false)
		l.metrics.ObserveBusy()

		if onBusy != nil {
			if err := onBusy(attempt); err != nil {
				return nil, err
			}
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
