package store

import (
	"context"
	"errors"
	"io"
	"time"
)

// Operation names passed to Metrics.
const (
	OpOpen   = "open"
	OpCreate = "create"
	OpStat   = "stat"
	OpRead   = "read"
	OpWrite  = "write"
)

// Metrics observes store calls. Implementations must be safe for concurrent
// use.
type Metrics interface {
	// ObserveOperation records one call. err is nil on success.
	ObserveOperation(storeType, op string, d time.Duration, err error)

	// ObserveBytes records bytes moved by a finished reader or writer.
	ObserveBytes(storeType, op string, n int64)
}

// WithMetrics wraps s so that every call is reported to m. A nil m returns s
// unchanged.
func WithMetrics(s Store, m Metrics) Store {
	if m == nil {
		return s
	}
	return &instrumented{Store: s, metrics: m}
}

type instrumented struct {
	Store
	metrics Metrics
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	// A missing object is a normal answer, not a backend failure.
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveOperation(s.Type(), op, time.Since(start), err)
}

func (s *instrumented) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.Store.Open(ctx, name)
	s.observe(OpOpen, start, err)
	if err != nil {
		return nil, err
	}
	return &countingReader{ReadCloser: rc, parent: s, start: time.Now()}, nil
}

func (s *instrumented) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	start := time.Now()
	wc, err := s.Store.Create(ctx, name)
	s.observe(OpCreate, start, err)
	if err != nil {
		return nil, err
	}
	return &countingWriter{WriteCloser: wc, parent: s, start: time.Now()}, nil
}

func (s *instrumented) Stat(ctx context.Context, name string) (Info, error) {
	start := time.Now()
	info, err := s.Store.Stat(ctx, name)
	s.observe(OpStat, start, err)
	return info, err
}

type countingReader struct {
	io.ReadCloser
	parent *instrumented
	start  time.Time
	n      int64
	err    error
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.n += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = err
	}
	return n, err
}

func (r *countingReader) Close() error {
	err := r.ReadCloser.Close()
	if r.err == nil {
		r.err = err
	}
	r.parent.observe(OpRead, r.start, r.err)
	r.parent.metrics.ObserveBytes(r.parent.Type(), OpRead, r.n)
	return err
}

type countingWriter struct {
	io.WriteCloser
	parent *instrumented
	start  time.Time
	n      int64
	err    error
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.WriteCloser.Write(p)
	w.n += int64(n)
	if err != nil && w.err == nil {
		w.err = err
	}
	return n, err
}

func (w *countingWriter) Close() error {
	err := w.WriteCloser.Close()
	if w.err == nil {
		w.err = err
	}
	w.parent.observe(OpWrite, w.start, w.err)
	w.parent.metrics.ObserveBytes(w.parent.Type(), OpWrite, w.n)
	return err
}
