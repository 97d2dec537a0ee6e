// Package store defines the object storage used by the transfer server.
//
// A Store holds flat, named byte objects directly under one root: there are
// no directories. Callers serialize access per name (the lock package does
// this for the server); implementations only need to be safe for concurrent
// use across different names.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the named object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidName is returned for names that are empty, contain a path
	// separator, or are "." / "..".
	ErrInvalidName = errors.New("invalid object name")

	// ErrTooLarge is returned by a writer once the object exceeds the
	// backend's size limit.
	ErrTooLarge = errors.New("object too large")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Info describes a stored object.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is a flat object store.
type Store interface {
	// Open returns a reader over the full contents of name, or ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Create returns a writer that replaces the contents of name. Bytes
	// written before an error are kept: Close always commits whatever was
	// written.
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// Stat returns metadata for name, or ErrNotFound.
	Stat(ctx context.Context, name string) (Info, error)

	// Healthcheck reports whether the backend can serve requests.
	Healthcheck(ctx context.Context) error

	// Type names the backend ("filesystem", "memory", "badger").
	Type() string

	Close() error
}

// ValidateName checks that name addresses an object directly under the root.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
