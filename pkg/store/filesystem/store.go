// Package filesystem stores objects as plain files in a single directory.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/marmos91/fxd/internal/logger"
	"github.com/marmos91/fxd/pkg/store"
)

// Config configures a filesystem store.
type Config struct {
	// Path is the storage root. It is created if missing.
	Path string `mapstructure:"path"`

	// FileMode is used for newly created files. Defaults to 0644.
	FileMode os.FileMode `mapstructure:"file_mode"`
}

// Store implements store.Store on a local directory.
type Store struct {
	root   string
	mode   os.FileMode
	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the directory at cfg.Path.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("filesystem store: path is required")
	}
	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("filesystem store: resolve %q: %w", cfg.Path, err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("filesystem store: create root: %w", err)
	}
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("filesystem store: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("filesystem store: %s is not a directory", root)
	}

	mode := cfg.FileMode
	if mode == 0 {
		mode = 0644
	}

	logger.Debug("filesystem store ready", logger.KeyPath, root)
	return &Store{root: root, mode: mode}, nil
}

// Root returns the absolute storage directory.
func (s *Store) Root() string { return s.root }

func (s *Store) path(name string) (string, error) {
	if s.closed.Load() {
		return "", store.ErrClosed
	}
	if err := store.ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}

// Open implements store.Store. Directories under the root read as missing.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, mapErr(name, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !st.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return f, nil
}

// Create implements store.Store. The file is truncated immediately.
func (s *Store) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.mode)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return f, nil
}

// Stat implements store.Store.
func (s *Store) Stat(ctx context.Context, name string) (store.Info, error) {
	if err := ctx.Err(); err != nil {
		return store.Info{}, err
	}
	p, err := s.path(name)
	if err != nil {
		return store.Info{}, err
	}

	st, err := os.Stat(p)
	if err != nil {
		return store.Info{}, mapErr(name, err)
	}
	if !st.Mode().IsRegular() {
		return store.Info{}, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return store.Info{Name: name, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// Healthcheck verifies the root is still a writable directory.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return store.ErrClosed
	}
	f, err := os.CreateTemp(s.root, ".fxd-health-*")
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Type implements store.Store.
func (s *Store) Type() string { return "filesystem" }

// Close implements store.Store.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func mapErr(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return fmt.Errorf("open %s: %w", name, err)
}
