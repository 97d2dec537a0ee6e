// Package badger stores objects in an embedded BadgerDB database.
//
// Each object occupies two keys: "o/<name>" holds the bytes and "m/<name>"
// holds the modification time. Both are written in one transaction when the
// object writer is closed, so readers see either the old or the new object.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/fxd/pkg/store"
)

// DefaultMaxObjectSize bounds objects when Config.MaxObjectSize is zero.
const DefaultMaxObjectSize = 256 << 20

const (
	prefixObject = "o/"
	prefixMeta   = "m/"
)

// Config configures a badger store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `mapstructure:"path"`

	// InMemory runs badger without touching disk.
	InMemory bool `mapstructure:"in_memory"`

	// MaxObjectSize bounds a single object.
	MaxObjectSize int64 `mapstructure:"max_object_size"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// Store implements store.Store on BadgerDB.
type Store struct {
	db    *badgerdb.DB
	limit int64
}

var _ store.Store = (*Store)(nil)

// New opens the database described by cfg.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, errors.New("badger store: path is required")
	}

	opts := badgerdb.DefaultOptions(cfg.Path).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(badgerLogger{})
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger store: open %q: %w", cfg.Path, err)
	}

	limit := cfg.MaxObjectSize
	if limit <= 0 {
		limit = DefaultMaxObjectSize
	}
	return &Store{db: db, limit: limit}, nil
}

func objectKey(name string) []byte { return []byte(prefixObject + name) }
func metaKey(name string) []byte   { return []byte(prefixMeta + name) }

func (s *Store) check(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return store.ErrClosed
	}
	return store.ValidateName(name)
}

// Open implements store.Store. The object is copied out of the transaction
// so the reader stays valid after the lock is released.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(objectKey(name))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", store.ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Create implements store.Store. Bytes are buffered and committed on Close.
func (s *Store) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}
	return &writer{store: s, name: name}, nil
}

// Stat implements store.Store.
func (s *Store) Stat(ctx context.Context, name string) (store.Info, error) {
	if err := s.check(ctx, name); err != nil {
		return store.Info{}, err
	}

	info := store.Info{Name: name}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(objectKey(name))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", store.ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		info.Size = item.ValueSize()

		meta, err := txn.Get(metaKey(name))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return meta.Value(func(val []byte) error {
			if len(val) == 8 {
				info.ModTime = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Info{}, err
		}
		return store.Info{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return info, nil
}

// Healthcheck verifies the database accepts read transactions.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return store.ErrClosed
	}
	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Type implements store.Store.
func (s *Store) Type() string { return "badger" }

// Close closes the database.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func (s *Store) commit(name string, data []byte) error {
	var mtime [8]byte
	binary.BigEndian.PutUint64(mtime[:], uint64(time.Now().UnixNano()))

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(objectKey(name), data); err != nil {
			return fmt.Errorf("failed to store %s: %w", name, err)
		}
		return txn.Set(metaKey(name), mtime[:])
	})
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
	room := w.store.limit - int64(w.buf.Len())
	if int64(len(p)) > room {
		n, _ := w.buf.Write(p[:max(room, 0)])
		return n, fmt.Errorf("%w: %s exceeds %d bytes", store.ErrTooLarge, w.name, w.store.limit)
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	data := w.buf.Bytes()
	if data == nil {
		data = []byte{}
	}
	return w.store.commit(w.name, data)
}
