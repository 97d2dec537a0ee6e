package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/fxd/pkg/store"
	"github.com/marmos91/fxd/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "files")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
		return newTestStore(t)
	})
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNewRejectsFileRoot(t *testing.T) {
	p := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(p, nil, 0644))

	_, err := New(Config{Path: p})
	assert.Error(t, err)
}

func TestFilesLandUnderRoot(t *testing.T) {
	s := newTestStore(t)
	storetest.Put(t, s, "a.txt", []byte("abc"))

	data, err := os.ReadFile(filepath.Join(s.Root(), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestDirectoryReadsAsMissing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "sub"), 0755))

	_, err := s.Open(context.Background(), "sub")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Stat(context.Background(), "sub")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Create(context.Background(), "sub")
	assert.Error(t, err)
}

func TestPartialWriteIsKept(t *testing.T) {
	s := newTestStore(t)
	storetest.Put(t, s, "f", []byte("old content that is long"))

	w, err := s.Create(context.Background(), "f")
	require.NoError(t, err)
	_, err = w.Write([]byte("part"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "part", string(storetest.Get(t, s, "f")))
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Open(context.Background(), "x")
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, s.Healthcheck(context.Background()), store.ErrClosed)
}
