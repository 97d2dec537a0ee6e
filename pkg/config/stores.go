package config

import (
	"context"
	"fmt"

	"github.com/marmos91/fxd/internal/logger"
	"github.com/marmos91/fxd/pkg/store"
	"github.com/marmos91/fxd/pkg/store/badger"
	"github.com/marmos91/fxd/pkg/store/filesystem"
	"github.com/marmos91/fxd/pkg/store/memory"
)

// CreateStore opens the storage backend described by cfg and checks that it
// can serve requests. A non-nil m wraps the store with operation metrics.
func CreateStore(ctx context.Context, cfg StorageConfig, m store.Metrics) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.Type {
	case "filesystem", "":
		st, err = filesystem.New(filesystem.Config{Path: cfg.Path})
	case "memory":
		st = memory.New(memory.Config{MaxObjectSize: cfg.MaxObjectSize.Int64()})
	case "badger":
		st, err = badger.New(badger.Config{
			Path:          cfg.Path,
			MaxObjectSize: cfg.MaxObjectSize.Int64(),
			SyncWrites:    cfg.SyncWrites,
		})
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Healthcheck(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("%s store healthcheck failed: %w", st.Type(), err)
	}

	logger.Info("Storage ready", logger.KeyStore, st.Type(), logger.KeyPath, cfg.Path)

	return store.WithMetrics(st, m), nil
}
