package prometheus

import (
	"github.com/marmos91/fxd/pkg/lock"
	"github.com/marmos91/fxd/pkg/metrics"
)

// NewLockMetrics registers file lock collectors with the global registry.
//
// Returns nil if metrics are not enabled; a nil *lock.Metrics is a no-op.
func NewLockMetrics() *lock.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return lock.NewMetrics(metrics.GetRegistry())
}
