package prometheus

import (
	"time"

	"github.com/marmos91/fxd/pkg/metrics"
	"github.com/marmos91/fxd/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type storeMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
}

// NewStoreMetrics creates Prometheus-backed storage metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStoreMetrics() store.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	f := promauto.With(metrics.GetRegistry())

	return &storeMetrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "operations_total",
			Help: "Store operations by backend, operation and status",
		}, []string{"store_type", "operation", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "operation_duration_seconds",
			Help: "Store operation latency; read and write span the whole stream",
			Buckets: []float64{
				0.0001, // 100us - memory lookups
				0.001,
				0.01,
				0.1,
				1,
				10,
				60, // large uploads
			},
		}, []string{"store_type", "operation"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "bytes_total",
			Help: "Bytes read from or written to the store",
		}, []string{"store_type", "operation"}),
	}
}

func (m *storeMetrics) ObserveOperation(storeType, op string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(storeType, op, status).Inc()
	m.duration.WithLabelValues(storeType, op).Observe(d.Seconds())
}

func (m *storeMetrics) ObserveBytes(storeType, op string, n int64) {
	if n > 0 {
		m.bytes.WithLabelValues(storeType, op).Add(float64(n))
	}
}
