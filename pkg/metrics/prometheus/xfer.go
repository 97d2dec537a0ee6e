// Package prometheus implements the metrics interfaces on top of the global
// registry from the parent package.
package prometheus

import (
	"time"

	"github.com/marmos91/fxd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fxd"

type xferMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	handshakes             *prometheus.CounterVec
	requests               *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	bytes                  *prometheus.CounterVec
	busyNotifications      prometheus.Counter
}

// NewXferMetrics creates Prometheus-backed adapter metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewXferMetrics() metrics.XferMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	f := promauto.With(metrics.GetRegistry())

	return &xferMetrics{
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connections", Name: "accepted_total",
			Help: "Connections accepted",
		}),
		connectionsClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connections", Name: "closed_total",
			Help: "Connections whose worker finished",
		}),
		connectionsForceClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connections", Name: "force_closed_total",
			Help: "Connections closed by the shutdown broadcast",
		}),
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "connections", Name: "active",
			Help: "Connections currently being served",
		}),
		handshakes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "handshakes_total",
			Help: "Handshakes by result",
		}, []string{"result"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total",
			Help: "Requests by verb and outcome",
		}, []string{"verb", "outcome"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "request_duration_seconds",
			Help:    "Time from command line to connection close, lock wait included",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"verb"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payload_bytes_total",
			Help: "Payload bytes sent (READ) or received (WRITE)",
		}, []string{"verb"}),
		busyNotifications: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "busy_notifications_total",
			Help: "NOTIFY BUSY lines sent to waiting writers",
		}),
	}
}

func (m *xferMetrics) RecordConnectionAccepted()    { m.connectionsAccepted.Inc() }
func (m *xferMetrics) RecordConnectionClosed()      { m.connectionsClosed.Inc() }
func (m *xferMetrics) RecordConnectionForceClosed() { m.connectionsForceClosed.Inc() }
func (m *xferMetrics) RecordBusyNotification()      { m.busyNotifications.Inc() }

func (m *xferMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *xferMetrics) RecordHandshake(accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.handshakes.WithLabelValues(result).Inc()
}

func (m *xferMetrics) RecordRequest(verb, outcome string, duration time.Duration) {
	if verb == "" {
		verb = "unknown"
	}
	m.requests.WithLabelValues(verb, outcome).Inc()
	m.requestDuration.WithLabelValues(verb).Observe(duration.Seconds())
}

func (m *xferMetrics) RecordBytes(verb string, n int64) {
	if n > 0 {
		m.bytes.WithLabelValues(verb).Add(float64(n))
	}
}
