package lock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values.
const (
	LabelMode   = "mode"
	LabelStatus = "status"

	StatusGranted = "granted"
	StatusBusy    = "busy"
)

// Metrics holds Prometheus collectors for file locks. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	acquireTotal    *prometheus.CounterVec
	busyTotal       prometheus.Counter
	waitDuration    *prometheus.HistogramVec
	holdDuration    *prometheus.HistogramVec
	heldGauge       *prometheus.GaugeVec
	registeredGauge prometheus.Gauge
}

// NewMetrics creates lock metrics and registers them with registry when it
// is non-nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fxd",
				Subsystem: "locks",
				Name:      "acquire_total",
				Help:      "Lock acquire attempts by mode and outcome",
			},
			[]string{LabelMode, LabelStatus},
		),
		busyTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fxd",
				Subsystem: "locks",
				Name:      "busy_retries_total",
				Help:      "Exclusive acquire attempts that found the file busy",
			},
		),
		waitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fxd",
				Subsystem: "locks",
				Name:      "wait_duration_seconds",
				Help:      "Time from first acquire attempt to grant",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.2, 0.5, 1, 5, 30, 120},
			},
			[]string{LabelMode},
		),
		holdDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fxd",
				Subsystem: "locks",
				Name:      "hold_duration_seconds",
				Help:      "Time a lock was held before release",
				Buckets:   []float64{0.001, 0.01, 0.1, 1, 5, 30, 120, 600},
			},
			[]string{LabelMode},
		),
		heldGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "fxd",
				Subsystem: "locks",
				Name:      "held",
				Help:      "Locks currently held by mode",
			},
			[]string{LabelMode},
		),
		registeredGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fxd",
				Subsystem: "locks",
				Name:      "registered",
				Help:      "Distinct filenames in the lock registry",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.acquireTotal,
			m.busyTotal,
			m.waitDuration,
			m.holdDuration,
			m.heldGauge,
			m.registeredGauge,
		)
	}
	return m
}

// ObserveAcquire counts an acquire attempt.
func (m *Metrics) ObserveAcquire(mode Mode, granted bool) {
	if m == nil {
		return
	}
	status := StatusGranted
	if !granted {
		status = StatusBusy
	}
	m.acquireTotal.WithLabelValues(mode.String(), status).Inc()
}

// ObserveBusy counts one busy retry of an exclusive acquire.
func (m *Metrics) ObserveBusy() {
	if m == nil {
		return
	}
	m.busyTotal.Inc()
}

// ObserveWait records how long an acquire waited.
func (m *Metrics) ObserveWait(mode Mode, d time.Duration) {
	if m == nil {
		return
	}
	m.waitDuration.WithLabelValues(mode.String()).Observe(d.Seconds())
}

// ObserveHold records how long a lock was held.
func (m *Metrics) ObserveHold(mode Mode, d time.Duration) {
	if m == nil {
		return
	}
	m.holdDuration.WithLabelValues(mode.String()).Observe(d.Seconds())
}

// HeldDelta adjusts the held gauge for mode.
func (m *Metrics) HeldDelta(mode Mode, delta float64) {
	if m == nil {
		return
	}
	m.heldGauge.WithLabelValues(mode.String()).Add(delta)
}

// SetRegistered sets the registry size gauge.
func (m *Metrics) SetRegistered(n int) {
	if m == nil {
		return
	}
	m.registeredGauge.Set(float64(n))
}
