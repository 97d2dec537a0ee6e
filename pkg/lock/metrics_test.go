package lock

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	r := NewRegistry(m)
	r.Get("a").AcquireShared().Release()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"fxd_locks_acquire_total",
		"fxd_locks_wait_duration_seconds",
		"fxd_locks_hold_duration_seconds",
		"fxd_locks_held",
		"fxd_locks_registered",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestMetricsTrackLockActivity(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := NewRegistry(m)

	l := r.Get("f")
	r.Get("g")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.registeredGauge))

	holder := l.TryAcquireExclusive()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.heldGauge.WithLabelValues("exclusive")))

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	_, err := l.AcquireExclusive(ctx, 5*time.Millisecond, nil)
	require.Error(t, err)

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.busyTotal), 2.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.acquireTotal.WithLabelValues("exclusive", StatusBusy)), 2.0)

	holder.Release()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.heldGauge.WithLabelValues("exclusive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.acquireTotal.WithLabelValues("exclusive", StatusGranted)))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAcquire(Shared, true)
	m.ObserveBusy()
	m.ObserveWait(Exclusive, time.Second)
	m.ObserveHold(Exclusive, time.Second)
	m.HeldDelta(Shared, 1)
	m.SetRegistered(3)
}
