package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "fxd", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	// No-op spans carry no IDs.
	spanCtx, span := StartConnectionSpan(ctx, "c1", "127.0.0.1:1")
	defer span.End()
	assert.Empty(t, TraceID(spanCtx))
	assert.Empty(t, SpanID(spanCtx))
}

// withRecorder installs a synchronous in-memory exporter for one test.
func withRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	cfg := DefaultConfig()
	cfg.Enabled = true

	shutdown, err := initWithExporter(context.Background(), cfg, sdktrace.WithSyncer(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	return exp
}

func TestRequestSpans(t *testing.T) {
	exp := withRecorder(t)
	assert.True(t, IsEnabled())

	ctx, conn := StartConnectionSpan(context.Background(), "c1", "10.0.0.1:4000")
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))

	reqCtx, req := StartRequestSpan(ctx, "WRITE", "a.txt", LockMode("exclusive"))
	AddEvent(reqCtx, EventLockBusy, BusyAttempts(1))
	SetAttributes(reqCtx, Bytes(100), Outcome("ok"))
	RecordError(reqCtx, errors.New("peer reset"))
	RecordError(reqCtx, nil)
	req.End()
	conn.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	write := spans[0]
	assert.Equal(t, "fxd.write", write.Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), write.Parent.SpanID())
	assert.Equal(t, codes.Error, write.Status.Code)
	assert.Contains(t, write.Attributes, attribute.String(AttrFilename, "a.txt"))
	assert.Contains(t, write.Attributes, attribute.Int64(AttrBytes, 100))
	require.Len(t, write.Events, 2) // busy + recorded error
	assert.Equal(t, EventLockBusy, write.Events[0].Name)

	assert.Equal(t, "fxd.connection", spans[1].Name)
}

func TestShutdownRestoresNoop(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	cfg := DefaultConfig()
	cfg.Enabled = true
	shutdown, err := initWithExporter(context.Background(), cfg, sdktrace.WithSyncer(exp))
	require.NoError(t, err)

	require.NoError(t, shutdown(context.Background()))
	assert.False(t, IsEnabled())

	_, span := StartSpan(context.Background(), "after")
	span.End()
	assert.Empty(t, exp.GetSpans())
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, attribute.String(AttrClientID, "alice"), ClientID("alice"))
	assert.Equal(t, attribute.String(AttrVerb, "READ"), Verb("READ"))
	assert.Equal(t, attribute.Int(AttrBusyAttempts, 3), BusyAttempts(3))
	assert.Equal(t, attribute.String(AttrStoreType, "badger"), StoreType("badger"))
}

func TestProfiling(t *testing.T) {
	stop, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, stop())
	assert.False(t, IsProfilingEnabled())

	_, err = InitProfiling(ProfilingConfig{Enabled: true, ProfileTypes: []string{"heap"}})
	assert.Error(t, err)
	assert.False(t, IsProfilingEnabled())

	types, err := parseProfileTypes(nil)
	require.NoError(t, err)
	assert.Len(t, types, len(defaultProfileTypes))
}
