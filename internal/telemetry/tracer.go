package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrClientIP     = "client.ip"
	AttrClientAddr   = "client.address"
	AttrClientID     = "client.id"
	AttrConnectionID = "connection.id"

	AttrVerb         = "fxd.verb"
	AttrFilename     = "fxd.filename"
	AttrOutcome      = "fxd.outcome"
	AttrBytes        = "fxd.bytes"
	AttrLockMode     = "fxd.lock.mode"
	AttrBusyAttempts = "fxd.lock.busy_attempts"

	AttrStoreType = "store.type"
)

// Event names recorded on request spans.
const (
	EventHandshake   = "handshake"
	EventLockBusy    = "lock.busy"
	EventLockGranted = "lock.granted"
	EventShutdown    = "server.shutdown"
)

func ClientIP(ip string) attribute.KeyValue     { return attribute.String(AttrClientIP, ip) }
func ClientAddr(addr string) attribute.KeyValue { return attribute.String(AttrClientAddr, addr) }
func ClientID(id string) attribute.KeyValue     { return attribute.String(AttrClientID, id) }
func ConnectionID(id string) attribute.KeyValue { return attribute.String(AttrConnectionID, id) }
func Verb(v string) attribute.KeyValue          { return attribute.String(AttrVerb, v) }
func Filename(name string) attribute.KeyValue   { return attribute.String(AttrFilename, name) }
func Outcome(o string) attribute.KeyValue       { return attribute.String(AttrOutcome, o) }
func Bytes(n int64) attribute.KeyValue          { return attribute.Int64(AttrBytes, n) }
func LockMode(mode string) attribute.KeyValue   { return attribute.String(AttrLockMode, mode) }
func BusyAttempts(n int) attribute.KeyValue     { return attribute.Int(AttrBusyAttempts, n) }
func StoreType(t string) attribute.KeyValue     { return attribute.String(AttrStoreType, t) }

// StartConnectionSpan starts the root span covering one accepted connection.
func StartConnectionSpan(ctx context.Context, connID, remoteAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, "fxd.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(ConnectionID(connID), ClientAddr(remoteAddr)))
}

// StartRequestSpan starts a child span for a READ or WRITE request.
func StartRequestSpan(ctx context.Context, verb, filename string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Verb(verb), Filename(filename)}, attrs...)
	return StartSpan(ctx, "fxd."+strings.ToLower(verb), trace.WithAttributes(all...))
}
