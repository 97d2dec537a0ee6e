package logger

import (
	"context"
	"net"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds connection-scoped logging fields. A connection builds one
// at accept time and enriches copies of it as the protocol advances.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	ConnID    string    // Server-assigned connection ID
	ClientIP  string    // Client IP address (without port)
	ClientID  string    // Identifier sent in the HELLO line
	Verb      string    // READ or WRITE
	Filename  string    // Requested filename
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a freshly accepted connection.
// remoteAddr may be "host:port" or a bare host.
func NewLogContext(connID, remoteAddr string) *LogContext {
	ip := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		ip = host
	}
	return &LogContext{
		ConnID:    connID,
		ClientIP:  ip,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithClientID returns a copy with the handshake identity set
func (lc *LogContext) WithClientID(id string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ClientID = id
	}
	return clone
}

// WithRequest returns a copy with the verb and filename set
func (lc *LogContext) WithRequest(verb, filename string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Verb = verb
		clone.Filename = filename
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
