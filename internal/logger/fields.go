package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging. Use these consistently so
// logs can be aggregated and queried by field.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Protocol
	KeyProtocol = "protocol" // wire protocol name
	KeyVerb     = "verb"     // READ, WRITE
	KeyState    = "state"    // connection state machine state
	KeyLine     = "line"     // raw protocol line (truncated by callers)
	KeyReply    = "reply"    // reply line sent to the peer
	KeyFilename = "filename" // requested filename
	KeyPath     = "path"     // resolved storage path
	KeyStore    = "store"    // storage backend type

	// I/O
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"

	// Client identification
	KeyClientIP     = "client_ip"
	KeyClientAddr   = "client_addr"
	KeyClientID     = "client_id" // token sent with HELLO
	KeyConnectionID = "connection_id"
	KeyActive       = "active" // active connection count

	// Locking
	KeyLockType   = "lock_type" // shared, exclusive
	KeyAttempt    = "attempt"   // try-acquire attempt number
	KeyWaitMs     = "wait_ms"
	KeyHoldMs     = "hold_ms"
	KeyRegistered = "registered" // lock registry size

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyReason     = "reason"
)

// Filename returns a slog.Attr for the requested filename
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Verb returns a slog.Attr for the request verb
func Verb(v string) slog.Attr {
	return slog.String(KeyVerb, v)
}

// ClientAddr returns a slog.Attr for the remote address
func ClientAddr(addr string) slog.Attr {
	return slog.String(KeyClientAddr, addr)
}

// ConnectionID returns a slog.Attr for the connection ID
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// LockType returns a slog.Attr for the lock mode
func LockType(exclusive bool) slog.Attr {
	if exclusive {
		return slog.String(KeyLockType, "exclusive")
	}
	return slog.String(KeyLockType, "shared")
}

// BytesRead returns a slog.Attr for bytes read from the peer
func BytesRead(n int64) slog.Attr {
	return slog.Int64(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for bytes written to the peer
func BytesWritten(n int64) slog.Attr {
	return slog.Int64(KeyBytesWritten, n)
}

// DurationMs returns a slog.Attr for an elapsed duration in milliseconds
func DurationMs(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMs, float64(d.Microseconds())/1000.0)
}

// Err returns a slog.Attr for an error. Returns an empty attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
