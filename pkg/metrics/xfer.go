package metrics

import "time"

// Request outcomes reported through XferMetrics.RecordRequest.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"  // protocol error reply sent
	OutcomeNotFound  = "not_found" // READ of a missing file
	OutcomeFailed    = "failed"    // storage failure
	OutcomeAborted   = "aborted"   // peer vanished or server shut down
	OutcomeHandshake = "handshake" // rejected before dispatch
)

// XferMetrics provides observability for the file-exchange adapter.
//
// Pass nil to the adapter to disable metrics collection.
type XferMetrics interface {
	// Connection lifecycle, driven by the accept loop.
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)

	// RecordHandshake counts accepted and rejected handshakes.
	RecordHandshake(accepted bool)

	// RecordRequest records a finished request. verb is "READ", "WRITE", or
	// "" when the command line could not be parsed.
	RecordRequest(verb, outcome string, duration time.Duration)

	// RecordBytes records payload bytes moved for a verb.
	RecordBytes(verb string, n int64)

	// RecordBusyNotification counts NOTIFY BUSY lines sent.
	RecordBusyNotification()
}
