// Package adapter holds the TCP lifecycle shared by fxd protocol servers:
// listening, connection limits, connection tracking, and the shutdown
// broadcast that tells every connected peer the server is going away.
package adapter

import "context"

// Adapter is a protocol server managed by the fxd process.
//
// Lifecycle:
//  1. Creation with protocol-specific configuration
//  2. Serve blocks until ctx is cancelled or the listener fails
//  3. Stop (optional) initiates the same shutdown from another goroutine
//
// Implementations must allow Stop to be called concurrently with Serve and
// more than once.
type Adapter interface {
	// Serve listens and handles connections until ctx is cancelled. It returns
	// nil after a clean shutdown and an error if the listener could not be
	// created or workers did not finish within the shutdown timeout.
	Serve(ctx context.Context) error

	// Stop initiates shutdown and waits for workers until ctx is done.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name used in logs and metrics.
	Protocol() string

	// Port returns the configured TCP port.
	Port() int
}
