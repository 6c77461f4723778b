package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the bridge façade and lifecycle calls.
var (
	// ErrConnectFailed is returned by Start when the initial handshake
	// completed with an error. The worker keeps retrying in the background.
	ErrConnectFailed = errors.New("bridge: venue handshake failed")

	// ErrConnectTimeout is returned by Start when the readiness signal did
	// not fire within the connect timeout. The worker keeps retrying.
	ErrConnectTimeout = errors.New("bridge: connect timed out")

	// ErrAwaitTimeout is returned by Cell.Await when the caller's context
	// expires first. The operation may still be queued or in flight; a fresh
	// Submit is safe to retry.
	ErrAwaitTimeout = errors.New("bridge: await deadline exceeded")

	// ErrDisconnected rejects work executed while the venue session is down,
	// so queued items fail fast instead of hanging.
	ErrDisconnected = errors.New("bridge: venue disconnected")

	// ErrShutdownTimeout is returned by Stop when the worker did not exit
	// within the shutdown timeout. Reported, never escalated.
	ErrShutdownTimeout = errors.New("bridge: worker did not stop in time")

	// ErrQueueFull is returned by Submit when the task channel is at capacity.
	ErrQueueFull = errors.New("bridge: task queue full")

	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("bridge: not running")
)

// OpError is the rejection produced when a submitted operation returns an
// error or panics on the worker. The failure is captured here and delivered
// through the result cell; it never terminates the worker loop.
type OpError struct {
	ItemID string
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("bridge: operation %s failed: %v", e.ItemID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
