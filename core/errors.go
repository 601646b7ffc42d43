package core

import "errors"

// Error taxonomy shared by all agents. Domain packages wrap these sentinels
// with contextual detail via fmt.Errorf("...: %w", err) so callers can branch
// with errors.Is regardless of which agent produced the failure.
var (
	// ErrInvalidInput marks nil or malformed Execute input. Surfaced
	// synchronously, never swallowed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotRunning marks a method call outside the running state, most
	// commonly Execute after Shutdown. Callers must fail fast rather than
	// silently no-op.
	ErrNotRunning = errors.New("agent not running")

	// ErrAlreadyShutdown marks an Initialize call after Shutdown. Agents are
	// single-use; construct a new instance to restart.
	ErrAlreadyShutdown = errors.New("agent already shut down")

	// ErrTimeout marks an operation that exceeded the caller-supplied bound.
	ErrTimeout = errors.New("operation timed out")
)
