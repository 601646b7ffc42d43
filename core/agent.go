package core

import "context"

// Status reflects an agent's position in its lifecycle.
type Status string

const (
	// StatusInitializing is the state between construction and Initialize.
	StatusInitializing Status = "initializing"
	// StatusRunning means the agent accepts Execute calls.
	StatusRunning Status = "running"
	// StatusDegraded means the agent still serves requests but has observed
	// internal faults (e.g. a persistent store flush failure).
	StatusDegraded Status = "degraded"
	// StatusStopped means Shutdown completed; Execute fails with ErrNotRunning.
	StatusStopped Status = "stopped"
)

// Input is the marker interface for typed agent inputs. Each agent package
// declares its own input shapes (series, record, snapshot, query, decision
// context) so that Execute has a narrow, checkable contract instead of an
// open bag of fields. An agent handed an input shape it does not understand
// rejects it with ErrInvalidInput.
type Input interface {
	isInput()
}

// Agent is the contract common to every Trinity agent.
//
// Implementations must:
//   - Tolerate concurrent Execute calls without corrupting history or state
//   - Update Metrics after every Execute, counting failures
//   - Append an ExecutionRecord per Execute in completion order
//   - Honor context cancellation/deadlines, surfacing ErrTimeout past a bound
//   - Make Shutdown idempotent and cancel any owned background work
type Agent interface {
	// Descriptor returns a copy of the immutable identity/configuration.
	Descriptor() AgentDescriptor

	// Initialize allocates internal stores and transitions to running.
	// Idempotent while running; fails with ErrAlreadyShutdown after Shutdown.
	Initialize() error

	// Execute is the sole entry point for domain work. Nil input fails with
	// ErrInvalidInput; calls outside the running state fail with ErrNotRunning.
	Execute(ctx context.Context, input Input) (*Result, error)

	// Status returns the current lifecycle state.
	Status() Status

	// State returns a copy of the opaque cross-call key/value state.
	State() map[string]any

	// SetState merges the provided delta into the agent's state.
	SetState(delta map[string]any)

	// Metrics returns a snapshot of the execution counters.
	Metrics() Metrics

	// History returns up to limit execution records, most recent first.
	History(limit int) []ExecutionRecord

	// Shutdown releases resources, flushes pending state writes and
	// transitions to stopped. Safe to call multiple times.
	Shutdown() error
}
