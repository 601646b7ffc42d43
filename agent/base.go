package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/trinity/core"
	"github.com/hupe1980/trinity/logging"
)

// DefaultRetention is the execution history cap applied when no override is
// configured.
const DefaultRetention = 100

// Options configures a Base instance.
type Options struct {
	// Logger receives structured lifecycle and execution logs. Defaults to
	// NoOpLogger so embedding agents carry no logging dependency.
	Logger logging.Logger

	// Bus is the event emission point. Nil disables event publication.
	Bus *core.Bus

	// Store backs persistent memory bindings. Required when the descriptor
	// declares MemoryPersistent; ignored otherwise.
	Store core.Store

	// Retention caps the execution history length. Defaults to DefaultRetention.
	Retention int

	// RateLimit throttles Execute calls per second when > 0. Waiting honors
	// the caller's context, so a deadline still bounds the total call.
	RateLimit rate.Limit
}

// Base bundles the lifecycle, state, metrics and history plumbing common to
// all agents. Embed it in a concrete agent and route Execute through Run.
// All exported methods are goroutine-safe.
type Base struct {
	desc    core.AgentDescriptor
	logger  logging.Logger
	bus     *core.Bus
	store   core.Store
	limiter *rate.Limiter

	mu        sync.Mutex
	status    core.Status
	state     map[string]any
	history   []core.ExecutionRecord // completion order, oldest first
	retention int
	metrics   core.Metrics
	totalDur  time.Duration
	wasShut   bool

	bgCtx    context.Context
	bgCancel context.CancelFunc
	onStop   []func()
}

// NewBase constructs a Base from a validated descriptor. The agent starts in
// the initializing state; call Initialize before Execute.
func NewBase(desc core.AgentDescriptor, optFns ...func(o *Options)) (*Base, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		Logger:    logging.NoOpLogger{},
		Retention: DefaultRetention,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if desc.Memory.Type == core.MemoryPersistent && opts.Store == nil {
		return nil, fmt.Errorf("agent %q: persistent memory binding requires a store", desc.ID)
	}

	b := &Base{
		desc:      desc.Clone(),
		logger:    logging.WithAgent(opts.Logger, desc.ID, string(desc.Kind)),
		bus:       opts.Bus,
		store:     opts.Store,
		retention: opts.Retention,
		status:    core.StatusInitializing,
		state:     map[string]any{},
	}
	if opts.RateLimit > 0 {
		b.limiter = rate.NewLimiter(opts.RateLimit, 1)
	}
	return b, nil
}

// Descriptor returns a copy of the immutable identity.
func (b *Base) Descriptor() core.AgentDescriptor { return b.desc.Clone() }

// Logger returns the agent-scoped logger.
func (b *Base) Logger() logging.Logger { return b.logger }

// Retention returns the configured history cap. Domain-level histories
// (predictions, recommendations) honor the same bound as the execution
// history.
func (b *Base) Retention() int { return b.retention }

// Initialize transitions the agent to running, loading any persisted state.
// It is idempotent while running and fails with core.ErrAlreadyShutdown once
// Shutdown has completed; agents are single-use.
func (b *Base) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.wasShut {
		return fmt.Errorf("agent %q: %w", b.desc.ID, core.ErrAlreadyShutdown)
	}
	if b.status == core.StatusRunning {
		return nil
	}

	if b.desc.Memory.Type == core.MemoryPersistent {
		if err := b.loadStateLocked(); err != nil {
			// Keep serving with empty state; persistence trouble degrades,
			// it does not block startup.
			b.logger.Warn("failed to load persisted state", "error", err)
			b.status = core.StatusDegraded
		}
	}

	b.bgCtx, b.bgCancel = context.WithCancel(context.Background())
	if b.status != core.StatusDegraded {
		b.status = core.StatusRunning
	}
	b.logger.Info("agent initialized", "version", b.desc.Version)
	return nil
}

// Shutdown cancels owned background work, flushes pending state writes and
// transitions to stopped. Safe to call multiple times; subsequent calls are
// no-ops.
func (b *Base) Shutdown() error {
	b.mu.Lock()
	if b.wasShut {
		b.mu.Unlock()
		return nil
	}
	b.wasShut = true
	b.status = core.StatusStopped
	if b.bgCancel != nil {
		b.bgCancel()
	}
	hooks := b.onStop
	b.onStop = nil
	var flushErr error
	if b.desc.Memory.Type == core.MemoryPersistent {
		flushErr = b.flushStateLocked()
	}
	b.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	if flushErr != nil {
		b.logger.Error("failed to flush state on shutdown", "error", flushErr)
		return flushErr
	}
	b.logger.Info("agent stopped")
	return nil
}

// OnShutdown registers fn to run exactly once during Shutdown, after the
// background context is cancelled. Used by agents that own periodic work
// (e.g. the sentinel's target check scheduler).
func (b *Base) OnShutdown(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStop = append(b.onStop, fn)
}

// Context returns a context cancelled when the agent shuts down. Valid only
// after Initialize.
func (b *Base) Context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bgCtx == nil {
		return context.Background()
	}
	return b.bgCtx
}

// Status returns the current lifecycle state.
func (b *Base) Status() core.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// State returns a shallow copy of the agent's key/value state.
func (b *Base) State() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make(map[string]any, len(b.state))
	for k, v := range b.state {
		cp[k] = v
	}
	return cp
}

// SetState merges the provided delta into the agent's state.
func (b *Base) SetState(delta map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range delta {
		b.state[k] = v
	}
}

// Metrics returns a snapshot of the execution counters.
func (b *Base) Metrics() core.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// History returns up to limit execution records, most recent first. A
// non-positive limit returns the full retained history.
func (b *Base) History(limit int) []core.ExecutionRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]core.ExecutionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, b.history[i])
	}
	return out
}

// Publish emits a payload on the bus authored by this agent. No-op when no
// bus is configured.
func (b *Base) Publish(payload core.Payload) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(core.NewEvent(b.desc.ID, payload))
}

// Run wraps one domain execution with the substrate bookkeeping contract:
// input validation, lifecycle checks, optional rate limiting, duration
// measurement, metrics update (counting failures), history append in
// completion order and failure event publication. fn receives the caller's
// context and must honor its cancellation; a deadline overrun surfaces as
// core.ErrTimeout.
func (b *Base) Run(ctx context.Context, input core.Input, fn func(ctx context.Context) (any, error)) (*core.Result, error) {
	if input == nil {
		return nil, fmt.Errorf("agent %q: nil input: %w", b.desc.ID, core.ErrInvalidInput)
	}
	if st := b.Status(); st != core.StatusRunning && st != core.StatusDegraded {
		return nil, fmt.Errorf("agent %q in state %q: %w", b.desc.ID, st, core.ErrNotRunning)
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("agent %q: %w", b.desc.ID, core.ErrTimeout)
		}
	}

	start := time.Now()
	output, err := fn(ctx)
	dur := time.Since(start)

	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		err = fmt.Errorf("agent %q: %s: %w", b.desc.ID, err, core.ErrTimeout)
	}

	rec := core.ExecutionRecord{
		ID:        core.NewID(),
		Timestamp: start.UTC(),
		Input:     core.CloneInput(input),
		Output:    output,
		Duration:  dur,
		Success:   err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	b.record(rec, dur)
	logging.LogExecution(b.logger, b.desc.ID, dur, err == nil, err)

	if err != nil {
		b.Publish(core.FailurePayload{Error: err.Error()})
		return nil, err
	}
	return &core.Result{Output: output, Timestamp: rec.Timestamp, Duration: dur}, nil
}

// record appends one execution record and folds its duration into the
// running metrics. Completion order: whichever call finishes first is
// appended first, regardless of start order.
func (b *Base) record(rec core.ExecutionRecord, dur time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, rec)
	if over := len(b.history) - b.retention; over > 0 {
		b.history = b.history[over:]
	}

	b.metrics.ExecutionCount++
	if !rec.Success {
		b.metrics.FailureCount++
	}
	b.totalDur += dur
	b.metrics.AvgDuration = b.totalDur / time.Duration(b.metrics.ExecutionCount)
	b.metrics.LastExecuted = rec.Timestamp
}

// MarkDegraded flags a recoverable internal fault while keeping the agent
// available for Execute calls.
func (b *Base) MarkDegraded(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == core.StatusRunning {
		b.status = core.StatusDegraded
		b.logger.Warn("agent degraded", "reason", reason)
	}
}

func (b *Base) stateKey() string { return "state/" + b.desc.ID }

// loadStateLocked restores persisted state. Caller holds b.mu.
func (b *Base) loadStateLocked() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, ok, err := b.store.Get(ctx, b.stateKey())
	if err != nil || !ok {
		return err
	}
	restored := map[string]any{}
	if err := json.Unmarshal(raw, &restored); err != nil {
		return fmt.Errorf("decode persisted state: %w", err)
	}
	b.state = restored
	return nil
}

// flushStateLocked writes the current state snapshot. Caller holds b.mu.
func (b *Base) flushStateLocked() error {
	raw, err := json.Marshal(b.state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.store.Put(ctx, b.stateKey(), raw, b.desc.Memory.TTL)
}
