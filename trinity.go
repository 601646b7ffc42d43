// Package trinity provides a high-level façade over the agent runtime: one
// prediction agent (Oracle), one monitoring agent (Sentinel), one advisory
// agent (Sage), and the Coordinator that routes events between them. Most
// applications interact with this package by:
//  1. Creating a Runtime via New() (optionally overriding stores, logger, or
//     agent descriptors)
//  2. Calling Initialize() to bring every agent to running
//  3. Driving the agents directly (r.Oracle, r.Sentinel, r.Sage) while the
//     Coordinator reacts to the events they emit
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable store, a structured logger, and a
// configuration file.
package trinity

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/trinity/agent"
	"github.com/hupe1980/trinity/config"
	"github.com/hupe1980/trinity/coordinator"
	"github.com/hupe1980/trinity/core"
	"github.com/hupe1980/trinity/logging"
	"github.com/hupe1980/trinity/memory"
	"github.com/hupe1980/trinity/oracle"
	"github.com/hupe1980/trinity/sage"
	"github.com/hupe1980/trinity/sentinel"
)

// Options configures the Runtime instance.
type Options struct {
	// Config supplies descriptors, thresholds, targets, and routing knobs.
	// Nil uses config.Default().
	Config *config.Config

	// Store backs agents with a persistent memory binding (defaults to the
	// in-memory store; config can select sqlite).
	Store core.Store

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Runtime is the high-level façade aggregating the three agents, the event
// bus, and the coordinator.
type Runtime struct {
	Oracle   *oracle.Oracle
	Sentinel *sentinel.Sentinel
	Sage     *sage.Sage

	bus         *core.Bus
	coordinator *coordinator.Coordinator
	store       core.Store
	ownsStore   bool
	logger      logging.Logger
	cfg         config.Config
}

// New creates a Runtime with optional overrides. Agents are constructed but
// not initialized; call Initialize before executing.
func New(optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	store := opts.Store
	ownsStore := false
	if store == nil {
		switch cfg.Store.Type {
		case "sqlite":
			s, err := memory.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return nil, fmt.Errorf("open sqlite store: %w", err)
			}
			store = s
		default:
			store = memory.NewInMemoryStore()
		}
		ownsStore = true
	}

	bus := core.NewBus()
	logger := opts.Logger

	agentOpts := func(ac config.AgentConfig) func(o *agent.Options) {
		return func(o *agent.Options) {
			o.Logger = logger
			o.Bus = bus
			o.Store = store
			o.Retention = ac.Retention
		}
	}

	orc, err := oracle.New(cfg.Oracle.Descriptor(core.KindPrediction), agentOpts(cfg.Oracle))
	if err != nil {
		return nil, fmt.Errorf("construct oracle: %w", err)
	}
	sen, err := sentinel.New(cfg.Sentinel.Descriptor(core.KindMonitoring), agentOpts(cfg.Sentinel))
	if err != nil {
		return nil, fmt.Errorf("construct sentinel: %w", err)
	}
	sg, err := sage.New(cfg.Sage.Descriptor(core.KindAdvisory), agentOpts(cfg.Sage))
	if err != nil {
		return nil, fmt.Errorf("construct sage: %w", err)
	}

	coord := coordinator.New(bus, sen, sg, func(o *coordinator.Options) {
		o.Logger = logger
		if cfg.Coordinator.ForecastConfidence > 0 {
			o.ForecastConfidence = cfg.Coordinator.ForecastConfidence
		}
		if cfg.Coordinator.ThresholdFactor > 0 {
			o.ThresholdFactor = cfg.Coordinator.ThresholdFactor
		}
		if cfg.Coordinator.AdviceTimeout > 0 {
			o.AdviceTimeout = cfg.Coordinator.AdviceTimeout
		}
	})

	return &Runtime{
		Oracle:      orc,
		Sentinel:    sen,
		Sage:        sg,
		bus:         bus,
		coordinator: coord,
		store:       store,
		ownsStore:   ownsStore,
		logger:      logger,
		cfg:         cfg,
	}, nil
}

// Bus exposes the event bus for external subscribers (dashboards,
// notification sinks).
func (r *Runtime) Bus() *core.Bus { return r.bus }

// Coordinator exposes the routing component, mainly for its Stats.
func (r *Runtime) Coordinator() *coordinator.Coordinator { return r.coordinator }

// Initialize brings every agent to running, applies configured thresholds
// and targets to the Sentinel, and starts event routing. Configuration
// problems in individual thresholds are logged and skipped rather than
// failing startup.
func (r *Runtime) Initialize(ctx context.Context) error {
	for _, a := range r.agents() {
		if err := a.Initialize(); err != nil {
			return fmt.Errorf("initialize %s: %w", a.Descriptor().ID, err)
		}
	}

	for name, tc := range r.cfg.Thresholds {
		if err := r.Sentinel.SetThreshold(name, tc.Threshold()); err != nil {
			r.logger.Warn("skipping configured threshold", "threshold", name, "error", err)
		}
	}
	for _, tc := range r.cfg.Targets {
		t := sentinel.Target{ID: tc.ID, Interval: tc.Interval, Timeout: tc.Timeout, Thresholds: tc.Thresholds}
		if err := r.Sentinel.AddTarget(t); err != nil {
			r.logger.Warn("skipping configured target", "target", tc.ID, "error", err)
		}
	}

	return r.coordinator.Start(ctx)
}

// Shutdown stops routing, shuts down every agent, closes the bus, and closes
// the store if the runtime created it. All agent shutdown errors are
// collected; Shutdown is idempotent.
func (r *Runtime) Shutdown() error {
	r.coordinator.Stop()

	var errs []error
	for _, a := range r.agents() {
		if err := a.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", a.Descriptor().ID, err))
		}
	}
	r.bus.Close()
	if r.ownsStore {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runtime) agents() []core.Agent {
	return []core.Agent{r.Oracle, r.Sentinel, r.Sage}
}
