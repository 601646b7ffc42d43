package sentinel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"

	"github.com/hupe1980/trinity/agent"
	"github.com/hupe1980/trinity/core"
)

// OverallStatus is the aggregate outcome of one snapshot evaluation,
// escalated to the highest severity among the alerts active afterwards.
type OverallStatus string

const (
	StatusNormal   OverallStatus = "normal"
	StatusWarning  OverallStatus = "warning"
	StatusCritical OverallStatus = "critical"
)

// EvaluationReport is the Execute output: aggregate status, the alerts
// newly raised and resolved by this snapshot, and evaluation counters.
type EvaluationReport struct {
	Status     OverallStatus `json:"status"`
	Raised     []core.Alert  `json:"raised,omitempty"`
	Resolved   []core.Alert  `json:"resolved,omitempty"`
	Checks     int           `json:"checks"`
	Violations int           `json:"violations"`
}

// MetricPoint is one time-stamped observation of a metric key.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// metricRetention caps the per-key value history.
const metricRetention = 500

// Sentinel is the monitoring agent. Threshold, alert and target registries
// are agent-private; external callers read and mutate them only through the
// public methods.
//
// Alert policy (fixed, documented behavior):
//   - Re-violation of an already-active alert's threshold does not create a
//     duplicate open alert; the active alert's LastSeen is refreshed instead.
//   - A resolved threshold that later re-violates mints a new alert ID.
//   - AcknowledgeAlert is idempotent: re-acknowledging a known open alert
//     returns true again; unknown or resolved IDs return false.
type Sentinel struct {
	*agent.Base

	mu         sync.Mutex
	thresholds map[string]core.Threshold
	active     map[string]*core.Alert // threshold name -> open alert
	byID       map[string]*core.Alert // open alerts by alert ID
	history    []core.Alert           // every alert ever raised, completion order
	metrics    map[string][]MetricPoint

	targets   map[string]Target
	schedule  *cron.Cron
	entries   map[string]cron.EntryID
	source    MetricSource
	startCron sync.Once
}

var _ core.Agent = (*Sentinel)(nil)

// New constructs a Sentinel from the descriptor with empty registries.
func New(desc core.AgentDescriptor, optFns ...func(o *agent.Options)) (*Sentinel, error) {
	base, err := agent.NewBase(desc, optFns...)
	if err != nil {
		return nil, err
	}
	return &Sentinel{
		Base:       base,
		thresholds: map[string]core.Threshold{},
		active:     map[string]*core.Alert{},
		byID:       map[string]*core.Alert{},
		metrics:    map[string][]MetricPoint{},
		targets:    map[string]Target{},
		schedule:   cron.New(),
		entries:    map[string]cron.EntryID{},
	}, nil
}

// Initialize transitions the agent to running and starts the target check
// scheduler. Idempotent while running.
func (s *Sentinel) Initialize() error {
	if err := s.Base.Initialize(); err != nil {
		return err
	}
	s.startCron.Do(func() {
		s.schedule.Start()
		s.OnShutdown(func() {
			<-s.schedule.Stop().Done()
		})
	})
	return nil
}

// Execute evaluates every registered threshold whose metric key is present
// in the snapshot, raising and resolving alerts as required. The returned
// Result carries an *EvaluationReport output. Newly raised and resolved
// alerts are published on the bus.
func (s *Sentinel) Execute(ctx context.Context, input core.Input) (*core.Result, error) {
	return s.Run(ctx, input, func(ctx context.Context) (any, error) {
		snapshot, ok := input.(core.Snapshot)
		if !ok {
			return nil, fmt.Errorf("sentinel cannot process %T: %w", input, core.ErrInvalidInput)
		}
		if len(snapshot) == 0 {
			return nil, fmt.Errorf("empty metric snapshot: %w", core.ErrInvalidInput)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report, raised, resolved := s.evaluate(snapshot)
		for _, a := range raised {
			s.Publish(core.AlertPayload{Alert: a})
		}
		for _, a := range resolved {
			s.Publish(core.AlertPayload{Alert: a, Resolved: true})
		}
		s.SetState(map[string]any{"last_status": string(report.Status)})
		return report, nil
	})
}

// evaluate applies the snapshot under the registry lock and returns the
// report plus copies of the alerts that changed state.
func (s *Sentinel) evaluate(snapshot core.Snapshot) (*EvaluationReport, []core.Alert, []core.Alert) {
	now := time.Now().UTC()
	report := &EvaluationReport{Status: StatusNormal}
	var raised, resolved []core.Alert

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range snapshot {
		points := append(s.metrics[key], MetricPoint{Timestamp: now, Value: value})
		if over := len(points) - metricRetention; over > 0 {
			points = points[over:]
		}
		s.metrics[key] = points
	}

	for name, t := range s.thresholds {
		value, present := snapshot[t.Metric]
		if !present {
			continue
		}
		report.Checks++

		violated, known := t.Violated(value)
		if !known {
			// Fail safe: unknown conditions never fire.
			s.Logger().Warn("threshold has unrecognized condition, treated as never violated",
				"threshold", name, "condition", string(t.Condition))
			continue
		}

		open := s.active[name]
		switch {
		case violated && open != nil:
			// Re-raise suppressed while active; refresh instead.
			report.Violations++
			open.LastSeen = now
			open.Value = value
			s.syncHistoryLocked(*open)
		case violated:
			report.Violations++
			raised = append(raised, s.raiseLocked(name, t, value, now))
		case open != nil:
			resolved = append(resolved, s.resolveLocked(open, now))
		}
	}

	for _, open := range s.active {
		if open.Level == core.AlertCritical {
			report.Status = StatusCritical
		} else if report.Status == StatusNormal {
			report.Status = StatusWarning
		}
	}

	report.Raised = raised
	report.Resolved = resolved
	return report, raised, resolved
}

// raiseLocked mints a new alert for the violated threshold. Caller holds s.mu.
func (s *Sentinel) raiseLocked(name string, t core.Threshold, value float64, now time.Time) core.Alert {
	a := &core.Alert{
		ID:            ulid.Make().String(),
		ThresholdName: name,
		Metric:        t.Metric,
		Value:         value,
		Level:         t.Severity,
		Message: fmt.Sprintf("metric %q value %.4f violates threshold %q (%s %.4f)",
			t.Metric, value, name, t.Condition, t.Value),
		State:    core.AlertStateRaised,
		RaisedAt: now,
		LastSeen: now,
	}
	s.active[name] = a
	s.byID[a.ID] = a
	s.history = append(s.history, *a)
	return *a
}

// resolveLocked closes an open alert after its metric recovered. Caller
// holds s.mu.
func (s *Sentinel) resolveLocked(a *core.Alert, now time.Time) core.Alert {
	a.State = core.AlertStateResolved
	a.ResolvedAt = now
	delete(s.active, a.ThresholdName)
	delete(s.byID, a.ID)
	s.syncHistoryLocked(*a)
	return *a
}

// syncHistoryLocked mirrors the current alert state into its history entry
// so AlertHistory reflects acknowledgments and resolutions. Caller holds s.mu.
func (s *Sentinel) syncHistoryLocked(a core.Alert) {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ID == a.ID {
			s.history[i] = a
			return
		}
	}
}

// SetThreshold registers or atomically replaces the named threshold. The
// whole value is swapped; there is no partial update. An unrecognized
// condition is accepted but logged, and will never fire during evaluation.
func (s *Sentinel) SetThreshold(name string, t core.Threshold) error {
	if name == "" || t.Metric == "" {
		return fmt.Errorf("threshold requires a name and metric key: %w", core.ErrInvalidInput)
	}
	if t.Severity == "" {
		t.Severity = core.AlertWarning
	}
	if _, known := t.Violated(0); !known {
		s.Logger().Warn("registering threshold with unrecognized condition",
			"threshold", name, "condition", string(t.Condition))
	}

	s.mu.Lock()
	s.thresholds[name] = t
	s.mu.Unlock()
	return nil
}

// RemoveThreshold deletes the named threshold, reporting whether it existed.
// Any open alert for the threshold stays open until acknowledged or manually
// resolved.
func (s *Sentinel) RemoveThreshold(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.thresholds[name]
	delete(s.thresholds, name)
	return ok
}

// Thresholds returns a snapshot of the live threshold registry.
func (s *Sentinel) Thresholds() map[string]core.Threshold {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.Threshold, len(s.thresholds))
	for k, v := range s.thresholds {
		out[k] = v
	}
	return out
}

// ActiveAlerts returns the open, not yet acknowledged alerts, oldest first.
func (s *Sentinel) ActiveAlerts() []core.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Alert, 0, len(s.active))
	for _, a := range s.history {
		if open, ok := s.byID[a.ID]; ok && open.State == core.AlertStateRaised {
			out = append(out, *open)
		}
	}
	return out
}

// AcknowledgeAlert marks the open alert as acknowledged by actor. Returns
// true for a known open alert (idempotently, on repeat calls too) and false
// for unknown or already resolved IDs.
func (s *Sentinel) AcknowledgeAlert(alertID, actor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[alertID]
	if !ok {
		return false
	}
	if a.State == core.AlertStateAcknowledged {
		return true
	}
	a.State = core.AlertStateAcknowledged
	a.AcknowledgedBy = actor
	a.AcknowledgedAt = time.Now().UTC()
	s.syncHistoryLocked(*a)
	return true
}

// ResolveAlert manually closes an open alert, reporting whether it existed.
func (s *Sentinel) ResolveAlert(alertID string) bool {
	s.mu.Lock()
	a, ok := s.byID[alertID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	resolved := s.resolveLocked(a, time.Now().UTC())
	s.mu.Unlock()

	s.Publish(core.AlertPayload{Alert: resolved, Resolved: true})
	return true
}

// AlertHistory returns up to limit alerts ever raised, most recent first,
// reflecting their current lifecycle state.
func (s *Sentinel) AlertHistory(limit int) []core.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]core.Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// MetricValues returns the recorded observation history for a metric key,
// oldest first, bounded by the retention window.
func (s *Sentinel) MetricValues(key string) []MetricPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MetricPoint(nil), s.metrics[key]...)
}
