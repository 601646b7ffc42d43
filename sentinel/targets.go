package sentinel

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/trinity/core"
)

// MetricSource supplies metric snapshots for periodic target checks. It is
// the external collaborator feeding the sentinel; implementations typically
// scrape a host, poll an API or read a queue.
type MetricSource interface {
	Collect(ctx context.Context, targetID string) (core.Snapshot, error)
}

// MetricSourceFunc adapts a function to the MetricSource interface.
type MetricSourceFunc func(ctx context.Context, targetID string) (core.Snapshot, error)

// Collect implements MetricSource.
func (f MetricSourceFunc) Collect(ctx context.Context, targetID string) (core.Snapshot, error) {
	return f(ctx, targetID)
}

// Target registers an entity for periodic checking: every Interval the
// sentinel collects a snapshot from the metric source (bounded by Timeout)
// and evaluates it against the registered thresholds.
type Target struct {
	ID         string        `json:"id" yaml:"id"`
	Interval   time.Duration `json:"interval" yaml:"interval"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Thresholds []string      `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

const defaultTargetTimeout = 10 * time.Second

// SetMetricSource configures the snapshot supplier used by periodic target
// checks. Targets added without a source in place log a warning per check.
func (s *Sentinel) SetMetricSource(src MetricSource) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

// AddTarget registers a target and schedules its periodic check. Replacing
// an existing target ID reschedules it.
func (s *Sentinel) AddTarget(t Target) error {
	if t.ID == "" {
		return fmt.Errorf("target requires an id: %w", core.ErrInvalidInput)
	}
	if t.Interval <= 0 {
		return fmt.Errorf("target %q requires a positive check interval: %w", t.ID, core.ErrInvalidInput)
	}
	if t.Timeout <= 0 {
		t.Timeout = defaultTargetTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[t.ID]; ok {
		s.schedule.Remove(entry)
	}

	target := t
	entry, err := s.schedule.AddFunc(fmt.Sprintf("@every %s", t.Interval), func() {
		s.checkTarget(target)
	})
	if err != nil {
		return fmt.Errorf("schedule target %q: %w", t.ID, err)
	}
	s.entries[t.ID] = entry
	s.targets[t.ID] = target
	return nil
}

// RemoveTarget unregisters a target and cancels its schedule, reporting
// whether the target existed.
func (s *Sentinel) RemoveTarget(targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[targetID]
	if !ok {
		return false
	}
	s.schedule.Remove(entry)
	delete(s.entries, targetID)
	delete(s.targets, targetID)
	return true
}

// Targets returns a snapshot of the registered targets.
func (s *Sentinel) Targets() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Target, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, t)
	}
	return out
}

// checkTarget performs one scheduled collection + evaluation cycle. Errors
// are logged, never fatal: a flaky source must not take the scheduler down.
func (s *Sentinel) checkTarget(t Target) {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src == nil {
		s.Logger().Warn("target check skipped, no metric source configured", "target", t.ID)
		return
	}

	ctx, cancel := context.WithTimeout(s.Context(), t.Timeout)
	defer cancel()

	snapshot, err := src.Collect(ctx, t.ID)
	if err != nil {
		s.Logger().Warn("target metric collection failed", "target", t.ID, "error", err)
		return
	}
	snapshot = s.scopeSnapshot(t, snapshot)
	if len(snapshot) == 0 {
		return
	}
	if _, err := s.Execute(ctx, snapshot); err != nil {
		s.Logger().Warn("target evaluation failed", "target", t.ID, "error", err)
	}
}

// scopeSnapshot trims a collected snapshot to the metrics referenced by the
// target's threshold list. An empty list keeps the full snapshot.
func (s *Sentinel) scopeSnapshot(t Target, snapshot core.Snapshot) core.Snapshot {
	if len(t.Thresholds) == 0 {
		return snapshot
	}

	s.mu.Lock()
	allowed := make(map[string]bool, len(t.Thresholds))
	for _, name := range t.Thresholds {
		if th, ok := s.thresholds[name]; ok {
			allowed[th.Metric] = true
		}
	}
	s.mu.Unlock()

	scoped := make(core.Snapshot, len(allowed))
	for key, value := range snapshot {
		if allowed[key] {
			scoped[key] = value
		}
	}
	return scoped
}
