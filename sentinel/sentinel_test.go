package sentinel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trinity/agent"
	"github.com/hupe1980/trinity/core"
)

func testDescriptor() core.AgentDescriptor {
	return core.AgentDescriptor{
		ID:           "sentinel-test",
		Name:         "Sentinel",
		Version:      "1.0.0",
		Kind:         core.KindMonitoring,
		Capabilities: []string{"threshold-monitoring", "alerting"},
	}
}

func newTestSentinel(t *testing.T, optFns ...func(o *agent.Options)) *Sentinel {
	t.Helper()
	s, err := New(testDescriptor(), optFns...)
	require.NoError(t, err)
	require.NoError(t, s.Initialize())
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func reportOf(t *testing.T, result *core.Result) *EvaluationReport {
	t.Helper()
	report, ok := result.Output.(*EvaluationReport)
	require.True(t, ok, "result output must be an evaluation report")
	return report
}

func cpuThreshold(severity core.AlertLevel) core.Threshold {
	return core.Threshold{Metric: "cpu", Condition: core.ConditionGT, Value: 50, Severity: severity}
}

func TestSentinel_ViolationRaisesAlert(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))

	result, err := s.Execute(context.Background(), core.Snapshot{"cpu": 80})
	require.NoError(t, err)

	report := reportOf(t, result)
	assert.Equal(t, StatusWarning, report.Status)
	assert.Equal(t, 1, report.Checks)
	assert.Equal(t, 1, report.Violations)
	require.Len(t, report.Raised, 1)
	assert.Equal(t, "cpu-high", report.Raised[0].ThresholdName)
	assert.Equal(t, core.AlertStateRaised, report.Raised[0].State)

	active := s.ActiveAlerts()
	require.Len(t, active, 1)
	assert.InDelta(t, 80, active[0].Value, 1e-9)
}

func TestSentinel_NormalSnapshotRaisesNothing(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))

	result, err := s.Execute(context.Background(), core.Snapshot{"cpu": 30})
	require.NoError(t, err)

	report := reportOf(t, result)
	assert.Equal(t, StatusNormal, report.Status)
	assert.Empty(t, report.Raised)
	assert.Empty(t, s.ActiveAlerts())
}

func TestSentinel_CriticalEscalatesStatus(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))
	require.NoError(t, s.SetThreshold("mem-high", core.Threshold{
		Metric: "mem", Condition: core.ConditionGT, Value: 90, Severity: core.AlertCritical,
	}))

	result, err := s.Execute(context.Background(), core.Snapshot{"cpu": 80, "mem": 95})
	require.NoError(t, err)
	assert.Equal(t, StatusCritical, reportOf(t, result).Status)
}

func TestSentinel_ReViolationRefreshesInsteadOfDuplicating(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))

	first, err := s.Execute(context.Background(), core.Snapshot{"cpu": 80})
	require.NoError(t, err)
	firstID := reportOf(t, first).Raised[0].ID

	second, err := s.Execute(context.Background(), core.Snapshot{"cpu": 85})
	require.NoError(t, err)
	report := reportOf(t, second)
	assert.Empty(t, report.Raised)
	assert.Equal(t, 1, report.Violations)

	active := s.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, firstID, active[0].ID)
	assert.InDelta(t, 85, active[0].Value, 1e-9)
	assert.Len(t, s.AlertHistory(0), 1)
}

func TestSentinel_RecoveryResolvesAndReViolationMintsNewID(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))

	first, err := s.Execute(context.Background(), core.Snapshot{"cpu": 80})
	require.NoError(t, err)
	firstID := reportOf(t, first).Raised[0].ID

	recovered, err := s.Execute(context.Background(), core.Snapshot{"cpu": 30})
	require.NoError(t, err)
	report := reportOf(t, recovered)
	assert.Equal(t, StatusNormal, report.Status)
	require.Len(t, report.Resolved, 1)
	assert.Equal(t, firstID, report.Resolved[0].ID)
	assert.Equal(t, core.AlertStateResolved, report.Resolved[0].State)
	assert.Empty(t, s.ActiveAlerts())

	again, err := s.Execute(context.Background(), core.Snapshot{"cpu": 90})
	require.NoError(t, err)
	secondID := reportOf(t, again).Raised[0].ID
	assert.NotEqual(t, firstID, secondID)
	assert.Len(t, s.AlertHistory(0), 2)
}

func TestSentinel_AcknowledgeAlert(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))

	result, err := s.Execute(context.Background(), core.Snapshot{"cpu": 80})
	require.NoError(t, err)
	alertID := reportOf(t, result).Raised[0].ID

	assert.True(t, s.AcknowledgeAlert(alertID, "oncall"))
	// Idempotent: repeat acknowledgment also succeeds.
	assert.True(t, s.AcknowledgeAlert(alertID, "oncall"))
	assert.False(t, s.AcknowledgeAlert("no-such-alert", "oncall"))

	// Acknowledged alerts leave the active list but stay open in history.
	assert.Empty(t, s.ActiveAlerts())
	history := s.AlertHistory(1)
	require.Len(t, history, 1)
	assert.Equal(t, core.AlertStateAcknowledged, history[0].State)
	assert.Equal(t, "oncall", history[0].AcknowledgedBy)

	// A resolved alert can no longer be acknowledged.
	require.True(t, s.ResolveAlert(alertID))
	assert.False(t, s.AcknowledgeAlert(alertID, "oncall"))
}

func TestSentinel_ManualResolvePublishes(t *testing.T) {
	bus := core.NewBus()
	events, cancel := bus.Subscribe(4, core.EventAlertResolved)
	defer cancel()

	s := newTestSentinel(t, func(o *agent.Options) { o.Bus = bus })
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))

	result, err := s.Execute(context.Background(), core.Snapshot{"cpu": 80})
	require.NoError(t, err)
	alertID := reportOf(t, result).Raised[0].ID

	require.True(t, s.ResolveAlert(alertID))
	assert.False(t, s.ResolveAlert(alertID))

	select {
	case ev := <-events:
		payload, ok := ev.Payload.(core.AlertPayload)
		require.True(t, ok)
		assert.True(t, payload.Resolved)
		assert.Equal(t, alertID, payload.Alert.ID)
	case <-time.After(time.Second):
		t.Fatal("expected an alert.resolved event")
	}
}

func TestSentinel_UnknownConditionNeverFires(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("weird", core.Threshold{
		Metric: "cpu", Condition: "approx", Value: 50,
	}))

	result, err := s.Execute(context.Background(), core.Snapshot{"cpu": 9000})
	require.NoError(t, err)

	report := reportOf(t, result)
	assert.Equal(t, StatusNormal, report.Status)
	assert.Zero(t, report.Violations)
	assert.Empty(t, s.ActiveAlerts())
}

func TestSentinel_ThresholdRegistry(t *testing.T) {
	s := newTestSentinel(t)

	err := s.SetThreshold("", cpuThreshold(core.AlertWarning))
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	err = s.SetThreshold("no-metric", core.Threshold{Condition: core.ConditionGT, Value: 1})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))
	// Replacement swaps the whole value.
	require.NoError(t, s.SetThreshold("cpu-high", core.Threshold{
		Metric: "cpu", Condition: core.ConditionGTE, Value: 75,
	}))

	ths := s.Thresholds()
	require.Len(t, ths, 1)
	assert.Equal(t, core.ConditionGTE, ths["cpu-high"].Condition)
	assert.InDelta(t, 75, ths["cpu-high"].Value, 1e-9)
	// Unset severity defaults to warning.
	assert.Equal(t, core.AlertWarning, ths["cpu-high"].Severity)

	assert.True(t, s.RemoveThreshold("cpu-high"))
	assert.False(t, s.RemoveThreshold("cpu-high"))
}

func TestSentinel_ExecuteInputValidation(t *testing.T) {
	s := newTestSentinel(t)

	_, err := s.Execute(context.Background(), core.Snapshot{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = s.Execute(context.Background(), core.Query("how are things?"))
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSentinel_MetricHistory(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))

	for _, v := range []float64{10, 20, 30} {
		_, err := s.Execute(context.Background(), core.Snapshot{"cpu": v})
		require.NoError(t, err)
	}

	points := s.MetricValues("cpu")
	require.Len(t, points, 3)
	assert.InDelta(t, 10, points[0].Value, 1e-9)
	assert.InDelta(t, 30, points[2].Value, 1e-9)
	assert.Empty(t, s.MetricValues("mem"))
}

func TestSentinel_ConcurrentEvaluations(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertWarning)))

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := s.Execute(context.Background(), core.Snapshot{"cpu": float64(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(n), s.Metrics().ExecutionCount)
	assert.Len(t, s.MetricValues("cpu"), n)
	// Concurrent violations of one threshold never produce duplicate alerts.
	assert.LessOrEqual(t, len(s.ActiveAlerts()), 1)
}

func TestSentinel_TargetChecksFeedEvaluation(t *testing.T) {
	s := newTestSentinel(t)
	require.NoError(t, s.SetThreshold("cpu-high", cpuThreshold(core.AlertCritical)))

	var mu sync.Mutex
	collected := 0
	s.SetMetricSource(MetricSourceFunc(func(ctx context.Context, targetID string) (core.Snapshot, error) {
		mu.Lock()
		collected++
		mu.Unlock()
		assert.Equal(t, "web-1", targetID)
		return core.Snapshot{"cpu": 99}, nil
	}))

	require.NoError(t, s.AddTarget(Target{ID: "web-1", Interval: 10 * time.Millisecond}))

	require.Eventually(t, func() bool {
		return len(s.ActiveAlerts()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Greater(t, collected, 0)
	mu.Unlock()

	assert.True(t, s.RemoveTarget("web-1"))
	assert.False(t, s.RemoveTarget("web-1"))
}

func TestSentinel_TargetValidation(t *testing.T) {
	s := newTestSentinel(t)

	err := s.AddTarget(Target{Interval: time.Second})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	err = s.AddTarget(Target{ID: "web-1"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	require.NoError(t, s.AddTarget(Target{ID: "web-1", Interval: time.Minute}))
	require.Len(t, s.Targets(), 1)
	assert.Equal(t, defaultTargetTimeout, s.Targets()[0].Timeout)
}

func TestSentinel_ShutdownStopsTargetChecks(t *testing.T) {
	s := newTestSentinel(t)

	var mu sync.Mutex
	collected := 0
	s.SetMetricSource(MetricSourceFunc(func(ctx context.Context, targetID string) (core.Snapshot, error) {
		mu.Lock()
		collected++
		mu.Unlock()
		return core.Snapshot{"cpu": 1}, nil
	}))
	require.NoError(t, s.AddTarget(Target{ID: "web-1", Interval: 10 * time.Millisecond}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return collected > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown())
	mu.Lock()
	after := collected
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, collected)
	mu.Unlock()

	_, err := s.Execute(context.Background(), core.Snapshot{"cpu": 1})
	assert.ErrorIs(t, err, core.ErrNotRunning)
}
