package trinity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trinity/core"
)

func newTestRuntime(t *testing.T, optFns ...func(o *Options)) *Runtime {
	t.Helper()
	r, err := New(optFns...)
	require.NoError(t, err)
	require.NoError(t, r.Initialize(context.Background()))
	t.Cleanup(func() { _ = r.Shutdown() })
	return r
}

func TestRuntime_ComposedFlow(t *testing.T) {
	r := newTestRuntime(t)
	ctx := context.Background()

	// 1. A confident forecast seeds a monitoring threshold at 90% of the
	// predicted value.
	_, err := r.Oracle.Execute(ctx, core.SeriesInput{
		Metric: "cpu",
		Values: []float64{60, 65, 70, 75},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := r.Sentinel.Thresholds()["forecast:cpu"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	seeded := r.Sentinel.Thresholds()["forecast:cpu"]
	assert.InDelta(t, 72, seeded.Value, 1e-9) // forecast 80 scaled by 0.9

	// 2. A snapshot beyond the seeded threshold raises an alert, which the
	// coordinator turns into an advisory request.
	result, err := r.Sentinel.Execute(ctx, core.Snapshot{"cpu": 90})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, r.Sentinel.ActiveAlerts(), 1)

	require.Eventually(t, func() bool {
		return len(r.Sage.RecommendationHistory(0)) > 0
	}, 2*time.Second, 10*time.Millisecond)

	stats := r.Coordinator().Stats()
	assert.Equal(t, 1, stats.PredictionsRouted)
	assert.Equal(t, 1, stats.AlertsRouted)
}

func TestRuntime_FailureIsolation(t *testing.T) {
	r := newTestRuntime(t)
	ctx := context.Background()

	// Force the oracle to fail.
	_, err := r.Oracle.Execute(ctx, core.SeriesInput{Metric: "cpu", Values: []float64{1}})
	require.Error(t, err)
	assert.Equal(t, int64(1), r.Oracle.Metrics().FailureCount)

	// The other two agents still respond in the same run.
	require.NoError(t, r.Sentinel.SetThreshold("cpu-high", core.Threshold{
		Metric: "cpu", Condition: core.ConditionGT, Value: 50,
	}))
	_, err = r.Sentinel.Execute(ctx, core.Snapshot{"cpu": 30})
	assert.NoError(t, err)

	_, err = r.Sage.Execute(ctx, core.Query("how do we improve reliability?"))
	assert.NoError(t, err)
}

func TestRuntime_ShutdownStopsAgents(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	require.NoError(t, r.Initialize(context.Background()))

	require.NoError(t, r.Shutdown())
	// Idempotent.
	require.NoError(t, r.Shutdown())

	_, err = r.Oracle.Execute(context.Background(), core.SeriesInput{Metric: "m", Values: []float64{1, 2}})
	assert.ErrorIs(t, err, core.ErrNotRunning)
	_, err = r.Sentinel.Execute(context.Background(), core.Snapshot{"cpu": 1})
	assert.ErrorIs(t, err, core.ErrNotRunning)
	_, err = r.Sage.Execute(context.Background(), core.Query("anything?"))
	assert.ErrorIs(t, err, core.ErrNotRunning)
}
