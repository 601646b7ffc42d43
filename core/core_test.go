package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentDescriptor_Validate(t *testing.T) {
	valid := AgentDescriptor{
		ID:      "oracle",
		Name:    "Oracle",
		Version: "1.0.0",
		Kind:    KindPrediction,
	}
	assert.NoError(t, valid.Validate())

	noID := valid
	noID.ID = ""
	assert.Error(t, noID.Validate())

	badKind := valid
	badKind.Kind = "wizard"
	assert.Error(t, badKind.Validate())
}

func TestAgentDescriptor_CloneIsIndependent(t *testing.T) {
	desc := AgentDescriptor{
		ID:           "oracle",
		Name:         "Oracle",
		Version:      "1.0.0",
		Kind:         KindPrediction,
		Capabilities: []string{"forecast"},
	}

	clone := desc.Clone()
	clone.Capabilities[0] = "mutated"

	assert.Equal(t, "forecast", desc.Capabilities[0])
}

func TestAgentDescriptor_HasCapability(t *testing.T) {
	desc := AgentDescriptor{Capabilities: []string{"forecast", "classify"}}
	assert.True(t, desc.HasCapability("classify"))
	assert.False(t, desc.HasCapability("alerting"))
}

func TestThreshold_Violated(t *testing.T) {
	tests := []struct {
		name      string
		condition Condition
		bound     float64
		value     float64
		violated  bool
		known     bool
	}{
		{"gt above", ConditionGT, 50, 80, true, true},
		{"gt equal", ConditionGT, 50, 50, false, true},
		{"gte equal", ConditionGTE, 50, 50, true, true},
		{"lt below", ConditionLT, 10, 5, true, true},
		{"lte above", ConditionLTE, 10, 11, false, true},
		{"eq match", ConditionEQ, 1, 1, true, true},
		{"neq match", ConditionNEQ, 1, 2, true, true},
		{"unknown condition", Condition("approx"), 1, 1, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := Threshold{Metric: "m", Condition: tt.condition, Value: tt.bound}
			violated, known := th.Violated(tt.value)
			assert.Equal(t, tt.violated, violated)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestAlert_Active(t *testing.T) {
	a := Alert{ID: "a-1", State: AlertStateRaised}
	assert.True(t, a.Active())

	// Acknowledged alerts stay open until the metric recovers.
	a.State = AlertStateAcknowledged
	assert.True(t, a.Active())

	a.State = AlertStateResolved
	assert.False(t, a.Active())
}

func TestPrediction_CloneCopiesFactors(t *testing.T) {
	p := Prediction{
		Model:   "trend-v1",
		Factors: []Factor{{Name: "trend", Importance: 0.8}},
	}

	clone := p.Clone()
	clone.Factors[0].Name = "mutated"

	assert.Equal(t, "trend", p.Factors[0].Name)
}

func TestCloneInput(t *testing.T) {
	record := RecordInput{Fields: map[string]float64{"cpu": 90}}
	cloned := CloneInput(record).(RecordInput)
	record.Fields["cpu"] = 10
	assert.Equal(t, 90.0, cloned.Fields["cpu"])

	dc := DecisionContext{
		Domain:          "ops",
		CurrentState:    map[string]any{"metric": "cpu"},
		Alternatives:    []Alternative{{Name: "a", Attributes: map[string]float64{"cost": 1}}},
		PriorityWeights: map[string]float64{"cost": 1},
	}
	dcClone := CloneInput(&dc).(DecisionContext)
	dc.CurrentState["metric"] = "mem"
	dc.Alternatives[0].Attributes["cost"] = 2
	dc.PriorityWeights["cost"] = 2
	assert.Equal(t, "cpu", dcClone.CurrentState["metric"])
	assert.Equal(t, 1.0, dcClone.Alternatives[0].Attributes["cost"])
	assert.Equal(t, 1.0, dcClone.PriorityWeights["cost"])

	series := SeriesInput{Metric: "m", Values: []float64{1, 2}}
	sClone := CloneInput(series).(SeriesInput)
	series.Values[0] = 9
	assert.Equal(t, 1.0, sClone.Values[0])
}

func TestMemoryBinding_TTL(t *testing.T) {
	desc := AgentDescriptor{
		ID:      "sage",
		Name:    "Sage",
		Version: "1.0.0",
		Kind:    KindAdvisory,
		Memory:  MemoryBinding{Type: MemoryPersistent, TTL: time.Hour},
	}
	require.NoError(t, desc.Validate())
	assert.Equal(t, time.Hour, desc.Clone().Memory.TTL)
}
