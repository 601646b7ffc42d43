package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trinity/core"
)

const sampleYAML = `
logging:
  level: debug
  format: json

store:
  type: sqlite
  path: /var/lib/trinity/memory.db
  ttl: 24h

oracle:
  id: oracle-prod
  name: Production Oracle
  retention: 250

sentinel:
  id: sentinel-prod
  memory: persistent
  memory_ttl: 1h

thresholds:
  cpu-high:
    metric: cpu
    condition: gt
    value: 85
    severity: critical
    description: sustained CPU saturation
  latency-warn:
    metric: p99_latency_ms
    condition: gte
    value: 250

targets:
  - id: web-1
    interval: 30s
    timeout: 5s
    thresholds: [cpu-high]

coordinator:
  forecast_confidence: 0.9
  threshold_factor: 0.8
  advice_timeout: 10s
`

func TestParse_AppliesFileOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)

	// File overrides win; untouched defaults survive.
	assert.Equal(t, "oracle-prod", cfg.Oracle.ID)
	assert.Equal(t, 250, cfg.Oracle.Retention)
	assert.Equal(t, "sage", cfg.Sage.ID)
	assert.Equal(t, "persistent", cfg.Sentinel.Memory)
	assert.Equal(t, time.Hour, cfg.Sentinel.MemoryTTL)

	require.Len(t, cfg.Thresholds, 2)
	cpu := cfg.Thresholds["cpu-high"].Threshold()
	assert.Equal(t, core.ConditionGT, cpu.Condition)
	assert.Equal(t, core.AlertCritical, cpu.Severity)
	assert.InDelta(t, 85, cpu.Value, 1e-9)
	// Unset severity falls back to warning.
	assert.Equal(t, core.AlertWarning, cfg.Thresholds["latency-warn"].Threshold().Severity)

	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, 30*time.Second, cfg.Targets[0].Interval)
	assert.Equal(t, []string{"cpu-high"}, cfg.Targets[0].Thresholds)

	assert.InDelta(t, 0.9, cfg.Coordinator.ForecastConfidence, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Coordinator.AdviceTimeout)
}

func TestParse_EmptyInputYieldsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Oracle.ID, cfg.Oracle.ID)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Empty(t, cfg.Thresholds)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "store: [unclosed"},
		{"unknown store type", "store:\n  type: redis"},
		{"sqlite without path", "store:\n  type: sqlite"},
		{"missing agent id", "oracle:\n  id: \"\""},
		{"bad memory binding", "sage:\n  memory: quantum"},
		{"negative retention", "oracle:\n  retention: -1"},
		{"threshold without metric", "thresholds:\n  broken:\n    value: 1"},
		{"target without id", "targets:\n  - interval: 10s"},
		{"target without interval", "targets:\n  - id: web-1"},
		{"duplicate target id", "targets:\n  - id: web-1\n    interval: 10s\n  - id: web-1\n    interval: 20s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trinity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "oracle-prod", cfg.Oracle.ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAgentConfig_Descriptor(t *testing.T) {
	ac := AgentConfig{
		ID:           "oracle-prod",
		Name:         "Oracle",
		Version:      "2.1.0",
		Capabilities: []string{"forecast"},
		Memory:       "persistent",
		MemoryTTL:    time.Hour,
	}

	desc := ac.Descriptor(core.KindPrediction)
	require.NoError(t, desc.Validate())
	assert.Equal(t, core.KindPrediction, desc.Kind)
	assert.Equal(t, core.MemoryPersistent, desc.Memory.Type)
	assert.Equal(t, time.Hour, desc.Memory.TTL)

	ephemeral := AgentConfig{ID: "x", Name: "X", Version: "1.0.0"}.Descriptor(core.KindAdvisory)
	assert.Equal(t, core.MemoryEphemeral, ephemeral.Memory.Type)
}
