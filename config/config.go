// Package config loads the runtime configuration from YAML: agent
// descriptors, monitoring thresholds and targets, memory-store backing, and
// coordinator routing knobs.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/trinity/core"
	"github.com/hupe1980/trinity/logging"
)

// Config is the root runtime configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`

	Oracle   AgentConfig `yaml:"oracle"`
	Sentinel AgentConfig `yaml:"sentinel"`
	Sage     AgentConfig `yaml:"sage"`

	Thresholds map[string]ThresholdConfig `yaml:"thresholds"`
	Targets    []TargetConfig             `yaml:"targets"`

	Coordinator CoordinatorConfig `yaml:"coordinator"`
}

// LoggingConfig is the YAML form of the logger settings.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`
	// Format is "json" or "text".
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Logger builds a structured logger from the section.
func (l LoggingConfig) Logger() logging.Logger {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return logging.New(&logging.Config{Level: level, Format: l.Format, AddSource: l.AddSource})
}

// StoreConfig selects the memory-store backing shared by agents with a
// persistent memory binding.
type StoreConfig struct {
	// Type is "memory" or "sqlite".
	Type string `yaml:"type"`
	// Path is the database file for the sqlite type.
	Path string `yaml:"path"`
	// TTL bounds entry lifetime; 0 keeps entries until overwritten.
	TTL time.Duration `yaml:"ttl"`
}

// AgentConfig shapes one agent's descriptor and execution bookkeeping.
type AgentConfig struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Capabilities []string      `yaml:"capabilities"`
	Memory       string        `yaml:"memory"` // "ephemeral" or "persistent"
	MemoryTTL    time.Duration `yaml:"memory_ttl"`
	Retention    int           `yaml:"retention"`
}

// ThresholdConfig is the YAML form of a monitoring threshold.
type ThresholdConfig struct {
	Metric      string  `yaml:"metric"`
	Condition   string  `yaml:"condition"`
	Value       float64 `yaml:"value"`
	Severity    string  `yaml:"severity"`
	Description string  `yaml:"description"`
}

// TargetConfig is the YAML form of a monitored target.
type TargetConfig struct {
	ID         string        `yaml:"id"`
	Interval   time.Duration `yaml:"interval"`
	Timeout    time.Duration `yaml:"timeout"`
	Thresholds []string      `yaml:"thresholds"`
}

// CoordinatorConfig tunes event routing.
type CoordinatorConfig struct {
	ForecastConfidence float64       `yaml:"forecast_confidence"`
	ThresholdFactor    float64       `yaml:"threshold_factor"`
	AdviceTimeout      time.Duration `yaml:"advice_timeout"`
}

// Default returns a configuration with every field at its documented
// default. Load starts from this so a sparse file stays valid.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Store:   StoreConfig{Type: "memory"},
		Oracle: AgentConfig{
			ID: "oracle", Name: "Oracle", Version: "1.0.0",
			Capabilities: []string{"forecast", "classify", "anomaly-detection"},
			Memory:       "ephemeral",
		},
		Sentinel: AgentConfig{
			ID: "sentinel", Name: "Sentinel", Version: "1.0.0",
			Capabilities: []string{"threshold-monitoring", "alerting"},
			Memory:       "ephemeral",
		},
		Sage: AgentConfig{
			ID: "sage", Name: "Sage", Version: "1.0.0",
			Capabilities: []string{"advisory", "decision-analysis"},
			Memory:       "ephemeral",
		},
	}
}

// Load reads and validates a YAML configuration file, applying defaults for
// anything the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes over the default configuration and validates the
// result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the YAML schema cannot express.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store: sqlite type requires a path")
		}
	default:
		return fmt.Errorf("store: unknown type %q", c.Store.Type)
	}

	for section, ac := range map[string]AgentConfig{"oracle": c.Oracle, "sentinel": c.Sentinel, "sage": c.Sage} {
		if ac.ID == "" {
			return fmt.Errorf("%s: id is required", section)
		}
		if ac.Memory != "" && ac.Memory != string(core.MemoryEphemeral) && ac.Memory != string(core.MemoryPersistent) {
			return fmt.Errorf("%s: unknown memory binding %q", section, ac.Memory)
		}
		if ac.Retention < 0 {
			return fmt.Errorf("%s: retention must be >= 0", section)
		}
	}

	for name, tc := range c.Thresholds {
		if tc.Metric == "" {
			return fmt.Errorf("threshold %q: metric is required", name)
		}
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, tc := range c.Targets {
		if tc.ID == "" {
			return fmt.Errorf("target: id is required")
		}
		if seen[tc.ID] {
			return fmt.Errorf("target %q: duplicate id", tc.ID)
		}
		seen[tc.ID] = true
		if tc.Interval <= 0 {
			return fmt.Errorf("target %q: interval must be > 0", tc.ID)
		}
	}
	return nil
}

// Descriptor builds the core descriptor for an agent section.
func (a AgentConfig) Descriptor(kind core.AgentKind) core.AgentDescriptor {
	memory := core.MemoryEphemeral
	if a.Memory == string(core.MemoryPersistent) {
		memory = core.MemoryPersistent
	}
	return core.AgentDescriptor{
		ID:           a.ID,
		Name:         a.Name,
		Version:      a.Version,
		Kind:         kind,
		Capabilities: append([]string(nil), a.Capabilities...),
		Memory:       core.MemoryBinding{Type: memory, TTL: a.MemoryTTL},
	}
}

// Threshold converts the YAML form into the core threshold type. Unknown
// condition or severity strings are carried through verbatim; the monitoring
// agent treats them as configuration warnings at evaluation time.
func (t ThresholdConfig) Threshold() core.Threshold {
	severity := core.AlertWarning
	if t.Severity == string(core.AlertCritical) {
		severity = core.AlertCritical
	}
	return core.Threshold{
		Metric:      t.Metric,
		Condition:   core.Condition(t.Condition),
		Value:       t.Value,
		Severity:    severity,
		Description: t.Description,
	}
}
