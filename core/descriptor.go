package core

import (
	"fmt"
	"time"
)

// AgentKind categorizes the specialized behavior an agent implements.
type AgentKind string

const (
	// KindPrediction identifies forecasting / classification agents.
	KindPrediction AgentKind = "prediction"
	// KindMonitoring identifies threshold evaluation / alerting agents.
	KindMonitoring AgentKind = "monitoring"
	// KindAdvisory identifies recommendation / decision support agents.
	KindAdvisory AgentKind = "advisory"
)

// MemoryType selects the backing store class for an agent's memory binding.
type MemoryType string

const (
	// MemoryEphemeral keeps agent state in process memory only.
	MemoryEphemeral MemoryType = "ephemeral"
	// MemoryPersistent flushes agent state to a durable Store on shutdown.
	MemoryPersistent MemoryType = "persistent"
)

// MemoryBinding declares how an agent's cross-call state is retained.
// TTL bounds the lifetime of persisted entries; zero means no expiry.
type MemoryBinding struct {
	Type MemoryType    `json:"type" yaml:"type"`
	TTL  time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// AgentDescriptor carries the identity and static configuration of an agent
// instance. It is fixed at construction time and immutable thereafter; the
// runtime copies it on read so callers can never mutate a live agent's
// identity.
type AgentDescriptor struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Version      string        `json:"version" yaml:"version"`
	Kind         AgentKind     `json:"kind" yaml:"kind"`
	Capabilities []string      `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Memory       MemoryBinding `json:"memory" yaml:"memory"`
}

// Validate reports whether the descriptor is well formed enough to construct
// an agent from. ID and Kind are mandatory; everything else has usable zero
// values.
func (d AgentDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("agent descriptor: missing id")
	}
	switch d.Kind {
	case KindPrediction, KindMonitoring, KindAdvisory:
	default:
		return fmt.Errorf("agent descriptor %q: unknown kind %q", d.ID, d.Kind)
	}
	if d.Memory.Type == "" {
		return nil // defaults to ephemeral
	}
	if d.Memory.Type != MemoryEphemeral && d.Memory.Type != MemoryPersistent {
		return fmt.Errorf("agent descriptor %q: unknown memory type %q", d.ID, d.Memory.Type)
	}
	return nil
}

// HasCapability reports whether the declared capability set contains c.
func (d AgentDescriptor) HasCapability(c string) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of the descriptor.
func (d AgentDescriptor) Clone() AgentDescriptor {
	c := d
	c.Capabilities = append([]string(nil), d.Capabilities...)
	return c
}
