package sage

import (
	"fmt"

	"github.com/hupe1980/trinity/core"
)

// AddKnowledge writes a namespaced bag of domain facts, replacing any
// previous entry for the domain (last write wins, no merge semantics). The
// data is deep-copied on write so later caller mutations never leak in.
func (s *Sage) AddKnowledge(domain string, data map[string]any) error {
	if domain == "" {
		return fmt.Errorf("knowledge domain required: %w", core.ErrInvalidInput)
	}
	if data == nil {
		return fmt.Errorf("knowledge data required: %w", core.ErrInvalidInput)
	}
	cp, ok := deepCopyValue(data).(map[string]any)
	if !ok {
		return fmt.Errorf("knowledge data not copyable: %w", core.ErrInvalidInput)
	}

	s.mu.Lock()
	s.knowledge[domain] = cp
	s.mu.Unlock()
	return nil
}

// GetKnowledge returns a deep copy of the facts stored for domain and
// whether the domain exists. The copy round-trips exactly what AddKnowledge
// stored.
func (s *Sage) GetKnowledge(domain string) (map[string]any, bool) {
	s.mu.RLock()
	stored, ok := s.knowledge[domain]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	cp, _ := deepCopyValue(stored).(map[string]any)
	return cp, true
}

// KnowledgeDomains returns the registered domain keys.
func (s *Sage) KnowledgeDomains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.knowledge))
	for k := range s.knowledge {
		out = append(out, k)
	}
	return out
}

// deepCopyValue copies the JSON-like subset of Go values (maps, slices,
// scalars). Unknown types are passed through by value.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, inner := range t {
			cp[k] = deepCopyValue(inner)
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, inner := range t {
			cp[i] = deepCopyValue(inner)
		}
		return cp
	default:
		return v
	}
}
