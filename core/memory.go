package core

import (
	"context"
	"time"
)

// Store is the pluggable key-value persistence contract backing
// MemoryPersistent agent bindings. Keys are namespaced by the caller
// (typically "state/<agentID>"); values are opaque bytes so implementations
// need no knowledge of agent state shapes.
//
// Implementations must be safe for concurrent use. A zero TTL means the
// entry never expires.
type Store interface {
	// Get returns the value for key and whether it exists (expired entries
	// count as absent).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put writes the value under key, replacing any previous entry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry for key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying resources.
	Close() error
}
