// Package memory provides core.Store implementations backing agent memory
// bindings: a process-local InMemoryStore for ephemeral bindings and tests,
// and a SQLiteStore for persistent bindings with TTL-bounded entries.
package memory
