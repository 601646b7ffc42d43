// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug in
// any structured logger. It also offers construction helpers with contextual
// attributes (component, agent) and a domain helper for recording agent
// executions.
package logging
