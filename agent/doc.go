// Package agent provides the substrate shared by every Trinity agent: the
// Base type bundles lifecycle management (Initialize/Shutdown), the bounded
// execution history, the per-agent key/value state store, execution metrics
// and the event emission point. Concrete agents (oracle, sentinel, sage)
// embed *Base and route their Execute implementations through Base.Run so
// that bookkeeping, failure accounting and event publication behave
// identically across agent kinds.
package agent
