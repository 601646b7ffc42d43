// Package core defines the shared contracts of the Trinity runtime: the
// Agent interface every specialized agent implements, the immutable
// AgentDescriptor identity, the execution envelope (Result, ExecutionRecord,
// Metrics), the domain value types exchanged between agents (Prediction,
// Threshold, Alert, Recommendation) and the typed event bus used by the
// Coordinator to route between agents without direct coupling.
//
// Nothing in this package performs domain work; it exists so that the
// oracle, sentinel, sage and coordinator packages can interoperate through
// narrow, checkable types instead of loosely typed bags of fields.
package core
