package core

import "time"

// Result is the envelope returned by a successful Execute call. Output holds
// the typed domain payload (*Prediction, *EvaluationReport, *Advice, ...);
// the metadata fields describe the invocation itself.
type Result struct {
	Output    any           `json:"output"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// ExecutionRecord is the durable log entry for one Execute invocation. It is
// owned exclusively by the agent that produced it and appended to a bounded
// per-agent history in completion order.
type ExecutionRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Input     any           `json:"input,omitempty"`
	Output    any           `json:"output,omitempty"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// Metrics aggregates per-agent execution counters. Values are updated
// atomically after every Execute call, successes and failures alike, so a
// retried call increments ExecutionCount once per attempt.
type Metrics struct {
	ExecutionCount int64         `json:"execution_count"`
	FailureCount   int64         `json:"failure_count"`
	AvgDuration    time.Duration `json:"avg_duration"`
	LastExecuted   time.Time     `json:"last_executed"`
}
