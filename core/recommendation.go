package core

import "time"

// ImpactTier grades the expected blast radius of a recommended action.
type ImpactTier string

const (
	ImpactLow      ImpactTier = "low"
	ImpactMedium   ImpactTier = "medium"
	ImpactHigh     ImpactTier = "high"
	ImpactCritical ImpactTier = "critical"
)

// Recommendation is a single ranked, explainable advisory action.
//
// Invariants: Impact is drawn from the fixed tier set and Confidence lies in
// (0,1] for every recommendation an execution returns, regardless of whether
// the input was a free-form query or a structured decision context.
type Recommendation struct {
	Action      string     `json:"action"`
	Description string     `json:"description"`
	Confidence  float64    `json:"confidence"`
	Impact      ImpactTier `json:"impact"`
	Reasoning   string     `json:"reasoning,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Alternative is one named option considered in a decision matrix, with
// attribute values keyed by criterion name.
type Alternative struct {
	Name       string             `json:"name"`
	Attributes map[string]float64 `json:"attributes"`
}

// RankedAlternative pairs an alternative with its computed weighted score
// and final position (1-based, highest score first).
type RankedAlternative struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// DecisionMatrix exposes the outcome of a weighted multi-criteria analysis:
// normalized priority weights and the full ranking, highest score first with
// ties broken by alternative insertion order.
type DecisionMatrix struct {
	Weights map[string]float64  `json:"weights"`
	Ranking []RankedAlternative `json:"ranking"`
}
