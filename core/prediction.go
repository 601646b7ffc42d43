package core

import "time"

// SeverityTier grades anomaly findings and alert levels.
type SeverityTier string

const (
	SeverityLow      SeverityTier = "low"
	SeverityMedium   SeverityTier = "medium"
	SeverityHigh     SeverityTier = "high"
	SeverityCritical SeverityTier = "critical"
)

// Factor describes one contributing input to a prediction: its importance
// weight (non-negative), the direction it pushed the outcome, and a
// human-readable explanation.
type Factor struct {
	Name        string  `json:"name"`
	Importance  float64 `json:"importance"`
	Direction   string  `json:"direction"` // "positive" | "negative" | "neutral"
	Description string  `json:"description,omitempty"`
}

// Prediction is the Oracle output shape shared across forecasting,
// classification and anomaly detection.
//
// Invariants: Confidence is always within [0,1]; Factor importances are
// non-negative. Confidence is derived from measurable properties of the
// input (variance, distance from expected range), never a fixed constant.
type Prediction struct {
	Model       string       `json:"model"`
	Metric      string       `json:"metric,omitempty"`
	Value       float64      `json:"value,omitempty"`
	Class       string       `json:"class,omitempty"`
	Probability float64      `json:"probability,omitempty"`
	Confidence  float64      `json:"confidence"`
	Factors     []Factor     `json:"factors,omitempty"`
	IsAnomaly   bool         `json:"is_anomaly,omitempty"`
	Severity    SeverityTier `json:"severity,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Clone returns an independent copy of the prediction.
func (p Prediction) Clone() Prediction {
	c := p
	c.Factors = append([]Factor(nil), p.Factors...)
	return c
}
