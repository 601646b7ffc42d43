package core

import "time"

// AlertState tracks the lifecycle position of an alert:
// raised -> acknowledged -> resolved, with raised -> resolved also possible
// directly when the underlying metric recovers without human involvement.
type AlertState string

const (
	AlertStateRaised       AlertState = "raised"
	AlertStateAcknowledged AlertState = "acknowledged"
	AlertStateResolved     AlertState = "resolved"
)

// Alert is the stateful record produced when a metric snapshot violates a
// Threshold. IDs are minted per raise (ULIDs, so history sorts
// chronologically); a threshold that resolves and later re-violates produces
// a new alert with a new ID.
type Alert struct {
	ID             string     `json:"id"`
	ThresholdName  string     `json:"threshold_name"`
	Metric         string     `json:"metric"`
	Value          float64    `json:"value"`
	Level          AlertLevel `json:"level"`
	Message        string     `json:"message"`
	State          AlertState `json:"state"`
	RaisedAt       time.Time  `json:"raised_at"`
	LastSeen       time.Time  `json:"last_seen"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedAt     time.Time  `json:"resolved_at,omitempty"`
}

// Active reports whether the alert is still open (not resolved).
func (a Alert) Active() bool { return a.State != AlertStateResolved }
