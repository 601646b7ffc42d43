package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the payload variants carried on the bus.
type EventKind string

const (
	// EventPredictionGenerated carries a PredictionPayload.
	EventPredictionGenerated EventKind = "prediction.generated"
	// EventAlertRaised carries an AlertPayload for a newly opened alert.
	EventAlertRaised EventKind = "alert.raised"
	// EventAlertResolved carries an AlertPayload for a closed alert.
	EventAlertResolved EventKind = "alert.resolved"
	// EventRecommendationGenerated carries a RecommendationPayload.
	EventRecommendationGenerated EventKind = "recommendation.generated"
	// EventAgentFailed carries a FailurePayload describing an Execute error.
	EventAgentFailed EventKind = "agent.failed"
)

// Payload is the sum type for event bodies. Consumers type-switch on the
// concrete payload (or branch on Event.Kind) instead of string-comparing
// loosely keyed maps.
type Payload interface {
	Kind() EventKind
}

// PredictionPayload is emitted by the Oracle after a successful prediction.
type PredictionPayload struct {
	Prediction Prediction `json:"prediction"`
}

// Kind implements Payload.
func (PredictionPayload) Kind() EventKind { return EventPredictionGenerated }

// AlertPayload is emitted by the Sentinel when an alert opens or closes.
type AlertPayload struct {
	Alert    Alert `json:"alert"`
	Resolved bool  `json:"resolved"`
}

// Kind implements Payload.
func (p AlertPayload) Kind() EventKind {
	if p.Resolved {
		return EventAlertResolved
	}
	return EventAlertRaised
}

// RecommendationPayload is emitted by the Sage after producing advice.
type RecommendationPayload struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// Kind implements Payload.
func (RecommendationPayload) Kind() EventKind { return EventRecommendationGenerated }

// FailurePayload reports a failed Execute so observers can track agent
// health without polling metrics.
type FailurePayload struct {
	Error string `json:"error"`
}

// Kind implements Payload.
func (FailurePayload) Kind() EventKind { return EventAgentFailed }

// Event is the unit of cross-agent communication. After emission it is
// immutable; payloads are copied on publish so no two agents ever share a
// mutable reference.
type Event struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"` // agent ID that emitted the event
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// NewEvent constructs an event authored by source carrying payload.
func NewEvent(source string, payload Payload) Event {
	return Event{
		ID:        NewID(),
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Kind returns the payload's event kind, or "" for a payload-less event.
func (e Event) Kind() EventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// NewID generates a unique identifier for events and execution records.
func NewID() string { return uuid.NewString() }
