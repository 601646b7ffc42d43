package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeFiltersByKind(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	alerts, cancel := bus.Subscribe(4, EventAlertRaised)
	defer cancel()

	bus.Publish(NewEvent("oracle", PredictionPayload{Prediction: Prediction{Model: "trend-v1"}}))
	bus.Publish(NewEvent("sentinel", AlertPayload{Alert: Alert{ID: "a-1"}}))

	select {
	case ev := <-alerts:
		assert.Equal(t, EventAlertRaised, ev.Kind())
		assert.Equal(t, "sentinel", ev.Source)
	case <-time.After(time.Second):
		t.Fatal("expected the alert event")
	}
	select {
	case ev := <-alerts:
		t.Fatalf("unexpected event %q", ev.Kind())
	default:
	}
}

func TestBus_SubscribeAllKinds(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all, cancel := bus.Subscribe(4)
	defer cancel()

	bus.Publish(NewEvent("oracle", PredictionPayload{}))
	bus.Publish(NewEvent("sage", RecommendationPayload{}))

	kinds := []EventKind{(<-all).Kind(), (<-all).Kind()}
	assert.Equal(t, []EventKind{EventPredictionGenerated, EventRecommendationGenerated}, kinds)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	// The second publish overflows the buffer and must be dropped, not block.
	done := make(chan struct{})
	go func() {
		bus.Publish(NewEvent("oracle", PredictionPayload{}))
		bus.Publish(NewEvent("oracle", PredictionPayload{}))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe(4)
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancellation must not panic.
	bus.Publish(NewEvent("oracle", PredictionPayload{}))
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe(4)

	bus.Close()
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	bus.Publish(NewEvent("oracle", PredictionPayload{}))

	late, cancel := bus.Subscribe(4)
	defer cancel()
	_, open = <-late
	assert.False(t, open)
}

func TestNewEvent_PopulatesEnvelope(t *testing.T) {
	ev := NewEvent("sentinel", AlertPayload{Alert: Alert{ID: "a-1"}, Resolved: true})
	require.NotEmpty(t, ev.ID)
	assert.Equal(t, "sentinel", ev.Source)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, EventAlertResolved, ev.Kind())
}
