package core

import "sync"

// Bus is the typed publish/subscribe channel owned by the agent substrate.
// Agents publish domain events; the Coordinator (and any external
// notification sink) subscribes per event kind.
//
// Delivery is best-effort ordered per source: a single publisher's events
// arrive at each subscriber in publish order, but no total order across
// publishers is guaranteed. A slow subscriber whose buffer fills drops the
// event rather than blocking publishers; monitoring and prediction work must
// never stall on a lagging consumer.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	closed bool
}

type subscription struct {
	kinds map[EventKind]bool // empty means all kinds
	ch    chan Event
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers interest in the given kinds (all kinds when none are
// given) and returns the delivery channel plus a cancel function. The
// channel is closed by cancel or by Bus.Close.
func (b *Bus) Subscribe(buffer int, kinds ...EventKind) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscription{kinds: make(map[EventKind]bool, len(kinds)), ch: make(chan Event, buffer)}
	for _, k := range kinds {
		sub.kinds[k] = true
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { b.remove(sub) })
	}
	return sub.ch, cancel
}

// Publish delivers ev to every matching subscriber. It never blocks: if a
// subscriber's buffer is full the event is dropped for that subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if len(sub.kinds) > 0 && !sub.kinds[ev.Kind()] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber lagging; drop rather than stall publishers.
		}
	}
}

// Close terminates the bus and closes all subscriber channels. Publishing
// after Close is a no-op. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

func (b *Bus) remove(target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for i, sub := range b.subs {
		if sub == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}
