// Package broadcast fans the bridge's settled results out to subscribers.
// The monitor submits market operations on a fixed interval; the broker
// delivers each published tick to topic subscribers and keeps the latest
// tick per topic for poll-style consumers.
package broadcast

import (
	"sync"

	"github.com/tomoyukiirino/spy-credit-spread/internal/market"
)

// subscriberBufferSize is the channel buffer for each subscriber.
// Ticks are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 16

// Broker manages per-topic tick delivery to subscribers. It is safe for
// concurrent use. Topics are long-lived; Close is terminal and ends every
// subscription.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

type topic struct {
	subs      map[int]chan market.Tick
	nextID    int
	latest    market.Tick
	hasLatest bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*topic),
	}
}

// Subscribe returns a channel receiving ticks for the given topic and an
// unsubscribe function. After Close, the returned channel is already closed.
func (b *Broker) Subscribe(name string) (<-chan market.Tick, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan market.Tick, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	t := b.topic(name)
	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := t.subs[id]; ok {
			delete(t.subs, id)
		}
	}
}

// Publish delivers a tick to all subscribers of its topic and records it as
// the topic's latest value. Ticks are dropped for subscribers whose buffers
// are full so a slow consumer never blocks the publisher.
func (b *Broker) Publish(tk market.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	t := b.topic(tk.Topic)
	t.latest = tk
	t.hasLatest = true

	for _, ch := range t.subs {
		select {
		case ch <- tk:
		default:
		}
	}
}

// Latest returns the most recently published tick on a topic, if any.
func (b *Broker) Latest(name string) (market.Tick, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[name]
	if !ok || !t.hasLatest {
		return market.Tick{}, false
	}
	return t.latest, true
}

// Close ends all subscriptions. Future Subscribe calls return a closed
// channel and future Publish calls are discarded.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, t := range b.topics {
		for id, ch := range t.subs {
			close(ch)
			delete(t.subs, id)
		}
	}
}

// topic returns the named topic, creating it if needed. Caller holds b.mu.
func (b *Broker) topic(name string) *topic {
	t, ok := b.topics[name]
	if !ok {
		t = &topic{subs: make(map[int]chan market.Tick)}
		b.topics[name] = t
	}
	return t
}
