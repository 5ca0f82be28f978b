package events

import (
	"context"
	"sync"

	"docworker/core/metrics"
)

// TypedEvent is implemented by every payload published on the bus.
type TypedEvent interface {
	EventType() string
}

// Bus is a small in-process pub/sub used to fan worker lifecycle events out to
// observers (the ops server, tests) without sharing state with the loop.
// Publish never blocks: a full subscriber misses the event.
type Bus interface {
	Subscribe(topic string) (<-chan TypedEvent, func())
	Publish(ctx context.Context, topic string, payload TypedEvent)
	Close()
}

// DefaultBuffer is the per-subscriber channel capacity used by New.
const DefaultBuffer = 16

type subscriber chan TypedEvent

type bus struct {
	mu     sync.RWMutex
	buffer int
	topics map[string]map[subscriber]struct{}
	closed bool
}

// New returns a bus with DefaultBuffer capacity per subscriber.
func New() Bus {
	return NewWithBuffer(DefaultBuffer)
}

// NewWithBuffer returns a bus whose subscribers buffer up to n events.
func NewWithBuffer(n int) Bus {
	if n < 1 {
		n = 1
	}
	return &bus{buffer: n, topics: make(map[string]map[subscriber]struct{})}
}

func (b *bus) Subscribe(topic string) (<-chan TypedEvent, func()) {
	ch := make(subscriber, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[subscriber]struct{})
		b.topics[topic] = subs
	}
	subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(topic, ch) })
	}
}

func (b *bus) unsubscribe(topic string, ch subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	if _, exists := subs[ch]; !exists {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

func (b *bus) Publish(ctx context.Context, topic string, payload TypedEvent) {
	// Sends happen under the read lock so a concurrent unsubscribe cannot close
	// a channel mid-send; sends are non-blocking so the lock is held briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.topics[topic] {
		if ctx.Err() != nil {
			return
		}
		select {
		case ch <- payload:
		default:
			metrics.EventsDropped.WithLabelValues(topic).Inc()
		}
	}
}

func (b *bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.topics {
		for ch := range subs {
			close(ch)
		}
		delete(b.topics, topic)
	}
}
