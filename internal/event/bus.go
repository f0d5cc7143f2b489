// Package event provides the in-process publish/subscribe bus used for
// cross-module notifications (health transitions, scan lifecycle).
package event

import (
	"context"
	"sync"

	"github.com/HerbHall/scanfleet/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

// subscription is one registered handler with a removal token.
type subscription struct {
	id      int
	handler plugin.EventHandler
}

// Bus is a thread-safe in-memory event bus. Handlers run synchronously on
// Publish and on a separate goroutine on PublishAsync. A panicking handler
// is recovered and logged; remaining handlers still run.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	byTopic  map[string][]subscription
	wildcard []subscription
	logger   *zap.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		byTopic: make(map[string][]subscription),
		logger:  logger,
	}
}

// Subscribe registers a handler for a single topic and returns an
// unsubscribe function.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.byTopic[topic] = append(b.byTopic[topic], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byTopic[topic] = removeSubscription(b.byTopic[topic], id)
	}
}

// SubscribeAll registers a handler for every topic and returns an
// unsubscribe function.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.wildcard = append(b.wildcard, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.wildcard = removeSubscription(b.wildcard, id)
	}
}

// Publish delivers the event synchronously to all matching subscribers.
// Publishing with no subscribers is not an error.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	for _, sub := range b.snapshot(event.Topic) {
		b.dispatch(ctx, sub, event)
	}
	return nil
}

// PublishAsync delivers the event on a separate goroutine.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	subs := b.snapshot(event.Topic)
	go func() {
		for _, sub := range subs {
			b.dispatch(ctx, sub, event)
		}
	}()
}

// snapshot returns the handlers to invoke for a topic, copied under the
// read lock so handlers can subscribe or unsubscribe without deadlocking.
func (b *Bus) snapshot(topic string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := make([]subscription, 0, len(b.byTopic[topic])+len(b.wildcard))
	subs = append(subs, b.byTopic[topic]...)
	subs = append(subs, b.wildcard...)
	return subs
}

// dispatch invokes one handler, recovering panics so a broken subscriber
// cannot take down the publisher or its siblings.
func (b *Bus) dispatch(ctx context.Context, sub subscription, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	sub.handler(ctx, event)
}

func removeSubscription(subs []subscription, id int) []subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
