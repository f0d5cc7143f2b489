package plugin

import (
	"context"
	"time"
)

// Event is a message published on the EventBus.
type Event struct {
	// Topic identifies the event type (e.g., "fleet.health_changed").
	Topic string

	// Source is the name of the publishing plugin.
	Source string

	// Timestamp records when the event was created.
	Timestamp time.Time

	// Payload carries the event-specific data.
	Payload any
}

// EventHandler processes a single event. Handlers must not block for long;
// use PublishAsync on the producing side for slow consumers.
type EventHandler func(ctx context.Context, event Event)

// Subscription pairs a topic with a handler, declared by EventSubscriber plugins.
type Subscription struct {
	Topic   string
	Handler EventHandler
}

// EventBus is the in-process publish/subscribe contract.
type EventBus interface {
	// Publish delivers the event synchronously to all subscribers.
	Publish(ctx context.Context, event Event) error

	// PublishAsync delivers the event on a separate goroutine.
	PublishAsync(ctx context.Context, event Event)

	// Subscribe registers a handler for a topic. The returned function
	// removes the subscription.
	Subscribe(topic string, handler EventHandler) func()

	// SubscribeAll registers a handler for every topic.
	SubscribeAll(handler EventHandler) func()
}
