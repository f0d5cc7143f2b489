package testutil

import (
	"context"
	"sync"

	"github.com/HerbHall/scanfleet/pkg/plugin"
)

// Compile-time interface check.
var _ plugin.EventBus = (*MockBus)(nil)

// MockBus records every published event for later inspection. Both Publish
// and PublishAsync record synchronously, so tests can assert on Events
// immediately after the code under test returns.
type MockBus struct {
	mu       sync.Mutex
	recorded []plugin.Event
}

// NewMockBus returns an empty MockBus.
func NewMockBus() *MockBus {
	return &MockBus{}
}

// Publish records the event.
func (b *MockBus) Publish(_ context.Context, event plugin.Event) error {
	b.record(event)
	return nil
}

// PublishAsync records the event synchronously.
func (b *MockBus) PublishAsync(_ context.Context, event plugin.Event) {
	b.record(event)
}

// Subscribe is a no-op; tests wire handlers directly.
func (b *MockBus) Subscribe(_ string, _ plugin.EventHandler) func() {
	return func() {}
}

// SubscribeAll is a no-op; tests wire handlers directly.
func (b *MockBus) SubscribeAll(_ plugin.EventHandler) func() {
	return func() {}
}

// Events returns a copy of every recorded event, in publish order.
func (b *MockBus) Events() []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]plugin.Event(nil), b.recorded...)
}

// ByTopic returns the recorded events matching topic, in publish order.
func (b *MockBus) ByTopic(topic string) []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []plugin.Event
	for _, e := range b.recorded {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears all recorded events.
func (b *MockBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recorded = nil
}

func (b *MockBus) record(event plugin.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recorded = append(b.recorded, event)
}
