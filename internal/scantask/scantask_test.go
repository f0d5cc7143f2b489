package scantask

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/HerbHall/scanfleet/internal/config"
	"github.com/HerbHall/scanfleet/internal/fleet"
	"github.com/HerbHall/scanfleet/internal/testutil"
	"github.com/HerbHall/scanfleet/pkg/plugin"
)

func TestModule_InitRequiresStore(t *testing.T) {
	m := New()
	deps := plugin.Dependencies{
		Logger: testutil.Logger(),
		Config: config.New(viper.New()),
	}
	if err := m.Init(context.Background(), deps); err == nil {
		t.Error("Init should fail without a store")
	}
}

func TestModule_Lifecycle(t *testing.T) {
	v := viper.New()
	v.Set("poll_interval", "10ms")

	m := New()
	deps := plugin.Dependencies{
		Logger: testutil.Logger(),
		Config: config.New(v),
		Bus:    testutil.NewMockBus(),
		Store:  testutil.NewStore(t),
	}
	ctx := context.Background()
	if err := m.Init(ctx, deps); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(m.Routes()) == 0 {
		t.Error("module should expose routes")
	}
	if len(m.Subscriptions()) == 0 {
		t.Error("module should subscribe to fleet health changes")
	}

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let the guard loop run at least once against the empty store.
	deadline := time.After(time.Second)
	for m.guard.CheckedAt().IsZero() {
		select {
		case <-deadline:
			t.Fatal("guard never refreshed")
		case <-time.After(time.Millisecond):
		}
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestModule_HealthChangeHandlerIgnoresHealthy(t *testing.T) {
	m := New()
	deps := plugin.Dependencies{
		Logger: testutil.Logger(),
		Config: config.New(viper.New()),
		Bus:    testutil.NewMockBus(),
		Store:  testutil.NewStore(t),
	}
	if err := m.Init(context.Background(), deps); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Must not panic on foreign payloads or healthy transitions.
	m.onHealthChanged(context.Background(), plugin.Event{Topic: fleet.TopicHealthChanged, Payload: "garbage"})
	m.onHealthChanged(context.Background(), plugin.Event{
		Topic:   fleet.TopicHealthChanged,
		Payload: fleet.HealthChangedPayload{ScannerKey: "satellite_a", Status: "healthy"},
	})
}
