// Copyright 2025 BPI Labs

package eventbus

import (
	"context"
	"testing"
)

func TestBusFansOutToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	ch1 := bus.Subscribe("distribution_records")
	ch2 := bus.Subscribe("distribution_records")
	other := bus.Subscribe("settlement_events")

	event := Event{Topic: "distribution_records", ID: "d1", Fields: map[string]interface{}{"window": 7}}
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch1:
		if got.ID != "d1" {
			t.Fatalf("expected event d1, got %v", got.ID)
		}
	default:
		t.Fatalf("expected ch1 to receive the published event")
	}

	select {
	case got := <-ch2:
		if got.ID != "d1" {
			t.Fatalf("expected event d1 on second subscriber, got %v", got.ID)
		}
	default:
		t.Fatalf("expected ch2 to receive the published event")
	}

	select {
	case <-other:
		t.Fatalf("expected settlement_events subscriber to receive nothing")
	default:
	}
}

func TestDisabledClientPublishIsNoOp(t *testing.T) {
	client, err := NewClient(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	bus := NewBus(client)
	err = bus.Publish(context.Background(), Event{Topic: "settlement_events", ID: "s1", Fields: map[string]interface{}{"phase": "locked"}})
	if err != nil {
		t.Fatalf("expected no-op publish on disabled client, got %v", err)
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe("settlement_events") // never drained

	for i := 0; i < 100; i++ {
		if err := bus.Publish(context.Background(), Event{Topic: "settlement_events", ID: "s"}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
}
