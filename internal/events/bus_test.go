package events

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	got := make(chan Event, 1)
	bus.Subscribe(EventAssignmentCreated, func(ev Event) {
		got <- ev
	})

	bus.Publish(EventAssignmentCreated, map[string]any{"item_id": 101, "agent": "S"})

	select {
	case ev := <-got:
		if ev.Type != EventAssignmentCreated {
			t.Errorf("type: got %s", ev.Type)
		}
		if ev.Data["item_id"] != 101 {
			t.Errorf("item_id: got %v", ev.Data["item_id"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	var count atomic.Int32
	unsub := bus.Subscribe(EventProgressRecorded, func(Event) {
		count.Add(1)
	})

	bus.Publish(EventProgressRecorded, nil)
	time.Sleep(50 * time.Millisecond)
	unsub()
	bus.Publish(EventProgressRecorded, nil)
	time.Sleep(50 * time.Millisecond)

	if n := count.Load(); n != 1 {
		t.Errorf("want exactly 1 delivery, got %d", n)
	}
}

func TestBusIsolatesEventTypes(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	var count atomic.Int32
	bus.Subscribe(EventStaleReminder, func(Event) {
		count.Add(1)
	})

	bus.Publish(EventItemReassigned, nil)
	time.Sleep(50 * time.Millisecond)

	if count.Load() != 0 {
		t.Error("subscriber received event of another type")
	}
}

func TestBusSurvivesPanickingSubscriber(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	done := make(chan struct{})
	bus.Subscribe(EventSyncCompleted, func(Event) {
		panic("bad subscriber")
	})
	bus.Subscribe(EventSyncCompleted, func(Event) {
		close(done)
	})

	bus.Publish(EventSyncCompleted, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("healthy subscriber starved by panicking one")
	}
}
