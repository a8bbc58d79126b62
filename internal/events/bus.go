// Package events provides an in-process pub/sub bus and an append-only audit
// log for coordination actions.
package events

import (
	"sync"
	"time"
)

// EventType identifies a coordination action.
type EventType string

const (
	// EventAssignmentCreated fires when an item is linked to an agent.
	EventAssignmentCreated EventType = "assignment_created"
	// EventAssignmentCleared fires when an item is unlinked from its agent.
	EventAssignmentCleared EventType = "assignment_cleared"
	// EventProgressRecorded fires when a progress event is appended.
	EventProgressRecorded EventType = "progress_recorded"
	// EventStaleReminder fires when a stale assignment gets a reminder.
	EventStaleReminder EventType = "stale_reminder"
	// EventItemReassigned fires when an abandoned item is reselected.
	EventItemReassigned EventType = "item_reassigned"
	// EventSyncCompleted fires after a reconciliation pass folds remote state.
	EventSyncCompleted EventType = "sync_completed"
)

// Event is a coordination action notification.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]any
}

// Subscriber receives events asynchronously.
type Subscriber func(Event)

// Bus delivers events to subscribers over buffered channels. Publishing
// never blocks: if a subscriber's buffer is full the event is dropped for
// that subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function. Panics inside fn are swallowed so one bad subscriber cannot take
// the bus down.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			func() {
				defer func() { _ = recover() }()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish delivers an event to all subscribers of its type without blocking.
func (b *Bus) Publish(eventType EventType, data map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
			// buffer full, drop for this subscriber
		}
	}
}

// Close shuts down all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}
