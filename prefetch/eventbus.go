package prefetch

import (
	"sync"
)

// LoadEvent describes the outcome of one background decode.
type LoadEvent struct {
	Slot   int       `json:"slot"`
	Item   string    `json:"item"`
	Name   string    `json:"name"`
	Ticket uint64    `json:"ticket"`
	Status SlotState `json:"-"`
	State  string    `json:"state"`
	Error  string    `json:"error,omitempty"`
	// Stale is set when the slot was reassigned before the decode finished
	// and the result was discarded.
	Stale bool `json:"stale,omitempty"`

	Err error `json:"-"`
}

// EventBus broadcasts LoadEvents to every subscriber.
type EventBus struct {
	mu      sync.RWMutex
	clients map[chan LoadEvent]struct{}
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		clients: make(map[chan LoadEvent]struct{}),
	}
}

// Subscribe registers a new client and returns its event channel.
func (b *EventBus) Subscribe() chan LoadEvent {
	ch := make(chan LoadEvent, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *EventBus) Unsubscribe(ch chan LoadEvent) {
	b.mu.Lock()
	_, ok := b.clients[ch]
	delete(b.clients, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish sends an event to all subscribers. Slow subscribers miss events
// rather than stall a decode worker.
func (b *EventBus) Publish(event LoadEvent) {
	event.State = event.Status.String()
	if event.Err != nil {
		event.Error = event.Err.Error()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
