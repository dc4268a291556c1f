package resource

import (
	"sync"
)

// eventBuffer is the per-subscriber channel capacity
const eventBuffer = 64

// Event reports that the local sync metadata of a node changed
type Event struct {
	Path Path
}

// Events fans local metadata change events out to subscribers. A Store owns
// one instance and hands it to whoever needs to listen, so there is no
// process-wide listener registry.
type Events struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewEvents creates a new event broadcaster
func NewEvents() *Events {
	return &Events{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (e *Events) Subscribe() chan Event {
	ch := make(chan Event, eventBuffer)
	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (e *Events) Unsubscribe(ch chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subscribers[ch]; !ok {
		return
	}
	delete(e.subscribers, ch)
	close(ch)
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (e *Events) Publish(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for ch := range e.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Count returns the current number of subscribers
func (e *Events) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers)
}
