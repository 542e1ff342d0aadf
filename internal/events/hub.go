package events

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/transly/internal/metrics"
)

const defaultBuffer = 32

// Event is one broadcast notification
type Event struct {
	Name      string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans events out to the listeners registered at emission time.
// Delivery is best-effort: a listener whose buffer is full misses the event.
type Hub struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]chan Event
	buffer    int
}

// NewHub creates a hub giving each listener a buffer of the given size
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		buffer:    buffer,
	}
}

// Subscribe registers a listener; call cancel to unregister and close the channel
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Emit delivers the event to every current listener without blocking
func (h *Hub) Emit(name string, data any) {
	event := Event{Name: name, Data: data, Timestamp: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- event:
		default:
			metrics.EventsDropped.Inc()
		}
	}
}

// Listeners returns the number of registered listeners
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
