package logging

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is one broadcast log line.
type Entry struct {
	Time     time.Time `json:"ts"`
	Category string    `json:"cat"`
	Level    string    `json:"lvl"`
	Message  string    `json:"msg"`
}

// String formats the entry as "[INFO] [pipeline] message".
func (e Entry) String() string {
	return fmt.Sprintf("[%s] [%s] %s", strings.ToUpper(e.Level), e.Category, e.Message)
}

// Hub fans log entries out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the entry.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Entry
	nextID  uint64
	dropped atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Entry)}
}

var defaultHub = NewHub()

// DefaultHub returns the hub every logger publishes to.
func DefaultHub() *Hub {
	return defaultHub
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel function unregisters it and closes the channel; it is safe to call
// more than once.
func (h *Hub) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Entry, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to every subscriber with buffer space.
func (h *Hub) Publish(e Entry) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Subscribe registers a subscriber on the default hub.
func Subscribe(buffer int) (<-chan Entry, func()) {
	return defaultHub.Subscribe(buffer)
}
