package logstream

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultBuffer = 64

// Line is one emitted observability line.
type Line struct {
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Hub fans emitted lines out to live subscribers. Slow subscribers lose
// lines rather than blocking the emitter.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]chan Line
	buffer int

	dropMu  sync.Mutex
	dropped int64
}

// NewHub creates a hub whose subscriptions buffer up to buffer lines.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[string]chan Line), buffer: buffer}
}

// Emit implements observability.Emitter.
func (h *Hub) Emit(text string) {
	line := Line{Text: text, Time: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- line:
		default:
			h.countDrop()
		}
	}
}

func (h *Hub) countDrop() {
	h.dropMu.Lock()
	h.dropped++
	h.dropMu.Unlock()
}

// Subscribe registers a listener. The returned cancel function must be
// called to release it; the channel is closed on cancel.
func (h *Hub) Subscribe() (string, <-chan Line, func()) {
	id := uuid.NewString()
	ch := make(chan Line, h.buffer)

	h.mu.Lock()
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
	return id, ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many lines were discarded for slow subscribers.
func (h *Hub) Dropped() int64 {
	h.dropMu.Lock()
	defer h.dropMu.Unlock()
	return h.dropped
}
