package capture

import (
	"sync"
	"time"
)

// Transition is one recorded state change.
type Transition struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
}

// History is a fixed-capacity circular buffer of state transitions.
// It allows late subscribers to catch up on how a session got here.
type History struct {
	mu       sync.RWMutex
	buf      []Transition
	capacity int
	pos      int // next write position
	full     bool
}

// NewHistory creates a history buffer with the given capacity.
func NewHistory(capacity int) *History {
	return &History{
		buf:      make([]Transition, capacity),
		capacity: capacity,
	}
}

// Record adds a transition to the buffer.
func (h *History) Record(tr Transition) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.pos] = tr
	h.pos = (h.pos + 1) % h.capacity
	if h.pos == 0 {
		h.full = true
	}
}

// ReadAll returns all transitions in chronological order.
func (h *History) ReadAll() []Transition {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		result := make([]Transition, h.pos)
		copy(result, h.buf[:h.pos])
		return result
	}

	result := make([]Transition, h.capacity)
	copy(result, h.buf[h.pos:])
	copy(result[h.capacity-h.pos:], h.buf[:h.pos])
	return result
}
