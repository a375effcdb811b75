// Package summary presents the most recently persisted session record,
// independent of the controller's in-memory lifetime.
package summary

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"screencheck/internal/store"
)

const defaultPoll = 500 * time.Millisecond

// sessionKeys are the store keys the reader reacts to.
var sessionKeys = map[string]bool{
	store.KeySessionDuration:   true,
	store.KeySessionResolution: true,
	store.KeySessionStart:      true,
	store.KeySessionFrame:      true,
}

// Summary is a point-in-time view of the persisted session record.
type Summary struct {
	Duration   string `json:"duration"`
	Resolution string `json:"resolution"`
	Frame      string `json:"frame,omitempty"`
}

// Reader polls the store at a fixed short interval and reacts immediately to
// store change notifications. Missing or malformed stored values leave the
// previously displayed values unchanged.
type Reader struct {
	store *store.Store
	poll  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	current Summary

	subMu       sync.RWMutex
	subscribers map[string]chan Summary

	cancel   chan struct{}
	storeSub string
}

// NewReader creates a reader. Zero poll selects the 500 ms default.
func NewReader(st *store.Store, poll time.Duration) *Reader {
	if poll <= 0 {
		poll = defaultPoll
	}
	return &Reader{
		store:       st,
		poll:        poll,
		now:         time.Now,
		current:     Summary{Duration: "00:00:00", Resolution: "Unknown"},
		subscribers: make(map[string]chan Summary),
		cancel:      make(chan struct{}),
	}
}

// Start reads the current record once, then keeps the summary in sync in the
// background until Close.
func (r *Reader) Start() {
	r.sync()

	subID, changes := r.store.Subscribe()
	r.storeSub = subID

	go r.run(changes)
}

// Snapshot returns the current summary.
func (r *Reader) Snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Subscribe registers a listener notified whenever the summary changes.
func (r *Reader) Subscribe() (string, <-chan Summary) {
	subID := uuid.New().String()
	ch := make(chan Summary, 16)

	r.subMu.Lock()
	r.subscribers[subID] = ch
	r.subMu.Unlock()

	return subID, ch
}

// Unsubscribe removes a listener.
func (r *Reader) Unsubscribe(subID string) {
	r.subMu.Lock()
	if ch, exists := r.subscribers[subID]; exists {
		close(ch)
		delete(r.subscribers, subID)
	}
	r.subMu.Unlock()
}

// Close stops polling and change handling.
func (r *Reader) Close() {
	close(r.cancel)
	if r.storeSub != "" {
		r.store.Unsubscribe(r.storeSub)
	}
}

func (r *Reader) run(changes <-chan string) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-r.cancel:
			return

		case <-ticker.C:
			r.sync()

		case key, ok := <-changes:
			if !ok {
				return
			}
			if sessionKeys[key] {
				r.sync()
			}
		}
	}
}

// sync rebuilds the summary from the store. A finalized duration takes
// priority; with only a start time the session is nominally still open, so
// elapsed time is computed against the clock.
func (r *Reader) sync() {
	r.mu.Lock()
	next := r.current

	if v, ok := r.store.Get(store.KeySessionResolution); ok {
		next.Resolution = v
	}
	if v, ok := r.store.Get(store.KeySessionFrame); ok {
		next.Frame = v
	}
	if v, ok := r.store.Get(store.KeySessionDuration); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			next.Duration = FormatDuration(ms)
		}
	} else if v, ok := r.store.Get(store.KeySessionStart); ok {
		if start, err := strconv.ParseInt(v, 10, 64); err == nil {
			next.Duration = FormatDuration(r.now().UnixMilli() - start)
		}
	}

	changed := next != r.current
	r.current = next
	r.mu.Unlock()

	if changed {
		r.publish(next)
	}
}

func (r *Reader) publish(s Summary) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()

	for _, ch := range r.subscribers {
		select {
		case ch <- s:
		default:
			// Listener buffer full, drop the update.
		}
	}
}

// FormatDuration renders milliseconds as zero-padded HH:MM:SS, flooring to
// whole seconds and clamping negative inputs to zero.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
