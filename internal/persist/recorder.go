// Package persist writes the durable session record (elapsed duration,
// resolution, a representative still frame) while a capture is active.
// Writes are best-effort: a failed store write or frame grab is skipped
// silently and never reaches the capture controller.
package persist

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strconv"
	"sync"
	"time"

	"screencheck/internal/capture"
	"screencheck/internal/store"
)

const (
	defaultTick       = time.Second
	defaultFrameEvery = 3 // grab a frame every Nth duration tick
)

// Recorder runs one persistence loop per active session. Beginning a new
// session cancels any loop still pending from the previous one, so duration
// values from two sessions never interleave in the store.
type Recorder struct {
	store      *store.Store
	tick       time.Duration
	frameEvery int
	now        func() time.Time

	mu        sync.Mutex
	done      chan struct{} // closes to cancel the running loop
	startedAt time.Time
	finalized bool
}

// NewRecorder creates a recorder. Zero tick or frameEvery select the
// defaults (1 s duration cadence, frame every 3rd tick).
func NewRecorder(st *store.Store, tick time.Duration, frameEvery int) *Recorder {
	if tick <= 0 {
		tick = defaultTick
	}
	if frameEvery <= 0 {
		frameEvery = defaultFrameEvery
	}
	return &Recorder{
		store:      st,
		tick:       tick,
		frameEvery: frameEvery,
		now:        time.Now,
	}
}

// Begin records the session start and starts the periodic loop.
func (r *Recorder) Begin(s capture.Stream, meta *capture.StreamMetadata, startedAt time.Time) {
	r.mu.Lock()
	r.stopLoopLocked()
	r.startedAt = startedAt
	r.finalized = false
	done := make(chan struct{})
	r.done = done

	r.store.Set(store.KeySessionStart, strconv.FormatInt(startedAt.UnixMilli(), 10))
	r.store.Set(store.KeySessionResolution, resolutionString(meta))
	r.mu.Unlock()

	go r.loop(done, s)
}

// Finalize writes the terminal duration once, so the stored value reflects
// the true stop time even if the last tick never fired.
func (r *Recorder) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized || r.startedAt.IsZero() {
		return
	}
	r.writeDurationLocked()
	r.finalized = true
}

// Close cancels the periodic loop. No partial writes happen afterwards.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLoopLocked()
}

func (r *Recorder) stopLoopLocked() {
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
}

func (r *Recorder) loop(done chan struct{}, s capture.Stream) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-done:
			return

		case <-ticker.C:
			r.mu.Lock()
			if r.done != done {
				// Cancelled between the tick firing and now.
				r.mu.Unlock()
				return
			}
			r.writeDurationLocked()
			tick++
			grabFrame := tick%r.frameEvery == 0
			r.mu.Unlock()

			if grabFrame {
				r.persistFrame(done, s)
			}
		}
	}
}

func (r *Recorder) writeDurationLocked() {
	elapsed := r.now().Sub(r.startedAt).Milliseconds()
	r.store.Set(store.KeySessionDuration, strconv.FormatInt(elapsed, 10))
}

// persistFrame grabs a still frame and stores it as a PNG data URL. Skips
// silently when the track offers no frame-grab capability or the grab fails.
func (r *Recorder) persistFrame(done chan struct{}, s capture.Stream) {
	track := s.VideoTrack()
	if track == nil {
		return
	}
	grabber, ok := track.(capture.FrameGrabber)
	if !ok {
		return
	}

	img, err := grabber.GrabFrame()
	if err != nil || img == nil {
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != done {
		return
	}
	r.store.Set(store.KeySessionFrame, dataURL)
}

func resolutionString(meta *capture.StreamMetadata) string {
	if meta == nil || meta.Width == nil || meta.Height == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%d × %d", *meta.Width, *meta.Height)
}
