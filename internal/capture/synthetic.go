package capture

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// SyntheticProvider grants captures backed by a generated test pattern. It
// lets the rest of the pipeline run end to end without a real capture device
// and gives tests a deterministic provider.
type SyntheticProvider struct {
	Width     int
	Height    int
	FrameRate float64
	Surface   string
	Label     string

	// FailWith, when non-nil, makes every request fail with that error.
	FailWith error
	// Unavailable simulates an environment without a capture capability.
	Unavailable bool
}

// NewSyntheticProvider returns a provider granting a 1920x1080 @30fps
// monitor capture.
func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{
		Width:     1920,
		Height:    1080,
		FrameRate: 30,
		Surface:   surfaceMonitor,
		Label:     "Synthetic Screen",
	}
}

// Available reports whether the capability can be used.
func (p *SyntheticProvider) Available() bool {
	return !p.Unavailable
}

// Request grants a synthetic stream, or fails with the configured error.
func (p *SyntheticProvider) Request(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RequestError{Kind: ErrKindAbort, Message: "capture request aborted"}
	}
	if p.FailWith != nil {
		return nil, p.FailWith
	}

	track := &syntheticTrack{
		settings: TrackSettings{
			DisplaySurface: p.Surface,
			Width:          p.Width,
			Height:         p.Height,
			FrameRate:      p.FrameRate,
		},
		label: p.Label,
	}
	return &SyntheticStream{track: track}, nil
}

// SyntheticStream is the live handle granted by a SyntheticProvider.
type SyntheticStream struct {
	mu      sync.Mutex
	track   *syntheticTrack
	stopped bool
}

// VideoTrack returns the stream's single video track.
func (s *SyntheticStream) VideoTrack() Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	return s.track
}

// Stop releases the track. Idempotent; does not fire the ended handler,
// matching platform behavior for programmatic stops.
func (s *SyntheticStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// EndCapture simulates device-initiated termination (the user revoking the
// capture outside the application). Fires the ended handler once.
func (s *SyntheticStream) EndCapture() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	track := s.track
	s.mu.Unlock()

	track.fireEnded()
}

type syntheticTrack struct {
	settings TrackSettings
	label    string

	mu      sync.Mutex
	onEnded func()
}

func (t *syntheticTrack) Settings() TrackSettings { return t.settings }
func (t *syntheticTrack) Label() string           { return t.label }

func (t *syntheticTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

func (t *syntheticTrack) fireEnded() {
	t.mu.Lock()
	fn := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()
	if fn != nil {
		go fn()
	}
}

// GrabFrame renders the test pattern at the track's geometry.
func (t *syntheticTrack) GrabFrame() (image.Image, error) {
	w, h := t.settings.Width, t.settings.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 360
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(255 * x / w),
				G: uint8(255 * y / h),
				B: 0x40,
				A: 0xFF,
			})
		}
	}
	return img, nil
}
