package capture

import (
	"context"
	"fmt"
	"image"
)

// Constraints are the hints passed with a capture request.
type Constraints struct {
	IdealFrameRate int
}

// Provider is the platform capability that grants screen captures.
// Request blocks until the user answers the picker or ctx is done.
type Provider interface {
	Available() bool
	Request(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is one live capture granted by the platform. The controller owns it
// exclusively while a session is active.
type Stream interface {
	// VideoTrack returns the primary video track, or nil if none exists.
	VideoTrack() Track
	// Stop releases all tracks. Safe to call more than once.
	Stop()
}

// Track is a single live video track.
type Track interface {
	Settings() TrackSettings
	Label() string
	// OnEnded registers a handler for out-of-band termination (e.g. the user
	// revoking via browser chrome). A later call replaces the handler.
	// Programmatic Stop does not fire it.
	OnEnded(fn func())
}

// FrameGrabber is an optional Track capability for extracting a still frame.
// Its absence is detected by interface assertion and is not an error.
type FrameGrabber interface {
	GrabFrame() (image.Image, error)
}

// TrackSettings are the raw, vendor-reported track settings.
// Zero values mean the platform did not report the field.
type TrackSettings struct {
	DisplaySurface string
	Width          int
	Height         int
	FrameRate      float64
}

// ErrorKind categorizes a failed capture request.
type ErrorKind string

const (
	ErrKindPermission ErrorKind = "permission"
	ErrKindAbort      ErrorKind = "abort"
	ErrKindNotFound   ErrorKind = "not-found"
)

// RequestError is a classifiable failure from a Provider. Message carries the
// vendor-supplied detail used by the cancellation heuristic.
type RequestError struct {
	Kind    ErrorKind
	Message string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("capture request failed (%s)", e.Kind)
	}
	return e.Message
}
