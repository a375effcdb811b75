package capture

// Status is the lifecycle state of a screen-share session.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusRequesting  Status = "requesting"
	StatusActive      Status = "active"
	StatusStopped     Status = "stopped"
	StatusCancelled   Status = "cancelled"
	StatusDenied      Status = "denied"
	StatusUnsupported Status = "unsupported"
	StatusError       Status = "error"
)

// StreamMetadata is a snapshot of a capture's track settings, taken once per
// successful request. Nil fields mean the platform did not report a value.
type StreamMetadata struct {
	Surface   *string `json:"surface"`
	Width     *int    `json:"width"`
	Height    *int    `json:"height"`
	FrameRate *int    `json:"frameRate"`
	Label     string  `json:"label"`
}

// State is the value exposed to consumers of the controller.
// Stream and Metadata are both non-nil exactly when Status is active.
type State struct {
	Status       Status          `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Metadata     *StreamMetadata `json:"metadata,omitempty"`
	Stream       Stream          `json:"-"`
}
