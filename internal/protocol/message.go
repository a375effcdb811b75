package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"screencheck/internal/capture"
	"screencheck/internal/quality"
	"screencheck/internal/summary"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Server → Client message types.
const (
	TypeCaptureState  = "capture.state"
	TypeSummaryUpdate = "summary.update"
	TypeError         = "error"
)

// Client → Server message types.
const (
	TypeCaptureStart   = "capture.start"
	TypeCaptureStop    = "capture.stop"
	TypeCaptureReset   = "capture.reset"
	TypeSummaryRequest = "summary.request"
)

// Error codes.
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
)

// CaptureStatePayload carries one state-machine snapshot to views.
type CaptureStatePayload struct {
	Status       string                  `json:"status"`
	ErrorMessage string                  `json:"errorMessage,omitempty"`
	Metadata     *capture.StreamMetadata `json:"metadata,omitempty"`
	Quality      *quality.Assessment     `json:"quality,omitempty"`
	At           string                  `json:"at,omitempty"`
}

// SummaryUpdatePayload carries the persisted-record summary to views.
type SummaryUpdatePayload struct {
	Summary summary.Summary `json:"summary"`
}

// ErrorPayload reports a rejected client message.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CaptureStateFrom builds the wire payload for a state snapshot. The quality
// band is derived here so every view sees the same assessment.
func CaptureStateFrom(st capture.State) CaptureStatePayload {
	p := CaptureStatePayload{
		Status:       string(st.Status),
		ErrorMessage: st.ErrorMessage,
		Metadata:     st.Metadata,
	}
	if st.Status == capture.StatusActive {
		q := quality.Assess(st.Metadata)
		p.Quality = &q
	}
	return p
}
