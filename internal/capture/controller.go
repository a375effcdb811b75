package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultIdealFrameRate   = 30
	defaultHistoryCapacity  = 64
	defaultSubscriberBufCap = 16
)

// User-facing outcome messages.
const (
	msgUnsupported = "Screen sharing is not supported in this environment."
	msgPickerClose = "You closed the screen picker without selecting a source."
	msgDenied      = "Screen sharing permission was denied. Please allow access and try again."
	msgAborted     = "Screen sharing was aborted."
	msgNoSource    = "No suitable screen source was found."
	msgUnexpected  = "An unexpected error occurred while requesting screen access."
)

// Recorder persists session data while a capture is active. The controller
// drives its lifecycle; persistence failures never reach the controller.
type Recorder interface {
	// Begin starts a persistence loop for a new session, cancelling any
	// loop still running from a previous one.
	Begin(s Stream, meta *StreamMetadata, startedAt time.Time)
	// Finalize writes the terminal session duration. Repeat calls within
	// one session are no-ops.
	Finalize()
	// Close cancels the persistence loop without a final write.
	Close()
}

// Controller owns the screen-share session lifecycle: it requests captures
// from the provider, classifies failures, releases the live stream on every
// exit path, and fans out state changes to subscribers.
type Controller struct {
	provider Provider
	recorder Recorder // optional

	mu        sync.Mutex
	state     State
	stream    Stream
	startedAt time.Time
	token     uuid.UUID // current session; stale async resolutions are discarded

	history *History

	subMu       sync.RWMutex
	subscribers map[string]chan State
}

// NewController creates a controller in the idle state. rec may be nil when
// no persistence is wanted.
func NewController(p Provider, rec Recorder) *Controller {
	return &Controller{
		provider:    p,
		recorder:    rec,
		state:       State{Status: StatusIdle},
		history:     NewHistory(defaultHistoryCapacity),
		subscribers: make(map[string]chan State),
	}
}

// State returns the current state snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start requests a new capture. It blocks until the provider settles the
// request (user action on the picker) or ctx is done, and returns the state
// it settled on. Any existing session is released first.
func (c *Controller) Start(ctx context.Context) State {
	if !c.provider.Available() {
		c.mu.Lock()
		c.teardownLocked()
		st := c.setStateLocked(State{Status: StatusUnsupported, ErrorMessage: msgUnsupported})
		c.mu.Unlock()
		c.publish(st)
		return st
	}

	c.mu.Lock()
	c.teardownLocked()
	tok := uuid.New()
	c.token = tok
	st := c.setStateLocked(State{Status: StatusRequesting})
	c.mu.Unlock()
	c.publish(st)

	stream, err := c.provider.Request(ctx, Constraints{IdealFrameRate: defaultIdealFrameRate})

	c.mu.Lock()
	if c.token != tok {
		// A reset or newer start superseded this request; do not let the
		// stale resolution resurrect state.
		c.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		return c.State()
	}

	if err != nil {
		c.teardownLocked()
		status, msg := classifyRequestError(err)
		st = c.setStateLocked(State{Status: status, ErrorMessage: msg})
		c.mu.Unlock()
		c.publish(st)
		return st
	}

	meta := ExtractMetadata(stream)
	c.stream = stream
	c.startedAt = time.Now()

	if track := stream.VideoTrack(); track != nil {
		track.OnEnded(func() { c.deviceEnded(tok) })
	}
	if c.recorder != nil {
		c.recorder.Begin(stream, meta, c.startedAt)
	}

	st = c.setStateLocked(State{Status: StatusActive, Metadata: meta, Stream: stream})
	c.mu.Unlock()
	c.publish(st)
	return st
}

// Stop finalizes persistence and releases the session. Safe to call from any
// state; a second call in a row changes nothing further.
func (c *Controller) Stop() State {
	c.mu.Lock()
	st := c.stopLocked()
	c.mu.Unlock()
	c.publish(st)
	return st
}

func (c *Controller) stopLocked() State {
	if c.recorder != nil {
		c.recorder.Finalize()
	}
	c.token = uuid.New() // a pending request is no longer the current session
	c.teardownLocked()
	return c.setStateLocked(State{Status: StatusStopped})
}

// Reset releases any live session and returns unconditionally to idle.
func (c *Controller) Reset() State {
	c.mu.Lock()
	c.token = uuid.New()
	c.teardownLocked()
	st := c.setStateLocked(State{Status: StatusIdle})
	c.mu.Unlock()
	c.publish(st)
	return st
}

// deviceEnded handles out-of-band track termination. Only an active session
// with a matching token is finalized; anything else already tore down.
func (c *Controller) deviceEnded(tok uuid.UUID) {
	c.mu.Lock()
	if c.token != tok || c.state.Status != StatusActive {
		c.mu.Unlock()
		return
	}
	st := c.stopLocked()
	c.mu.Unlock()
	c.publish(st)
}

// teardownLocked releases the live stream and cancels persistence. It is
// idempotent and runs on every exit path.
func (c *Controller) teardownLocked() {
	if c.recorder != nil {
		c.recorder.Close()
	}
	if c.stream != nil {
		c.stream.Stop()
		c.stream = nil
	}
	c.startedAt = time.Time{}
}

func (c *Controller) setStateLocked(st State) State {
	c.state = st
	c.history.Record(Transition{State: st, At: time.Now().UTC()})
	return st
}

// classifyRequestError maps a provider failure to a terminal status and a
// human-readable message. The cancellation-vs-denial split is a best-effort
// heuristic on vendor message text; unrecognized shapes degrade to the
// generic error status.
func classifyRequestError(err error) (Status, string) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.Kind {
		case ErrKindPermission:
			lower := strings.ToLower(reqErr.Message)
			if strings.Contains(lower, "cancel") || lower == "" || lower == "permission denied" {
				return StatusCancelled, msgPickerClose
			}
			return StatusDenied, msgDenied
		case ErrKindAbort:
			return StatusCancelled, msgAborted
		case ErrKindNotFound:
			return StatusError, msgNoSource
		}
	}

	if msg := err.Error(); msg != "" {
		return StatusError, msg
	}
	return StatusError, msgUnexpected
}

// History returns the recent state transitions in chronological order.
func (c *Controller) History() []Transition {
	return c.history.ReadAll()
}

// Subscribe registers a state-change listener. It returns the subscription
// ID, the channel, and the recent transition history for catch-up.
func (c *Controller) Subscribe() (string, <-chan State, []Transition) {
	subID := uuid.New().String()
	ch := make(chan State, defaultSubscriberBufCap)

	history := c.history.ReadAll()

	c.subMu.Lock()
	c.subscribers[subID] = ch
	c.subMu.Unlock()

	return subID, ch, history
}

// Unsubscribe removes a state-change listener.
func (c *Controller) Unsubscribe(subID string) {
	c.subMu.Lock()
	if ch, exists := c.subscribers[subID]; exists {
		close(ch)
		delete(c.subscribers, subID)
	}
	c.subMu.Unlock()
}

// publish sends a state snapshot to all subscribers.
func (c *Controller) publish(st State) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- st:
		default:
			// Subscriber channel full, drop the update.
		}
	}
}
