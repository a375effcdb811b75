package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"screencheck/internal/capture"
	"screencheck/internal/persist"
	"screencheck/internal/protocol"
	"screencheck/internal/store"
	"screencheck/internal/summary"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Server, *capture.SyntheticProvider) {
	t.Helper()

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(st.Close)

	provider := capture.NewSyntheticProvider()
	recorder := persist.NewRecorder(st, time.Hour, 3) // periodic writes off in tests
	controller := capture.NewController(provider, recorder)

	reader := summary.NewReader(st, time.Hour)
	reader.Start()
	t.Cleanup(reader.Close)

	srv := New(controller, reader, "")
	srv.Start()
	t.Cleanup(srv.Close)

	return srv, provider
}

func TestServer_Handler(t *testing.T) {
	srv, _ := newTestServer(t)
	if srv.Handler() == nil {
		t.Fatal("expected non-nil handler")
	}
}

func TestServer_GetStateIdle(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/state", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var p protocol.CaptureStatePayload
	json.NewDecoder(w.Body).Decode(&p)
	if p.Status != "idle" {
		t.Errorf("expected idle, got %s", p.Status)
	}
}

func TestServer_StartStopReset(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	post := func(path string) protocol.CaptureStatePayload {
		t.Helper()
		req := httptest.NewRequest("POST", path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, w.Code)
		}
		var p protocol.CaptureStatePayload
		json.NewDecoder(w.Body).Decode(&p)
		return p
	}

	st := post("/capture/start")
	if st.Status != "active" {
		t.Fatalf("expected active, got %s (%s)", st.Status, st.ErrorMessage)
	}
	if st.Metadata == nil || st.Quality == nil {
		t.Fatal("active payload must carry metadata and quality")
	}
	if st.Quality.Label != "1080p Full HD" {
		t.Errorf("unexpected quality: %+v", st.Quality)
	}

	if st := post("/capture/stop"); st.Status != "stopped" {
		t.Errorf("expected stopped, got %s", st.Status)
	}
	if st := post("/capture/reset"); st.Status != "idle" {
		t.Errorf("expected idle, got %s", st.Status)
	}
}

func TestServer_StartUnsupported(t *testing.T) {
	srv, provider := newTestServer(t)
	provider.Unavailable = true

	req := httptest.NewRequest("POST", "/capture/start", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var p protocol.CaptureStatePayload
	json.NewDecoder(w.Body).Decode(&p)
	if p.Status != "unsupported" {
		t.Errorf("expected unsupported, got %s", p.Status)
	}
	if p.ErrorMessage == "" {
		t.Error("expected explanatory message")
	}
}

func TestServer_GetSummary(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/summary", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var sum summary.Summary
	json.NewDecoder(w.Body).Decode(&sum)
	if sum.Duration != "00:00:00" {
		t.Errorf("expected default duration, got %q", sum.Duration)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/state", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}

func TestServer_WebSocketLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// On connect the client receives the current state, then the summary.
	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeCaptureState {
		t.Fatalf("expected %s first, got %s", protocol.TypeCaptureState, msg.Type)
	}
	var p protocol.CaptureStatePayload
	json.Unmarshal(msg.Payload, &p)
	if p.Status != "idle" {
		t.Errorf("expected idle, got %s", p.Status)
	}

	// Send a start intent; the broadcast must reach this client.
	intent := []byte(`{"type":"capture.start"}`)
	if err := conn.WriteMessage(websocket.TextMessage, intent); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	waitForWSState(t, conn, "active")
}

func TestServer_WebSocketInvalidMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMessage(t, conn)
		if msg.Type == protocol.TypeError {
			var p protocol.ErrorPayload
			json.Unmarshal(msg.Payload, &p)
			if p.Code != protocol.ErrInvalidMessage {
				t.Errorf("expected code %s, got %s", protocol.ErrInvalidMessage, p.Code)
			}
			return
		}
	}
	t.Fatal("timed out waiting for error message")
}

func readMessage(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return &msg
}

// waitForWSState reads messages until a capture.state with the wanted status
// arrives, skipping interleaved summary updates.
func waitForWSState(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMessage(t, conn)
		if msg.Type != protocol.TypeCaptureState {
			continue
		}
		var p protocol.CaptureStatePayload
		json.Unmarshal(msg.Payload, &p)
		if p.Status == want {
			return
		}
	}
	t.Fatalf("timed out waiting for state %q", want)
}
