package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"screencheck/internal/capture"
	"screencheck/internal/protocol"
	"screencheck/internal/summary"

	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow localhost origins for dev.
	},
}

// Server is the presentation transport: it serves views over WebSocket and
// REST, forwards their start/stop/reset intents to the capture controller,
// and broadcasts state and summary changes back to every connected view.
type Server struct {
	controller *capture.Controller
	reader     *summary.Reader
	clients    map[*client]bool
	clientsMu  sync.RWMutex
	staticDir  string

	done     chan struct{}
	stateSub string
	sumSub   string
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// New creates a realtime server.
func New(controller *capture.Controller, reader *summary.Reader, staticDir string) *Server {
	return &Server{
		controller: controller,
		reader:     reader,
		clients:    make(map[*client]bool),
		staticDir:  staticDir,
		done:       make(chan struct{}),
	}
}

// Start begins forwarding controller and summary updates to clients.
func (s *Server) Start() {
	stateSub, states, _ := s.controller.Subscribe()
	s.stateSub = stateSub

	sumSub, summaries := s.reader.Subscribe()
	s.sumSub = sumSub

	go s.forward(states, summaries)
}

// Close stops the forwarding loop.
func (s *Server) Close() {
	close(s.done)
	s.controller.Unsubscribe(s.stateSub)
	s.reader.Unsubscribe(s.sumSub)
}

func (s *Server) forward(states <-chan capture.State, summaries <-chan summary.Summary) {
	for {
		select {
		case <-s.done:
			return

		case st, ok := <-states:
			if !ok {
				return
			}
			s.broadcastState(st)

		case sm, ok := <-summaries:
			if !ok {
				return
			}
			s.broadcastSummary(sm)
		}
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint.
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API endpoints.
	mux.HandleFunc("GET /state", s.handleGetState)
	mux.HandleFunc("GET /summary", s.handleGetSummary)
	mux.HandleFunc("POST /capture/start", s.handleStart)
	mux.HandleFunc("POST /capture/stop", s.handleStop)
	mux.HandleFunc("POST /capture/reset", s.handleReset)

	// Static file serving.
	if s.staticDir != "" {
		fileServer := http.FileServer(http.Dir(s.staticDir))
		mux.Handle("/", fileServer)
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleWebSocket upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()

	// Catch the new client up: replayed transitions, then the live state
	// and the current summary.
	s.sendHistory(c)
	s.sendState(c, s.controller.State())
	s.sendSummary(c, s.reader.Snapshot())

	go c.writePump()
	go c.readPump()
}

// sendHistory replays recent state transitions to a client.
func (s *Server) sendHistory(c *client) {
	for _, tr := range s.controller.History() {
		p := protocol.CaptureStateFrom(tr.State)
		p.At = tr.At.Format(time.RFC3339Nano)
		msg, err := protocol.NewMessage(protocol.TypeCaptureState, p)
		if err != nil {
			continue
		}
		c.enqueue(msg)
	}
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// removeClient cleans up a disconnected client.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()

	close(c.send)
}

// handleMessage processes a validated client intent.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeCaptureStart:
		// Start blocks until the picker settles; run it off the read loop.
		// The settled state reaches every client through the subscription.
		go s.controller.Start(context.Background())
	case protocol.TypeCaptureStop:
		s.controller.Stop()
	case protocol.TypeCaptureReset:
		s.controller.Reset()
	case protocol.TypeSummaryRequest:
		s.sendSummary(c, s.reader.Snapshot())
	}
}

// broadcastState sends a state snapshot to all connected clients.
func (s *Server) broadcastState(st capture.State) {
	msg, err := protocol.NewMessage(protocol.TypeCaptureState, protocol.CaptureStateFrom(st))
	if err != nil {
		return
	}
	s.broadcast(msg)
}

// broadcastSummary sends a summary update to all connected clients.
func (s *Server) broadcastSummary(sm summary.Summary) {
	msg, err := protocol.NewMessage(protocol.TypeSummaryUpdate, protocol.SummaryUpdatePayload{Summary: sm})
	if err != nil {
		return
	}
	s.broadcast(msg)
}

// broadcast sends a message to all connected clients.
func (s *Server) broadcast(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, skip.
		}
	}
}

func (s *Server) sendState(c *client, st capture.State) {
	msg, err := protocol.NewMessage(protocol.TypeCaptureState, protocol.CaptureStateFrom(st))
	if err != nil {
		return
	}
	c.enqueue(msg)
}

func (s *Server) sendSummary(c *client, sm summary.Summary) {
	msg, err := protocol.NewMessage(protocol.TypeSummaryUpdate, protocol.SummaryUpdatePayload{Summary: sm})
	if err != nil {
		return
	}
	c.enqueue(msg)
}

func (s *Server) sendError(c *client, code, message string) {
	msg, err := protocol.NewErrorMessage(code, message)
	if err != nil {
		return
	}
	c.enqueue(msg)
}

func (c *client) enqueue(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
