package realtime

import (
	"encoding/json"
	"net/http"

	"screencheck/internal/protocol"
)

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.CaptureStateFrom(s.controller.State()))
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reader.Snapshot())
}

// handleStart blocks until the capture request settles, mirroring the
// unbounded wait on the platform picker, and returns the settled state.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	st := s.controller.Start(r.Context())
	writeJSON(w, http.StatusOK, protocol.CaptureStateFrom(st))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.CaptureStateFrom(s.controller.Stop()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.CaptureStateFrom(s.controller.Reset()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
