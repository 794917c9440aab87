// Package observe exposes the running control loop over a read-only HTTP JSON
// API, plus a websocket feed for live dashboards. The API serves loop
// snapshots only; nothing here can mutate control state.
package observe

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/loop"
)

// #region server

// Server wraps the HTTP handlers around a loop runner.
type Server struct {
	runner   *loop.Runner
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	// streamInterval is how often the websocket pushes a snapshot.
	streamInterval time.Duration
}

// NewServer builds the route table for a runner.
func NewServer(runner *loop.Runner) *Server {
	s := &Server{
		runner:         runner,
		mux:            http.NewServeMux(),
		streamInterval: runner.Period(),
	}
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/telemetry", s.handleTelemetry)
	s.mux.HandleFunc("/api/telemetry/history", s.handleTelemetryHistory)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/control", s.handleControl)
	s.mux.HandleFunc("/api/alerts", s.handleAlerts)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/api/stream", s.handleStream)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"read-only API"}`, http.StatusMethodNotAllowed)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// #endregion server

// #region handlers

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func writeNoData(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(`{"error":"no cycle data yet"}`))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{
		"service": "adaptive-iv-controller",
		"endpoints": []string{
			"/api/status", "/api/telemetry", "/api/telemetry/history",
			"/api/state", "/api/control", "/api/alerts", "/api/config",
			"/api/stream",
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.runner.Snapshot()
	status := map[string]any{
		"running":    ok,
		"session_id": s.runner.SessionID(),
		"period_ms":  s.runner.Period().Milliseconds(),
	}
	if ok {
		status["cycle"] = snap.Cycle
		status["updated_at"] = snap.UpdatedAt
		status["cumulative_volume_ml"] = snap.CumulativeVolume
		status["max_volume_24h_ml"] = snap.MaxVolume24h
	}
	writeJSON(w, status)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.runner.Snapshot()
	if !ok {
		writeNoData(w)
		return
	}
	writeJSON(w, snap.Sample)
}

func (s *Server) handleTelemetryHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"samples": s.runner.TelemetryHistory()})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.runner.Snapshot()
	if !ok {
		writeNoData(w)
		return
	}
	writeJSON(w, snap.State)
}

func (s *Server) handleControl(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.runner.Snapshot()
	if !ok {
		writeNoData(w)
		return
	}
	writeJSON(w, snap.Output)
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"alerts": s.runner.Alerts()})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"profile":   s.runner.Profile(),
		"period_ms": s.runner.Period().Milliseconds(),
	})
}

// #endregion handlers

// #region stream

// handleStream upgrades to a websocket and pushes the current snapshot once
// per control period until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[API] websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for range ticker.C {
		snap, ok := s.runner.Snapshot()
		if !ok {
			continue
		}
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}
}

// #endregion stream
