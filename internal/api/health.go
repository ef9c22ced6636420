package api

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// handleHealthz reports liveness. The process answers even when the graph
// store is unreachable, so the status degrades instead of failing.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, graph := "healthy", "up"
	if err := s.health.Ping(ctx); err != nil {
		status, graph = "degraded", "down"
	}
	WriteData(w, http.StatusOK, map[string]string{"status": status, "graph": graph})
}

// handleReadyz reports readiness. Traffic should not be routed here until
// the graph store answers.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.health.Ping(ctx); err != nil {
		WriteData(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	WriteData(w, http.StatusOK, map[string]bool{"ready": true})
}
