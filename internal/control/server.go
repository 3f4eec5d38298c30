package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the monitor's own health and metrics over HTTP.
type Server struct {
	monitor *Monitor
	server  *http.Server
	started time.Time
}

// NewServer creates the status server.
func NewServer(monitor *Monitor, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.started = time.Now()
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthzResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	// Incidents maps node IDs to their consecutive-error counts. Only
	// nodes in an active error streak appear.
	Incidents map[string]int `json:"incidents"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{
		Status:    "ok",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Incidents: s.monitor.counters.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
