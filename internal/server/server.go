// Package server provides the HTTP server for the printcam streamer.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/printcam/internal/framebus"
	"github.com/ayusman/printcam/internal/server/api"
	"github.com/ayusman/printcam/internal/store"
)

// Config holds the server configuration.
type Config struct {
	Bus    *framebus.Bus
	Store  *store.Store
	Events *EventsHub
	Log    *zap.SugaredLogger
}

// Server represents the HTTP server for the printcam application.
type Server struct {
	config Config
	mux    *http.ServeMux
	stream *StreamHandler
	start  time.Time
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Log == nil {
		config.Log = zap.NewNop().Sugar()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.http = &http.Server{Handler: s}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register events API handler if Store is configured
	if s.config.Store != nil {
		eventsHandler := api.NewEventsHandler(s.config.Store)
		s.mux.Handle("/api/events", eventsHandler)
	}

	// Register live event feed if an EventsHub is configured
	if s.config.Events != nil {
		s.mux.Handle("/api/events/live", s.config.Events)
	}

	// Every other path serves the camera stream
	if s.config.Bus != nil {
		s.stream = NewStreamHandler(s.config.Bus, s.config.Log.Named("stream"))
		s.mux.Handle("/", s.stream)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.stream != nil {
		response["viewers"] = s.stream.Sessions()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	s.http.Addr = addr
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
