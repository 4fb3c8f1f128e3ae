// Package server provides the local monitor: an HTTP surface showing what
// each riskcam controller is rendering.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/riskcam/internal/controller"
	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/metrics"
	"github.com/ayusman/riskcam/internal/render"
	"github.com/ayusman/riskcam/internal/server/api"
	"github.com/ayusman/riskcam/internal/store"
)

// View is one controller and the sink it renders into.
type View struct {
	Sink       *render.Sink
	Controller *controller.Controller
	// Counts, when set, reports submitted and skipped ticks.
	Counts func() (analyzed, skipped uint64)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Views     []View
	Metrics   *metrics.Metrics
}

// Server represents the monitor HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)

	if s.config.Store != nil {
		alerts := api.NewAlertHandler(s.config.Store)
		s.mux.Handle("/api/alerts", alerts)
		s.mux.Handle("/api/alerts/", alerts)
	}

	if len(s.config.Views) > 0 {
		sinks := make([]*render.Sink, 0, len(s.config.Views))
		for _, v := range s.config.Views {
			sinks = append(sinks, v.Sink)
		}
		s.mux.Handle("/api/stream", NewStreamHandler(sinks))

		s.events = NewEventsHandler(s.config.Metrics)
		for _, sink := range sinks {
			sink.OnUpdate(s.events.Publish)
		}
		s.mux.Handle("/api/events", s.events)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Events returns the event broadcaster, or nil when no views are configured.
func (s *Server) Events() *EventsHandler {
	return s.events
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

	writeJSON(w, response)
}

// viewStatus is the per-controller entry of /api/status.
type viewStatus struct {
	render.Status
	Transport string `json:"transport,omitempty"`
	Session   string `json:"session,omitempty"`
	Busy      bool   `json:"busy"`
	Analyzed  uint64 `json:"analyzed"`
	Skipped   uint64 `json:"skipped"`
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	views := make([]viewStatus, 0, len(s.config.Views))
	for _, v := range s.config.Views {
		vs := viewStatus{Status: v.Sink.Status()}
		if v.Controller != nil {
			info := v.Controller.Info()
			vs.State = info.State
			vs.Transport = info.Transport
			vs.Session = info.Session
			vs.Busy = info.Busy
		}
		if v.Counts != nil {
			vs.Analyzed, vs.Skipped = v.Counts()
		}
		views = append(views, vs)
	}

	writeJSON(w, map[string]interface{}{"views": views})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Monitor", "listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if s.events != nil {
		s.events.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
