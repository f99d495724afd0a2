package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/docsflow/internal/logfields"
	"git.home.luguber.info/inful/docsflow/internal/trigger"
)

// HTTPServer exposes the daemon's operational surface: health, status, run
// history, webhook event ingestion, and Prometheus metrics.
type HTTPServer struct {
	port   int
	daemon *Daemon
	server *http.Server
}

// NewHTTPServer creates the server; nothing listens until Start.
func NewHTTPServer(port int, daemon *Daemon) *HTTPServer {
	return &HTTPServer{port: port, daemon: daemon}
}

// Start binds the port and begins serving. Binding happens here so startup
// fails fast on an occupied port instead of logging from a goroutine later.
func (s *HTTPServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	mux.HandleFunc("/api/events", s.handleEvent)
	mux.Handle("/metrics", promhttp.HandlerFor(s.daemon.registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("bind http port %d: %w", s.port, err)
	}

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", logfields.Error(err))
		}
	}()

	slog.Info("HTTP server started", slog.Int("port", s.port))
	return nil
}

// Stop gracefully shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":  s.daemon.projection.GetActiveRuns(),
		"history": s.daemon.projection.GetHistory(),
	})
}

func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}
	summary, ok := s.daemon.projection.GetRun(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// eventRequest is the webhook ingestion payload.
type eventRequest struct {
	Kind       string `json:"kind"`
	Ref        string `json:"ref"`
	Repository string `json:"repository,omitempty"`
	Actor      string `json:"actor,omitempty"`
}

// handleEvent accepts an external event delivery and runs it through the
// matcher. A matched event answers 202 with the admitted run's ID; an
// ignored event answers 200 so senders do not retry.
func (s *HTTPServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}

	kind := trigger.EventKind(req.Kind)
	switch kind {
	case trigger.EventPush, trigger.EventTag, trigger.EventSchedule:
	default:
		http.Error(w, "unknown event kind", http.StatusBadRequest)
		return
	}

	runID, matched := s.daemon.HandleEvent(trigger.Event{
		Kind:       kind,
		Ref:        req.Ref,
		Repository: req.Repository,
		Actor:      req.Actor,
		Time:       time.Now(),
	})
	if !matched {
		writeJSON(w, http.StatusOK, map[string]any{"matched": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"matched": true, "run_id": runID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", logfields.Error(err))
	}
}
