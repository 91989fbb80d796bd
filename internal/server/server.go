package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/progress"
	"bindery/internal/queue"
	"bindery/internal/worker"
)

// Server exposes the book, job, output and progress endpoints over HTTP.
type Server struct {
	cfg    *config.Config
	store  *queue.Store
	worker *worker.Worker
	hub    *progress.Hub
	logger *slog.Logger

	listener net.Listener
	server   *http.Server

	mu             sync.Mutex
	backgroundJobs map[string]struct{}
}

// New assembles the HTTP server. The worker reference powers explicit
// run-now requests; scheduled jobs stay with the polling loop.
func New(cfg *config.Config, store *queue.Store, w *worker.Worker, hub *progress.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		cfg:            cfg,
		store:          store,
		worker:         w,
		hub:            hub,
		logger:         logger.With(slog.String(logging.FieldComponent, "api-server")),
		backgroundJobs: make(map[string]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/books", srv.handleBooks)
	mux.HandleFunc("/api/books/", srv.handleBook)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJob)
	mux.HandleFunc("/api/output/", srv.handleOutput)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving on the configured bind address. It returns after
// the listener is active; ctx cancellation shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// startJobInBackground runs one job through the worker on its own
// goroutine. A job already started this way is not started twice.
func (s *Server) startJobInBackground(jobID string) {
	s.mu.Lock()
	if _, running := s.backgroundJobs[jobID]; running {
		s.mu.Unlock()
		return
	}
	s.backgroundJobs[jobID] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.backgroundJobs, jobID)
			s.mu.Unlock()
		}()
		if _, err := s.worker.ProcessJob(context.Background(), jobID); err != nil {
			s.logger.Error("run-now execution failed",
				slog.String(logging.FieldJobID, jobID),
				logging.Error(err))
		}
	}()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
