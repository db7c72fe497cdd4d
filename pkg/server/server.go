// Package server exposes convergence status over HTTP when jenkube runs as
// a long-lived in-cluster converger: health and readiness probes, Prometheus
// metrics, and the last run report.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/objectHuang/jenkube/pkg/pipeline"
)

// Server serves status endpoints for the converger.
type Server struct {
	cfg *Config

	mu         sync.RWMutex
	ready      bool
	lastReport *pipeline.RunReport

	httpServer *http.Server

	limiterOnce sync.Once
	apiLimiter  *rate.Limiter
}

// New creates a status server with the given config. Nil means defaults.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{cfg: cfg}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// SetReport stores the most recent run report and flips readiness once the
// first run has completed.
func (s *Server) SetReport(report *pipeline.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = report
	s.ready = true
}

// ListenAndServe blocks until the context is canceled, then shuts down
// gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		slog.Info("status server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// System endpoints, never rate limited.
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/status", s.withMiddleware(s.handleStatus))

	return mux
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	if !ready {
		respondJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "not_ready",
			Timestamp: time.Now().UTC(),
			Reason:    "no convergence run has completed yet",
		})
		return
	}
	respondJSON(w, http.StatusOK, healthResponse{Status: "ready", Timestamp: time.Now().UTC()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	report := s.lastReport
	s.mu.RUnlock()

	if report == nil {
		writeError(w, r, http.StatusNotFound, "NO_RUN", "no convergence run has completed yet", false)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", slog.String("error", err.Error()))
	}
}
