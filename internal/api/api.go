// Package api provides HTTP handlers and the main API server logic for Sprout.
//
// It exposes RESTful endpoints for driving the onboarding conversation.
// Message turns are answered with a Server-Sent Events stream of the agent's
// step, token, and interaction events.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server wires the onboarding agent and state manager into HTTP handlers.
type Server struct {
	agent   OnboardingService
	states  StateService
	patches PatchService
	httpSrv *http.Server
}

// NewServer creates a new API server.
func NewServer(agent OnboardingService, states StateService, patches PatchService) *Server {
	slog.Debug("Creating API server")
	return &Server{agent: agent, states: states, patches: patches}
}

// routes registers all endpoints on a new mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /onboarding/{userID}/messages", s.postMessageHandler)
	mux.HandleFunc("GET /onboarding/{userID}", s.getStateHandler)
	mux.HandleFunc("POST /onboarding/{userID}/reset", s.resetHandler)
	mux.HandleFunc("POST /onboarding/{userID}/context/{step}", s.patchContextHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context, opts ...Option) error {
	cfg := Opts{Addr: ":8080"}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Sprout API running", "addr", cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
