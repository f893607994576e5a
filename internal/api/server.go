package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/onboarding-gateway/internal/config"
)

// Server represents the API server
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server listening on cfg.Addr().
func NewServer(cfg config.ServerConfig, h *Handlers, opts RouteOptions) *Server {
	handler := SetupRoutes(h, opts)
	return &Server{
		handler: handler,
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server. In-flight handlers finish
// first; detached forwarding calls are drained separately by the dispatcher.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
