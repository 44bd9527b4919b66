// Package api exposes the publish engine over HTTP for the host
// application's admin surface.
package api

import (
	"context"
	"net/http"

	"llmspub/internal/app"
)

// Server wraps the http.Server to provide graceful shutdown.
type Server struct {
	httpServer *http.Server
	app        *app.App
}

// NewServer creates and configures a new API server.
func NewServer(a *app.App) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    a.ServerAddr(),
			Handler: NewRouter(a),
		},
		app: a,
	}
}

// Start runs the HTTP server in a new goroutine. Listen failures after
// startup are reported through errCh.
func (s *Server) Start(errCh chan<- error) {
	s.app.Logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
