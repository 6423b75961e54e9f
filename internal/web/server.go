package web

import (
	"context"
	"net/http"
	"time"

	"github.com/cjeanneret/SwerveGo/internal/debug"
)

// Server exposes read-only module telemetry over HTTP.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server configured for the given address.
func NewServer(addr string, broadcaster *TelemetryBroadcaster) *Server {
	return &Server{
		addr:     addr,
		handlers: NewHandlers(broadcaster),
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /telemetry", s.handlers.HandleTelemetry)
	mux.HandleFunc("GET /telemetry/stream", s.handlers.HandleTelemetryStream)
	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("telemetry server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
