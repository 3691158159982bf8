// Package server wires the JSON API routes and runs the HTTP server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gobike/internal/config"
	"gobike/internal/handler"
	"gobike/internal/storage"
)

// Server is the HTTP server for the street network API.
type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a Server with all routes registered.
func New(cfg *config.Config, db *storage.DB, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	h := handler.New(db, logger)

	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/networks", h.Networks)
	mux.HandleFunc("GET /api/networks/{id}", h.NetworkDetail)
	mux.HandleFunc("GET /api/networks/{id}/stats", h.NetworkStats)
	mux.HandleFunc("GET /api/networks/{id}/nodes", h.Nodes)
	mux.HandleFunc("GET /api/networks/{id}/nodes/nearest", h.NearestNodes)
	mux.HandleFunc("GET /api/networks/{id}/edges", h.Edges)
	mux.HandleFunc("GET /api/networks/{id}/routes", h.Routes)

	return &Server{mux: mux, cfg: cfg, logger: logger}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.logger)
}

// ListenAndServe runs the server until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
