// Package server exposes the concept graph pipeline over HTTP.
//
// Documents are created by POSTing an extraction; the pipeline reconciles it
// into a snapshot, groups concepts into constellations, and persists the
// result. Scenes are computed on demand per detail level or subset, so a UI
// can re-render views without rebuilding the graph.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/starchart-viz/starchart/pkg/cluster"
	"github.com/starchart-viz/starchart/pkg/pipeline"
	"github.com/starchart-viz/starchart/pkg/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8470"

// Config holds the server's dependencies and settings.
type Config struct {
	// Addr is the listen address (default ":8470").
	Addr string

	// Store persists documents. Required.
	Store store.Store

	// Runner executes the pipeline. Required.
	Runner *pipeline.Runner

	// Clusterer proposes constellations. Nil enables the connectivity fallback.
	Clusterer cluster.Clusterer

	// ClusterModel names the chat model used for grouping.
	ClusterModel string

	// ConstellationCount is the requested group count (default 4).
	ConstellationCount int

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Server wraps an http.Server with graceful shutdown.
type Server struct {
	srv    *http.Server
	router http.Handler
	logger *log.Logger
}

// New builds a server from the given configuration.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	h := &handler{
		store:     cfg.Store,
		runner:    cfg.Runner,
		clusterer: cfg.Clusterer,
		model:     cfg.ClusterModel,
		count:     cfg.ConstellationCount,
		logger:    cfg.Logger,
	}
	router := newRouter(h, cfg.Logger)

	return &Server{
		router: router,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start listens and serves until the server is shut down.
// It returns nil after a clean Shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// Handler returns the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
