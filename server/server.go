// Package server implements the HTTP API in front of the agent.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ManagementMO/dreamwell-assessment/agent/orchestrator"
	"github.com/ManagementMO/dreamwell-assessment/agent/store"
)

// Generator runs one draft-generation orchestration.
// Satisfied by orchestrator.Orchestrator.
type Generator interface {
	Run(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
}

// Config holds the server's dependencies and settings.
type Config struct {
	Threads   store.ThreadStore
	Brands    store.BrandStore
	Generator Generator

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     zerolog.Logger
}

// New creates a server with all routes configured.
func New(cfg Config) *Server {
	logger := log.With().Str("component", "server").Logger()
	h := &handlers{
		threads:   cfg.Threads,
		brands:    cfg.Brands,
		generator: cfg.Generator,
		version:   cfg.Version,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /emails", h.handleListEmails)
	mux.HandleFunc("GET /emails/{id}", h.handleGetEmail)
	mux.HandleFunc("POST /generate", h.handleGenerate)
	mux.HandleFunc("POST /send", h.handleSend)

	var root http.Handler = mux
	root = recoveryMiddleware(logger, root)
	root = loggingMiddleware(logger, root)
	root = requestIDMiddleware(root)

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		// Generation runs can take the full orchestrator deadline.
		writeTimeout = 60 * time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		handler: root,
		logger:  logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
