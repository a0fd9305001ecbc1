// Package server provides the HTTP API used by vault clients.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/vaultsync/internal/config"
	"github.com/hyperjump/vaultsync/internal/vault"
	"github.com/hyperjump/vaultsync/internal/vector"
	"go.uber.org/zap"
)

// Request headers understood by the API.
const (
	HeaderAPIKey       = "OBSIDIAN_VECTOR_API_KEY"
	HeaderVaultKey     = "OBSIDIAN_VECTOR_VAULT_KEY"
	HeaderOpenAIAPIKey = "OPENAI_API_KEY"
)

// Server is the HTTP server for the vault sync API.
type Server struct {
	syncer *vault.Syncer
	index  vector.VectorIndex
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(syncer *vault.Syncer, index vector.VectorIndex, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		syncer: syncer,
		index:  index,
		config: cfg,
		logger: logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(s.cors)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/api/files", s.handleListFiles)
		r.Post("/api/files", s.handlePutFile)
		r.Delete("/api/files", s.handleDeleteFile)
		r.Delete("/api/files/all", s.handleDeleteAll)
		r.Post("/related", s.handleQuery)
		r.Post("/api/query", s.handleQuery)
		r.Get("/api/status", s.handleStatus)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	if len(s.config.Server.APIKeys) == 0 {
		s.logger.Warn("no api keys configured, accepting any client")
	}
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
