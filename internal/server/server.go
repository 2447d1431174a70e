package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/pkg/config"
	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg           *config.Config
	logger        *zap.Logger
	authClient    *upstream.Client
	catalogClient *upstream.Client
	router        http.Handler
}

// New creates a new Server instance with all dependencies
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	s.authClient = upstream.New(cfg.Upstream.AuthBaseURL, cfg.Upstream.RequestTimeout, logger)
	s.catalogClient = upstream.New(cfg.Upstream.CatalogBaseURL, cfg.Upstream.RequestTimeout, logger)

	logger.Info("Upstream clients configured",
		zap.String("auth_base_url", cfg.Upstream.AuthBaseURL),
		zap.String("catalog_base_url", cfg.Upstream.CatalogBaseURL),
		zap.Duration("timeout", cfg.Upstream.RequestTimeout),
	)

	return s, nil
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// AuthClient returns the pipeline client for the auth upstream
func (s *Server) AuthClient() *upstream.Client {
	return s.authClient
}

// CatalogClient returns the pipeline client for the catalog upstream
func (s *Server) CatalogClient() *upstream.Client {
	return s.catalogClient
}

// GetLogger returns the logger instance
func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

// GetConfig returns the configuration
func (s *Server) GetConfig() *config.Config {
	return s.cfg
}
