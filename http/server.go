// Package http exposes the churn analysis and inference service over HTTP.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"churnsight/logger"
)

// Server wraps the HTTP listener and its middleware chain.
type Server struct {
	server *http.Server
	config ServerConfig
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
}

// DefaultServerConfig returns sensible listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		MaxUploadBytes: 16 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer builds the server with all routes and middleware registered.
func NewServer(config ServerConfig) *Server {
	if config.Port == 0 {
		config = DefaultServerConfig()
	}

	mux := http.NewServeMux()
	RegisterHandlers(mux)

	go liveHub.Run()

	chain := Chain(
		RecoveryMiddleware,
		LoggerMiddleware,
		SecurityHeadersMiddleware,
		CORSMiddleware(config.AllowedOrigins),
		TimeoutMiddleware(config.Timeout),
		RequestSizeMiddleware(config.MaxUploadBytes),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
	}
}

// Start runs the listener until Stop is called.
func (s *Server) Start() error {
	logger.L.Info("starting HTTP server on " + s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.L.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
