// Package server constructs and starts the livechat HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/livechat/internal/chat"
)

// Server is the HTTP and WebSocket front of one chat engine.
type Server struct {
	cfg      *Config
	engine   *chat.Engine
	verifier chat.Verifier
	origins  *originPolicy
	upgrader websocket.Upgrader
	metrics  http.Handler
	hub      *hub
	log      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New builds a Server around engine. The verifier authenticates the HTTP API
// and should be the one the engine was built with.
func New(cfg *Config, engine *chat.Engine, verifier chat.Verifier, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		verifier: verifier,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.origins = newOriginPolicy(cfg.Origins(), s.log)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.isAllowed,
	}
	s.hub = newHub(s.log)
	return s
}

// Clients returns the number of connections whose pumps are running.
func (s *Server) Clients() int {
	return s.hub.count()
}

// Shutdown stops the engine, which closes every session, then waits up to
// timeout for client goroutines to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.log.Info("Initiating chat shutdown...")
	s.engine.Stop()

	if err := s.hub.wait(timeout); err != nil {
		return err
	}
	s.log.Info("Chat shutdown completed successfully")
	return nil
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server, log *slog.Logger) error {
	log.Info("Server listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration, log *slog.Logger) error {
	log.Info("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "err", err)
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
