package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/gateway"
)

// Server bundles the hub, the origin policy and the HTTP server.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	http     *http.Server
}

// New builds a Server from cfg. Gateway options are passed through to the hub.
func New(cfg Config, logger *slog.Logger, opts ...gateway.Option) *Server {
	cfg = cfg.sanitize()
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		hub:     NewHub(cfg, logger, opts...),
		origins: newOriginPolicy(cfg.AllowedOrigins, logger),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	s.http = CreateServer(cfg.Port, s.SetupRoutes())
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start launches the hub loop. It must be called before serving requests.
func (s *Server) Start() {
	go s.hub.Run()
}

// ListenAndServe starts the hub and blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.Start()
	s.logger.Info("server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then closes every connection and waits
// for the client goroutines, bounded by the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	httpErr := s.http.Shutdown(ctx)

	timeout := s.cfg.ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(deadline), 0)
	}
	hubErr := s.hub.Shutdown(timeout)

	return errors.Join(httpErr, hubErr)
}

// CreateServer creates and configures the HTTP server with security settings
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
