package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/laraflow/laraflow/internal/logging"
	"github.com/laraflow/laraflow/internal/metrics"
)

// Server exposes /metrics and /healthz.
type Server struct {
	srv      *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// NewServer builds the handler tree without listening.
func NewServer(m *metrics.Collector, health *HealthChecker) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logging.Component("daemon.http"),
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Listen binds addr. Use ":0" or "127.0.0.1:0" for an ephemeral port.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve blocks serving requests until Shutdown.
func (s *Server) Serve() {
	s.logger.Info("metrics listener started", "addr", s.Addr())
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("metrics listener failed", logging.KeyError, err)
	}
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
