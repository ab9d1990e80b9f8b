package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/therealutkarshpriyadarshi/logview/internal/health"
	"github.com/therealutkarshpriyadarshi/logview/internal/logging"
)

// Server exposes the metrics registry and the health report over HTTP
// while a session watches files
type Server struct {
	metricsServer *http.Server
	listener      net.Listener
	logger        *logging.Logger
}

// Config holds server configuration
type Config struct {
	MetricsAddress  string
	MetricsPath     string
	MetricsRegistry *prometheus.Registry
	// Health, when set, is served at /health and /live
	Health *health.Checker
	Logger *logging.Logger
}

// New creates a new server. It serves nothing without an address, or
// with neither a registry nor a health checker.
func New(cfg Config) *Server {
	s := &Server{
		logger: logging.OrNop(cfg.Logger).WithComponent("server"),
	}

	if cfg.MetricsAddress == "" || (cfg.MetricsRegistry == nil && cfg.Health == nil) {
		return s
	}

	mux := http.NewServeMux()
	if cfg.MetricsRegistry != nil {
		metricsPath := cfg.MetricsPath
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		mux.Handle(metricsPath, promhttp.HandlerFor(
			cfg.MetricsRegistry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		))
	}
	if cfg.Health != nil {
		mux.HandleFunc("/health", cfg.Health.HTTPHandler())
		mux.HandleFunc("/live", cfg.Health.LivenessHandler())
	}

	s.metricsServer = &http.Server{
		Addr:         cfg.MetricsAddress,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Name implements shutdown.Component
func (s *Server) Name() string { return "metrics-server" }

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	if s.metricsServer == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.metricsServer.Addr)
	if err != nil {
		return fmt.Errorf("metrics server error: %w", err)
	}
	s.listener = ln

	s.logger.Info().
		Str("address", ln.Addr().String()).
		Msg("Starting metrics server")

	go func() {
		if err := s.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.metricsServer == nil || s.listener == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down metrics server")
	if err := s.metricsServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down metrics server")
		return err
	}
	return nil
}
