package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	IsHealthy() bool
	GetStatus() map[string]string
}

// Config holds listener ports and endpoint paths.
type Config struct {
	HealthPort     int
	LivenessPath   string
	ReadinessPath  string
	MetricsEnabled bool
	MetricsPort    int
	MetricsPath    string
}

func (c Config) withDefaults() Config {
	if c.LivenessPath == "" {
		c.LivenessPath = "/health/live"
	}
	if c.ReadinessPath == "" {
		c.ReadinessPath = "/health/ready"
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	return c
}

// Server represents the HTTP server for health and metrics.
// When metrics share the health port they are served by the health listener.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *slog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg Config,
	healthChecker HealthChecker,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	cfg = cfg.withDefaults()

	healthMux := newHealthMux(cfg, healthChecker, logger)
	s := &Server{
		healthServer: newHTTPServer(cfg.HealthPort, healthMux),
		logger:       logger,
	}

	if cfg.MetricsEnabled {
		metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		if cfg.MetricsPort == cfg.HealthPort {
			healthMux.Handle(cfg.MetricsPath, metricsHandler)
		} else {
			metricsMux := http.NewServeMux()
			metricsMux.Handle(cfg.MetricsPath, metricsHandler)
			s.metricsServer = newHTTPServer(cfg.MetricsPort, metricsMux)
		}
	}

	return s
}

func newHealthMux(cfg Config, checker HealthChecker, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.LivenessPath, LivenessHandler(checker, logger))
	mux.HandleFunc(cfg.ReadinessPath, ReadinessHandler(checker, logger))
	return mux
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Handler returns the health listener's handler.
func (s *Server) Handler() http.Handler {
	return s.healthServer.Handler
}

// Start starts the HTTP listeners in the background.
func (s *Server) Start() error {
	s.serve("health", s.healthServer)
	if s.metricsServer != nil {
		s.serve("metrics", s.metricsServer)
	}
	return nil
}

func (s *Server) serve(name string, srv *http.Server) {
	go func() {
		s.logger.Info("starting "+name+" server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(name+" server failed", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	servers := []*http.Server{s.healthServer}
	if s.metricsServer != nil {
		servers = append(servers, s.metricsServer)
	}

	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			errChan <- srv.Shutdown(ctx)
		}(srv)
	}

	var errs []error
	for range servers {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
