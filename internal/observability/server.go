package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/validation"
)

// Server exposes the probes and the Prometheus metrics on a dedicated port.
type Server struct {
	logger   *slog.Logger
	cfg      *config.ObservabilityConfig
	router   *chi.Mux
	server   *http.Server
	checkers []Checker
}

// NewServer creates the observability server. The readiness probe passes only when
// every checker passes (redis profile store, postgres event sink, datafile).
// It panics if cfg is nil.
func NewServer(logger *slog.Logger, cfg *config.ObservabilityConfig, checkers ...Checker) *Server {
	validation.AssertNotNil(cfg, "observability config")
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(RequestLogger(logger))

	s := &Server{
		logger:   logger,
		cfg:      cfg,
		router:   r,
		checkers: checkers,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get(s.cfg.LivenessPath, s.liveness)
	s.router.Get(s.cfg.ReadinessPath, s.readiness)

	// promhttp.Handler() exposes every collector registered through promauto.
	s.router.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.Handler())
}

// Handler returns the router serving the observability endpoints.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server in a background goroutine.
// It is non-blocking.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%s", s.cfg.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.Timeout,
		ReadHeaderTimeout: s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
		IdleTimeout:       s.cfg.Timeout * 3,
	}

	go func() {
		s.logger.Info("starting observability server",
			slog.String("addr", addr),
			slog.String("liveness_path", s.cfg.LivenessPath),
			slog.String("readiness_path", s.cfg.ReadinessPath),
			slog.String("metrics_path", s.cfg.MetricsPath),
		)

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server failed", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown gracefully stops the observability server. It is a no-op if Start
// was never called.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("stopping observability server")
	return s.server.Shutdown(ctx)
}
