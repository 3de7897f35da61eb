package httpserver

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/pkg/healthprobe"
	"github.com/mselser95/prediction-arb/pkg/types"
)

//go:embed dashboard.html
var dashboardHTML []byte

// StateSource supplies the latest scan snapshot for the dashboard, the
// state API and the SSE stream.
type StateSource interface {
	Snapshot() types.StateSnapshot
}

// StatsSource aggregates logged opportunities over trailing windows.
type StatsSource interface {
	PeriodStats(ctx context.Context, window time.Duration) (types.PeriodStats, error)
}

// Server provides the dashboard, the state and stats APIs, the live streams,
// metrics and health checks.
type Server struct {
	server         *http.Server
	logger         *zap.Logger
	healthChecker  *healthprobe.HealthChecker
	state          StateSource
	stats          StatsSource
	streamInterval time.Duration
}

// Config holds server configuration. Hub is optional; when set it is mounted
// at /ws.
type Config struct {
	Port           string
	Logger         *zap.Logger
	HealthChecker  *healthprobe.HealthChecker
	State          StateSource
	Stats          StatsSource
	Hub            http.Handler
	StreamInterval time.Duration
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	streamInterval := cfg.StreamInterval
	if streamInterval <= 0 {
		streamInterval = 2 * time.Second
	}

	s := &Server{
		logger:         cfg.Logger,
		healthChecker:  cfg.HealthChecker,
		state:          cfg.State,
		stats:          cfg.Stats,
		streamInterval: streamInterval,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Request/response endpoints get the usual timeout.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/", s.handleDashboard)
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/health", cfg.HealthChecker.Health())
		r.Get("/ready", cfg.HealthChecker.Ready())

		if cfg.State != nil {
			r.Get("/api/state", s.handleState)
		}
		if cfg.Stats != nil {
			r.Get("/api/stats", s.handleStats)
		}
	})

	// Streaming endpoints hold their connection open and sit outside the
	// timeout middleware.
	if cfg.State != nil {
		r.Get("/stream", s.handleStream)
	}
	if cfg.Hub != nil {
		r.Handle("/ws", cfg.Hub)
	}

	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: /stream and /ws write for the connection's
		// whole lifetime.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dashboardHTML)
}
