// Package server composes the HTTP API server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/tracewire/tracewire/internal/api/http"
	"github.com/tracewire/tracewire/internal/api/middleware"
	"github.com/tracewire/tracewire/internal/httpclient"
	"github.com/tracewire/tracewire/internal/infrastructure/config"
	"github.com/tracewire/tracewire/internal/infrastructure/defaults"
	"github.com/tracewire/tracewire/internal/infrastructure/logging"
	"github.com/tracewire/tracewire/internal/infrastructure/monitoring"
	"github.com/tracewire/tracewire/internal/infrastructure/resilience"
	"github.com/tracewire/tracewire/internal/trace"
	"github.com/tracewire/tracewire/internal/trace/propagation"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router   *gin.Engine
	srv      *http.Server
	pipeline *defaults.Pipeline
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// New creates a server instance.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing tracewire server",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Tracing.Environment),
		zap.String("collector", cfg.Tracing.Endpoint),
	)

	metrics := monitoring.NewMetrics()

	pipeline, err := defaults.NewPipeline("tracewire", cfg.Tracing, logger, metrics)
	if err != nil {
		return nil, err
	}
	logger.Info("Trace pipeline initialized",
		zap.String("sampler", pipeline.Sampler.Description()),
		zap.Float64("ratio", cfg.Tracing.SampleRatio),
	)

	breaker := resilience.New("downstream", resilience.Settings{
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
	})
	client := httpclient.New(pipeline.Tracer, httpclient.Config{
		Name:    "chain",
		Breaker: breaker,
		Metrics: metrics,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(trace.Middleware(pipeline.Tracer, propagation.Extract, defaults.BaggageCodec{}))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	selfURL := fmt.Sprintf("http://127.0.0.1:%s", cfg.Server.Port)
	handlers := apihttp.NewHandlers(
		logger,
		pipeline.Tracer,
		client,
		selfURL,
		defaults.NewCollectorChecker(cfg.Tracing.Endpoint),
	)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/ready", handlers.Ready)

	router.GET("/api/weather", handlers.Weather)
	router.GET("/api/chain", handlers.Chain)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		pipeline: pipeline,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Router returns the underlying gin engine, used by integration tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close gracefully shuts down the server and drains the trace pipeline.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if s.srv != nil {
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		}
	}

	// Flush buffered spans before the process exits.
	if err := s.pipeline.Shutdown(ctx); err != nil {
		s.logger.Error("Trace pipeline shutdown failed", zap.Error(err))
		return err
	}
	s.logger.Info("Trace pipeline drained")

	_ = s.logger.Sync()
	return nil
}
