package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/joeychilson/textfilter/config"
	"github.com/joeychilson/textfilter/logger"
	"github.com/joeychilson/textfilter/normalizer"
)

const (
	httpReadTimeout     = 30 * time.Second
	httpWriteTimeout    = 60 * time.Second
	httpIdleTimeout     = 60 * time.Second
	httpShutdownTimeout = 10 * time.Second
)

// Config holds configuration for the API server.
type Config struct {
	// RateLimitRequests is the number of requests allowed per window (default: 100)
	RateLimitRequests int
	// RateLimitWindow is the time window for rate limiting (default: 1 minute)
	RateLimitWindow time.Duration
	// MaxTextLength is the largest accepted text in bytes (default: 1 MiB)
	MaxTextLength int
	// RedisClient enables distributed rate limiting (optional, in-memory if nil)
	RedisClient *redis.Client
	// APIKey protects the /v1 routes (optional)
	APIKey string
	// LogLevel is the level of request log lines
	LogLevel slog.Level
}

// ConfigFrom builds the server config from the service configuration.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		RateLimitRequests: cfg.Server.GetRateLimitRequests(),
		RateLimitWindow:   cfg.Server.GetRateLimitWindow(),
		MaxTextLength:     cfg.Server.GetMaxTextLength(),
	}
}

// Server is the HTTP server for the API.
type Server struct {
	normalizer    *normalizer.Normalizer
	logger        logger.Logger
	router        *chi.Mux
	maxTextLength int
}

// New creates a new API server with chi router and middleware stack.
func New(n *normalizer.Normalizer, log logger.Logger, cfg *Config) (*Server, error) {
	if n == nil {
		return nil, errors.New("normalizer is required")
	}
	if log == nil {
		log = logger.Noop()
	}
	if cfg == nil {
		cfg = ConfigFrom(n.Config())
	}

	maxTextLength := cfg.MaxTextLength
	if maxTextLength <= 0 {
		maxTextLength = config.DefaultMaxTextLength
	}

	s := &Server{
		normalizer:    n,
		logger:        log,
		maxTextLength: maxTextLength,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(log, cfg.LogLevel))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(Auth(cfg.APIKey))
		r.Use(RateLimit(RateLimitConfig{
			RequestLimit:   cfg.RateLimitRequests,
			WindowDuration: cfg.RateLimitWindow,
			RedisClient:    cfg.RedisClient,
		}))

		r.Post("/normalize", s.handleNormalize)
		r.Get("/pipelines", s.handlePipelines)
		r.Get("/pipelines/{name}", s.handlePipeline)
		r.Get("/filters", s.handleFilters)
	})

	s.router = r
	return s, nil
}

// StartWithShutdown starts the HTTP server and shuts it down gracefully when ctx is done.
func (s *Server) StartWithShutdown(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
