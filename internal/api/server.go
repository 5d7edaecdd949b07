// Package api exposes the lookup service over HTTP.
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/Sternrassler/rank-lookup/pkg/config"
	"github.com/Sternrassler/rank-lookup/pkg/lookup"
	"github.com/Sternrassler/rank-lookup/pkg/metrics"
	"github.com/Sternrassler/rank-lookup/pkg/ratelimit"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Routes served by the API.
const (
	LookupPath  = "/api/leaderboard-lookup"
	HealthPath  = "/health"
	ReadyPath   = "/ready"
	MetricsPath = "/metrics"
)

// LookupService resolves one batch.
type LookupService interface {
	Lookup(ctx context.Context, req lookup.Request) (*lookup.Response, error)
}

// ReadinessCheck reports whether a backing dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Option configures optional server behavior.
type Option func(*Server)

// WithReadinessCheck adds a check consulted by the readiness endpoint.
func WithReadinessCheck(check ReadinessCheck) Option {
	return func(s *Server) {
		s.checks = append(s.checks, check)
	}
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	service LookupService
	limiter ratelimit.Limiter
	config  config.ServerConfig
	checks  []ReadinessCheck
	logger  zerolog.Logger
}

// NewServer creates the HTTP layer. limiter gates the lookup endpoint only.
func NewServer(service LookupService, limiter ratelimit.Limiter, cfg config.ServerConfig, logger zerolog.Logger, opts ...Option) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.Default().Server.MaxBodyBytes
	}
	s := &Server{
		service: service,
		limiter: limiter,
		config:  cfg,
		logger:  logger.With().Str("component", "api").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc(LookupPath, s.handleLookup).Methods(http.MethodPost)
	router.HandleFunc(LookupPath, handlePreflight).Methods(http.MethodOptions)
	router.HandleFunc(LookupPath, lookupMethodNotAllowed)

	router.HandleFunc(HealthPath, s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc(ReadyPath, s.handleReady).Methods(http.MethodGet)
	router.Handle(MetricsPath, metrics.Handler()).Methods(http.MethodGet)

	// mux skips Use middleware when no route matched, so the fallback
	// handlers get the same chain explicitly.
	chain := []mux.MiddlewareFunc{
		requestIDMiddleware(s.logger),
		metricsMiddleware,
		recoveryMiddleware,
		corsMiddleware(s.config.AllowedOrigin),
	}
	router.Use(chain...)
	router.NotFoundHandler = wrap(http.HandlerFunc(notFoundHandler), chain)
	router.MethodNotAllowedHandler = wrap(http.HandlerFunc(methodNotAllowedHandler), chain)

	return router
}

// wrap applies chain with the first element outermost, matching router.Use.
func wrap(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// NewHTTPServer wraps handler with the configured listener timeouts.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
