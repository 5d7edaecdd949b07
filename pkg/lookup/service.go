package lookup

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/datasource"
	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/rs/zerolog"
)

// DefaultTimeout is the soft deadline of one batch.
const DefaultTimeout = 60 * time.Second

// Config holds the orchestrator limits.
type Config struct {
	MaxBatch         int
	MaxRank          int
	PageSize         int
	PageConcurrency  int
	StatsConcurrency int
	Timeout          time.Duration
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxBatch:         DefaultMaxBatch,
		MaxRank:          DefaultMaxRank,
		PageSize:         DefaultPageSize,
		PageConcurrency:  DefaultMaxBatch,
		StatsConcurrency: DefaultMaxBatch,
		Timeout:          DefaultTimeout,
	}
}

// Service runs batch lookups.
type Service struct {
	config Config
	pages  *PageCoordinator
	stats  *StatsCoordinator
	logger zerolog.Logger
}

// NewService creates a lookup service over source with page listings and
// player statistics cached in store.
func NewService(source datasource.Source, store cache.Store, cfg Config, logger zerolog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaults.MaxBatch
	}
	if cfg.MaxRank <= 0 {
		cfg.MaxRank = defaults.MaxRank
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	return &Service{
		config: cfg,
		pages:  NewPageCoordinator(source, store, cfg.PageSize, cfg.PageConcurrency, logger),
		stats:  NewStatsCoordinator(source, store, cfg.StatsConcurrency, logger),
		logger: logger.With().Str("component", "lookup").Logger(),
	}
}

// Config returns the effective limits.
func (s *Service) Config() Config {
	return s.config
}

// Lookup validates req and resolves every input.
//
// Returned errors are *ValidationError for rejected batches, ErrTimeout when
// the soft deadline passes, the context error when ctx ends first, or an
// internal error. Work already started keeps running after a timeout and
// still populates the caches.
func (s *Service) Lookup(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	defer func() {
		lookupDuration.Observe(time.Since(start).Seconds())
	}()

	region, err := models.ParseRegion(req.Region)
	if err != nil {
		lookupRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, newValidationError(CodeInvalidRegion, "Invalid region")
	}
	if req.Ranks == nil {
		lookupRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, newValidationError(CodeInvalidBody, "ranks must be an array")
	}

	classified, err := Classify(req.Ranks, s.config.MaxBatch, s.config.MaxRank)
	if err != nil {
		lookupRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Str("panic", fmt.Sprint(r)).Msg("Recovered panic in lookup")
				done <- result{err: fmt.Errorf("lookup panicked: %v", r)}
			}
		}()
		done <- result{resp: s.run(context.WithoutCancel(ctx), region, classified)}
	}()

	timer := time.NewTimer(s.config.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			lookupRequestsTotal.WithLabelValues("internal_error").Inc()
			return nil, r.err
		}
		lookupRequestsTotal.WithLabelValues("ok").Inc()
		s.logger.Info().
			Str(logging.FieldRegion, region.String()).
			Int("inputs", len(req.Ranks)).
			Int("found", len(r.resp.Data)).
			Int("failed", len(r.resp.Errors)).
			Dur(logging.FieldDuration, time.Since(start)).
			Msg("Lookup complete")
		return r.resp, nil
	case <-timer.C:
		lookupRequestsTotal.WithLabelValues("timeout").Inc()
		s.logger.Warn().
			Str(logging.FieldRegion, region.String()).
			Int("inputs", len(req.Ranks)).
			Dur("timeout", s.config.Timeout).
			Msg("Lookup exceeded deadline")
		return nil, ErrTimeout
	case <-ctx.Done():
		lookupRequestsTotal.WithLabelValues("cancelled").Inc()
		return nil, ctx.Err()
	}
}

// run executes the page phase, then the stats phase, then assembly.
func (s *Service) run(ctx context.Context, region models.Region, c Classification) *Response {
	resolved, pageErrs := s.pages.Resolve(ctx, region, c.Ranks)

	players := make([]ResolvedPlayer, 0, len(resolved)+len(c.Identifiers))
	players = append(players, resolved...)
	for _, t := range c.Identifiers {
		players = append(players, ResolvedPlayer{Identifier: t.Identifier, Input: t.Input})
	}

	results, statErrs := s.stats.FetchAll(ctx, region, players)

	errs := make([]LookupError, 0, len(c.Errors)+len(pageErrs)+len(statErrs))
	errs = append(errs, c.Errors...)
	errs = append(errs, pageErrs...)
	errs = append(errs, statErrs...)

	data, failures := Split(Assemble(results, errs))

	lookupOutcomesTotal.WithLabelValues("success").Add(float64(len(data)))
	lookupOutcomesTotal.WithLabelValues("error").Add(float64(len(failures)))

	return &Response{Success: true, Data: data, Errors: failures}
}
