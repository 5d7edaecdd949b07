package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/rs/zerolog"
)

// Chain tries each source in order until one returns data.
type Chain struct {
	sources []Source
	logger  zerolog.Logger
}

// NewChain creates an ordered fallback over sources.
func NewChain(logger zerolog.Logger, sources ...Source) *Chain {
	return &Chain{
		sources: sources,
		logger:  logger.With().Str("component", "datasource-chain").Logger(),
	}
}

// Name implements Source.
func (c *Chain) Name() string {
	return "chain"
}

// Sources returns the names of the chained sources in order.
func (c *Chain) Sources() []string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return names
}

// FetchLeaderboardPage implements Source.
func (c *Chain) FetchLeaderboardPage(ctx context.Context, region models.Region, page int) ([]models.LeaderboardEntry, error) {
	var lastErr error

	for _, s := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		entries, err := s.FetchLeaderboardPage(ctx, region, page)
		if err == nil && len(entries) == 0 {
			err = ErrNoData
		}
		observe(s.Name(), opLeaderboard, start, err)

		if err == nil {
			return entries, nil
		}
		if errors.Is(err, ErrUnsupported) {
			continue
		}

		c.logger.Warn().
			Err(err).
			Str("source", s.Name()).
			Str(logging.FieldRegion, region.String()).
			Int(logging.FieldPage, page).
			Msg("Leaderboard source failed, trying next")
		lastErr = err
	}

	if lastErr == nil {
		return nil, ErrNoData
	}
	return nil, fmt.Errorf("all sources failed: %w", lastErr)
}

// FetchPlayerStats implements Source. An explicit error payload from any
// source wins over plain failures once every source has been tried.
func (c *Chain) FetchPlayerStats(ctx context.Context, identifier string) (*models.Profile, error) {
	var (
		lastErr    error
		profileErr *ProfileError
	)

	for _, s := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		profile, err := s.FetchPlayerStats(ctx, identifier)
		if err == nil && profile == nil {
			err = ErrNoData
		}
		observe(s.Name(), opPlayerStats, start, err)

		if err == nil {
			return profile, nil
		}
		if errors.Is(err, ErrUnsupported) {
			continue
		}

		var pe *ProfileError
		if errors.As(err, &pe) && profileErr == nil {
			profileErr = pe
		}

		c.logger.Warn().
			Err(err).
			Str("source", s.Name()).
			Str(logging.FieldIdentifier, identifier).
			Msg("Profile source failed, trying next")
		lastErr = err
	}

	switch {
	case profileErr != nil:
		return nil, profileErr
	case lastErr == nil:
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("all sources failed: %w", lastErr)
	}
}
