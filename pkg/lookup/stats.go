package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/datasource"
	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// errTaskPanic marks a data source call that panicked.
var errTaskPanic = errors.New("stats task panicked")

// StatsCoordinator resolves players to statistics, consulting the player
// cache first. Concurrent fetches of one player share a single data source
// call.
type StatsCoordinator struct {
	source      datasource.Source
	players     *cache.Typed[models.Profile]
	flight      singleflight.Group
	concurrency int
	logger      zerolog.Logger
}

// NewStatsCoordinator creates a stats coordinator. concurrency bounds the
// number of players fetched at once; zero or less means one task per player.
func NewStatsCoordinator(source datasource.Source, store cache.Store, concurrency int, logger zerolog.Logger) *StatsCoordinator {
	logger = logger.With().Str("component", "stats-coordinator").Logger()
	return &StatsCoordinator{
		source:      source,
		players:     cache.NewTyped[models.Profile](store, logger),
		concurrency: concurrency,
		logger:      logger,
	}
}

type fetched struct {
	profile models.Profile
	cached  bool
}

// FetchAll returns one PlayerStats or LookupError per player.
func (c *StatsCoordinator) FetchAll(ctx context.Context, region models.Region, players []ResolvedPlayer) ([]PlayerStats, []LookupError) {
	var (
		mu       sync.Mutex
		results  []PlayerStats
		failures []LookupError
	)

	g := new(errgroup.Group)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}

	for _, p := range players {
		g.Go(func() error {
			stats, lerr := c.fetchOne(ctx, region, p)

			mu.Lock()
			if lerr != nil {
				failures = append(failures, *lerr)
			} else {
				results = append(results, stats)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, failures
}

// fetchOne resolves a single player. It never panics.
func (c *StatsCoordinator) fetchOne(ctx context.Context, region models.Region, p ResolvedPlayer) (stats PlayerStats, lerr *LookupError) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str(logging.FieldIdentifier, p.Identifier).
				Str(logging.FieldRankInput, p.Input.String()).
				Str("panic", fmt.Sprint(r)).
				Msg("Recovered panic in stats task")
			lerr = &LookupError{Input: p.Input, Message: msgStatsPanic}
		}
	}()

	key := cache.PlayerKey(region, p.Identifier).String()

	if profile, ok := c.players.Get(ctx, key); ok {
		lookupStatsFetchesTotal.WithLabelValues("cache_hit").Inc()
		c.logger.Debug().Str("key", key).Bool(logging.FieldCacheHit, true).Msg("Player stats from cache")
		return newPlayerStats(p, profile, true), nil
	}

	v, err, shared := c.flight.Do(key, func() (any, error) {
		return c.load(ctx, key, p.Identifier)
	})
	if err != nil {
		lookupStatsFetchesTotal.WithLabelValues("failed").Inc()
		c.logger.Debug().
			Str(logging.FieldIdentifier, p.Identifier).
			Str(logging.FieldRankInput, p.Input.String()).
			Msg("Player stats failed")
		return PlayerStats{}, &LookupError{Input: p.Input, Message: statsErrorMessage(err)}
	}

	f := v.(fetched)
	if shared {
		lookupStatsFetchesTotal.WithLabelValues("shared").Inc()
	} else if !f.cached {
		lookupStatsFetchesTotal.WithLabelValues("fetched").Inc()
	}
	return newPlayerStats(p, f.profile, f.cached), nil
}

// load runs once per key at a time inside the singleflight group.
func (c *StatsCoordinator) load(ctx context.Context, key, identifier string) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str(logging.FieldIdentifier, identifier).
				Str("panic", fmt.Sprint(r)).
				Msg("Recovered panic in data source call")
			res, err = nil, errTaskPanic
		}
	}()

	// another flight may have stored it since our cache check
	if profile, ok := c.players.Get(ctx, key); ok {
		return fetched{profile: profile, cached: true}, nil
	}

	start := time.Now()
	profile, err := c.source.FetchPlayerStats(ctx, identifier)
	if err == nil && profile == nil {
		err = datasource.ErrNoData
	}
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str(logging.FieldIdentifier, identifier).
			Dur(logging.FieldDuration, time.Since(start)).
			Msg("Player stats unavailable")
		return nil, err
	}

	c.players.Set(ctx, key, *profile)
	c.logger.Debug().
		Str(logging.FieldIdentifier, identifier).
		Bool(logging.FieldCacheHit, false).
		Dur(logging.FieldDuration, time.Since(start)).
		Msg("Player stats fetched")
	return fetched{profile: *profile}, nil
}

// statsErrorMessage turns a data source failure into a client-safe message.
func statsErrorMessage(err error) string {
	var pe *datasource.ProfileError
	switch {
	case errors.As(err, &pe) && pe.Message != "":
		return pe.Message
	case errors.Is(err, errTaskPanic):
		return msgStatsPanic
	default:
		return msgStatsFailed
	}
}
