package lookup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/datasource"
	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// DefaultPageSize is the number of ranks on one leaderboard page.
const DefaultPageSize = 100

// PageFor returns the 1-indexed page holding rank.
func PageFor(rank, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return (rank + pageSize - 1) / pageSize
}

// GroupByPage maps each page number to the rank targets on it, preserving
// input order within a page.
func GroupByPage(targets []Target, pageSize int) map[int][]Target {
	return lo.GroupBy(targets, func(t Target) int {
		return PageFor(t.Rank, pageSize)
	})
}

// PageCoordinator resolves rank targets to player identifiers with one
// data source fetch per distinct page.
type PageCoordinator struct {
	source      datasource.Source
	pages       *cache.Typed[[]models.LeaderboardEntry]
	pageSize    int
	concurrency int
	logger      zerolog.Logger
}

// NewPageCoordinator creates a page coordinator. concurrency bounds the
// number of pages fetched at once; zero or less means one task per page.
func NewPageCoordinator(source datasource.Source, store cache.Store, pageSize, concurrency int, logger zerolog.Logger) *PageCoordinator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger = logger.With().Str("component", "page-coordinator").Logger()
	return &PageCoordinator{
		source:      source,
		pages:       cache.NewTyped[[]models.LeaderboardEntry](store, logger),
		pageSize:    pageSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Resolve fetches every page referenced by targets concurrently and returns
// one ResolvedPlayer or LookupError per target. A failing page only affects
// the ranks on it.
func (c *PageCoordinator) Resolve(ctx context.Context, region models.Region, targets []Target) ([]ResolvedPlayer, []LookupError) {
	groups := GroupByPage(targets, c.pageSize)
	pages := lo.Keys(groups)
	sort.Ints(pages)

	var (
		mu       sync.Mutex
		resolved []ResolvedPlayer
		failures []LookupError
	)

	g := new(errgroup.Group)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}

	for _, page := range pages {
		onPage := groups[page]
		g.Go(func() error {
			players, errs := c.resolvePage(ctx, region, page, onPage)

			mu.Lock()
			resolved = append(resolved, players...)
			failures = append(failures, errs...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return resolved, failures
}

// resolvePage handles one page. It never panics.
func (c *PageCoordinator) resolvePage(ctx context.Context, region models.Region, page int, targets []Target) (players []ResolvedPlayer, errs []LookupError) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str(logging.FieldRegion, region.String()).
				Int(logging.FieldPage, page).
				Str("panic", fmt.Sprint(r)).
				Msg("Recovered panic in page task")
			players = nil
			errs = failAll(targets, msgPagePanic)
		}
	}()

	entries, err := c.loadPage(ctx, region, page)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str(logging.FieldRegion, region.String()).
			Int(logging.FieldPage, page).
			Int("ranks", len(targets)).
			Msg("Leaderboard page unavailable")
		return nil, failAll(targets, msgPageFailed)
	}

	for _, t := range targets {
		entry, ok := models.FindRank(entries, t.Rank)
		switch {
		case !ok:
			errs = append(errs, LookupError{Input: t.Input, Message: msgRankNotFound})
		case entry.Identifier == "":
			errs = append(errs, LookupError{Input: t.Input, Message: msgIdentifierMissing})
		default:
			players = append(players, ResolvedPlayer{Identifier: entry.Identifier, Input: t.Input, SourceRank: t.Rank})
		}
	}
	return players, errs
}

// loadPage returns the page listing from cache or the data source.
func (c *PageCoordinator) loadPage(ctx context.Context, region models.Region, page int) ([]models.LeaderboardEntry, error) {
	key := cache.LeaderboardKey(region, page).String()

	if entries, ok := c.pages.Get(ctx, key); ok && len(entries) > 0 {
		lookupPageFetchesTotal.WithLabelValues("cache_hit").Inc()
		c.logger.Debug().Str("key", key).Bool(logging.FieldCacheHit, true).Msg("Leaderboard page from cache")
		return entries, nil
	}

	start := time.Now()
	entries, err := c.source.FetchLeaderboardPage(ctx, region, page)
	if err == nil && len(entries) == 0 {
		err = datasource.ErrNoData
	}
	if err != nil {
		lookupPageFetchesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	lookupPageFetchesTotal.WithLabelValues("fetched").Inc()
	c.pages.Set(ctx, key, entries)
	c.logger.Debug().
		Str("key", key).
		Int("entries", len(entries)).
		Dur(logging.FieldDuration, time.Since(start)).
		Msg("Leaderboard page fetched")
	return entries, nil
}

func failAll(targets []Target, msg string) []LookupError {
	return lo.Map(targets, func(t Target, _ int) LookupError {
		return LookupError{Input: t.Input, Message: msg}
	})
}
