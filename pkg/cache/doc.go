// Package cache provides the shared key/value store used by the lookup
// orchestrator for leaderboard page listings and per-player statistics.
//
// Two interchangeable backends implement Store:
//
//   - MemoryStore: in-process map with a TTL checked lazily on read, a periodic
//     background sweep, and insertion-order eviction once the capacity is reached
//   - RedisStore: shared Redis backend relying on native per-key expiry; it has no
//     capacity bound of its own
//
// Both backends behave identically from the caller's point of view: Get on an
// expired or absent key reports a miss, and Set never fails the caller. Redis
// errors are logged and counted, then swallowed, so caching stays best-effort.
//
// # Basic Usage
//
//	store := cache.NewMemoryStore(
//		cache.WithTTL(6*time.Hour),
//		cache.WithMaxEntries(10000),
//	)
//	defer store.Close()
//
//	players := cache.NewTyped[lookup.PlayerStats](store, logger)
//	key := cache.PlayerKey(models.RegionEU, "Player#EUW")
//	if stats, ok := players.Get(ctx, key.String()); ok {
//		// cache hit
//	}
//
// # Key Layout
//
//	leaderboard:{region}:{page}       page listings
//	player:{region}:{identifier}      per-player statistics
//
// # Metrics
//
//   - lookup_cache_hits_total{backend}
//   - lookup_cache_misses_total{backend}
//   - lookup_cache_evictions_total{backend, reason}
//   - lookup_cache_errors_total{backend, operation}
//   - lookup_cache_entries{backend}
package cache
