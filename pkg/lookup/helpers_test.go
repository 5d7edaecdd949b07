package lookup

import (
	"strconv"
	"testing"

	"github.com/Sternrassler/rank-lookup/internal/testutil"
	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/models"
)

func newTestStore(t *testing.T) *cache.MemoryStore {
	t.Helper()
	store := cache.NewMemoryStore(cache.WithSweepInterval(0))
	t.Cleanup(func() { store.Close() })
	return store
}

// fullPage returns a page where every rank maps to "P<rank>#TAG".
func fullPage(page int) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, DefaultPageSize)
	for r := (page-1)*DefaultPageSize + 1; r <= page*DefaultPageSize; r++ {
		entries = append(entries, models.LeaderboardEntry{Rank: r, Identifier: identifierFor(r)})
	}
	return entries
}

func identifierFor(rank int) string {
	return "P" + strconv.Itoa(rank) + "#TAG"
}

// seedPages registers full pages and a profile for every player on them.
func seedPages(src *testutil.FakeSource, region models.Region, pages ...int) {
	for _, p := range pages {
		entries := fullPage(p)
		src.SetPage(region, p, entries...)
		for _, e := range entries {
			src.SetProfile(testutil.NewProfile(e.Identifier))
		}
	}
}

func rankTargets(ranks ...int) []Target {
	targets := make([]Target, 0, len(ranks))
	for _, r := range ranks {
		targets = append(targets, Target{Kind: TargetRank, Rank: r, Input: NumberInput(r)})
	}
	return targets
}
