package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/rank-lookup/internal/testutil"
	"github.com/Sternrassler/rank-lookup/pkg/cache"
	"github.com/Sternrassler/rank-lookup/pkg/config"
	"github.com/Sternrassler/rank-lookup/pkg/datasource"
	"github.com/Sternrassler/rank-lookup/pkg/lookup"
	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/Sternrassler/rank-lookup/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(datasource.ErrorClass) datasource.RetryConfig {
	return datasource.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

// newTrackerChain builds the production source chain against mock.
func newTrackerChain(t *testing.T, mock *testutil.MockTracker) datasource.Source {
	t.Helper()

	client := datasource.NewClient(datasource.ClientConfig{Retry: fastRetry}, zerolog.Nop())
	api := datasource.NewTrackerAPI(client, mock.URL(), mock.URL(), "test-key", zerolog.Nop())
	scraper, err := datasource.NewLeaderboardScraper(client, mock.URL(), datasource.DefaultActID, zerolog.Nop())
	require.NoError(t, err)

	return datasource.NewChain(zerolog.Nop(), api, scraper)
}

func seedTracker(mock *testutil.MockTracker) {
	mock.SetLeaderboardPage(models.RegionEU, 1, []models.LeaderboardEntry{
		{Rank: 1, Identifier: "Alpha#EU1"},
		{Rank: 2, Identifier: "Bravo#EU1"},
	})
	mock.SetLeaderboardPage(models.RegionEU, 2, []models.LeaderboardEntry{
		{Rank: 150, Identifier: "Charlie#EU1"},
	})
	for _, id := range []string{"Alpha#EU1", "Bravo#EU1", "Charlie#EU1", "Direct#EU1"} {
		mock.SetProfile(id, testutil.NewProfile(id))
	}
}

func TestEndToEnd_TrackerChain(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	seedTracker(mock)

	store := cache.NewMemoryStore(cache.WithSweepInterval(0))
	defer store.Close()
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{})
	defer limiter.Close()

	svc := lookup.NewService(newTrackerChain(t, mock), store, lookup.DefaultConfig(), zerolog.Nop())
	handler := NewServer(svc, limiter, config.Default().Server, zerolog.Nop()).Handler()

	body := `{"ranks":["Direct#EU1", 150, 2, 1, 99, "Ghost#EU1"],"region":"eu"}`
	req := httptest.NewRequest(http.MethodPost, LookupPath, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeLookup(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 6, len(resp.Data)+len(resp.Errors))

	require.Len(t, resp.Data, 4)
	assert.Equal(t, "Alpha#EU1", resp.Data[0].Identifier)
	assert.Equal(t, "Bravo#EU1", resp.Data[1].Identifier)
	assert.Equal(t, "Charlie#EU1", resp.Data[2].Identifier)
	assert.Equal(t, "Direct#EU1", resp.Data[3].Identifier)
	assert.Equal(t, "Radiant 512RR", resp.Data[0].CurrentRank)
	assert.Equal(t, mock.URL()+"/valorant/profile/riot/Alpha%23EU1/overview", resp.Data[0].TrackerURL)

	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "Rank not found on leaderboard", resp.Errors[0].Message)
	assert.Equal(t, "Failed to fetch player stats (Private profile?)", resp.Errors[1].Message)

	// a repeated batch is answered from the cache
	before := mock.GetRequestCount()
	req = httptest.NewRequest(http.MethodPost, LookupPath, strings.NewReader(`{"ranks":[1, 150],"region":"eu"}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	cached := decodeLookup(t, rec)
	require.Len(t, cached.Data, 2)
	assert.True(t, cached.Data[0].Cached)
	assert.True(t, cached.Data[1].Cached)
	assert.Equal(t, before, mock.GetRequestCount())
}

func TestEndToEnd_UpstreamFailureIsPerItem(t *testing.T) {
	mock := testutil.NewMockTracker()
	defer mock.Close()
	seedTracker(mock)
	mock.SetResponse("/valorant/leaderboards/ranked/all/default", testutil.NewServerErrorResponse())

	store := cache.NewMemoryStore(cache.WithSweepInterval(0))
	defer store.Close()

	svc := lookup.NewService(newTrackerChain(t, mock), store, lookup.DefaultConfig(), zerolog.Nop())
	handler := NewServer(svc, nil, config.Default().Server, zerolog.Nop()).Handler()

	req := httptest.NewRequest(http.MethodPost, LookupPath, strings.NewReader(`{"ranks":[1, "Direct#EU1"],"region":"eu"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeLookup(t, rec)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Direct#EU1", resp.Data[0].Identifier)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Failed to fetch leaderboard page", resp.Errors[0].Message)
}
