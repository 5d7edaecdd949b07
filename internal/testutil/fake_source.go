package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/datasource"
	"github.com/Sternrassler/rank-lookup/pkg/models"
)

// FakeSource is an in-memory datasource.Source with call counters and
// failure injection. Unknown pages and profiles return datasource.ErrNoData.
type FakeSource struct {
	mu          sync.Mutex
	pages       map[string][]models.LeaderboardEntry
	profiles    map[string]models.Profile
	pageErrs    map[string]error
	profileErrs map[string]error
	panics      map[string]bool
	pageCalls   map[string]int
	statCalls   map[string]int
	pagesActive int
	pagesPeak   int

	// Delay is applied to every call before answering.
	Delay time.Duration
}

// NewFakeSource creates an empty FakeSource.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		pages:       make(map[string][]models.LeaderboardEntry),
		profiles:    make(map[string]models.Profile),
		pageErrs:    make(map[string]error),
		profileErrs: make(map[string]error),
		panics:      make(map[string]bool),
		pageCalls:   make(map[string]int),
		statCalls:   make(map[string]int),
	}
}

func pageKey(region models.Region, page int) string {
	return fmt.Sprintf("%s:%d", region, page)
}

// Name implements datasource.Source.
func (f *FakeSource) Name() string {
	return "fake"
}

// SetPage registers the entries of one page.
func (f *FakeSource) SetPage(region models.Region, page int, entries ...models.LeaderboardEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[pageKey(region, page)] = entries
}

// SetProfile registers a profile.
func (f *FakeSource) SetProfile(profile models.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.Identifier] = profile
}

// FailPage makes every fetch of the page return err.
func (f *FakeSource) FailPage(region models.Region, page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageErrs[pageKey(region, page)] = err
}

// FailProfile makes every fetch of identifier return err.
func (f *FakeSource) FailProfile(identifier string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileErrs[identifier] = err
}

// PanicOn makes the fetch for key panic. Key is either "region:page" or an
// identifier.
func (f *FakeSource) PanicOn(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[key] = true
}

// PageCalls returns how often the page was fetched.
func (f *FakeSource) PageCalls(region models.Region, page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageCalls[pageKey(region, page)]
}

// TotalPageCalls returns the number of page fetches across all pages.
func (f *FakeSource) TotalPageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.pageCalls {
		total += n
	}
	return total
}

// PeakConcurrentPages returns the largest number of page fetches that were
// in flight at the same time.
func (f *FakeSource) PeakConcurrentPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pagesPeak
}

// StatCalls returns how often identifier was fetched.
func (f *FakeSource) StatCalls(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statCalls[identifier]
}

// TotalStatCalls returns the number of profile fetches across all identifiers.
func (f *FakeSource) TotalStatCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.statCalls {
		total += n
	}
	return total
}

func (f *FakeSource) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchLeaderboardPage implements datasource.Source.
func (f *FakeSource) FetchLeaderboardPage(ctx context.Context, region models.Region, page int) ([]models.LeaderboardEntry, error) {
	key := pageKey(region, page)

	f.mu.Lock()
	f.pageCalls[key]++
	entries, ok := f.pages[key]
	err := f.pageErrs[key]
	shouldPanic := f.panics[key]
	f.pagesActive++
	if f.pagesActive > f.pagesPeak {
		f.pagesPeak = f.pagesActive
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.pagesActive--
		f.mu.Unlock()
	}()

	if werr := f.wait(ctx); werr != nil {
		return nil, werr
	}
	if shouldPanic {
		panic("fake source: page " + key)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, datasource.ErrNoData
	}
	return append([]models.LeaderboardEntry(nil), entries...), nil
}

// FetchPlayerStats implements datasource.Source.
func (f *FakeSource) FetchPlayerStats(ctx context.Context, identifier string) (*models.Profile, error) {
	f.mu.Lock()
	f.statCalls[identifier]++
	profile, ok := f.profiles[identifier]
	err := f.profileErrs[identifier]
	shouldPanic := f.panics[identifier]
	f.mu.Unlock()

	if werr := f.wait(ctx); werr != nil {
		return nil, werr
	}
	if shouldPanic {
		panic("fake source: profile " + identifier)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, datasource.ErrNoData
	}
	return &profile, nil
}

// NewProfile builds a plausible profile for identifier.
func NewProfile(identifier string) models.Profile {
	return models.Profile{
		Identifier:  identifier,
		CurrentRank: "Radiant 512RR",
		KD:          "1.42",
		WinRate:     "58.3%",
		GamesPlayed: 120,
		Wins:        70,
		TrackerURL:  "https://tracker.gg/valorant/profile/riot/" + identifier + "/overview",
	}
}
