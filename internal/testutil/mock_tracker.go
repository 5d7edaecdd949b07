// Package testutil provides testing utilities for the rank lookup service.
package testutil

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/models"
)

// MockTrackerResponse defines the behavior for a mock endpoint response.
type MockTrackerResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTracker is a configurable mock of the tracker web site and public API.
//
// Leaderboard pages are served under /valorant/leaderboards/ranked/all/default
// and profiles under /profile/riot/{identifier}.
type MockTracker struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	pages    map[string][]models.LeaderboardEntry
	profiles map[string]models.Profile

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockTracker creates a new mock tracker server.
func NewMockTracker() *MockTracker {
	mock := &MockTracker{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pages:    make(map[string][]models.LeaderboardEntry),
		profiles: make(map[string]models.Profile),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		// Check for custom handler
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockTracker) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTracker) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockTracker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockTracker) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockTracker) SetResponse(path string, resp MockTrackerResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetLeaderboardPage registers the rows served for region and page.
func (m *MockTracker) SetLeaderboardPage(region models.Region, page int, entries []models.LeaderboardEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[fmt.Sprintf("%s:%d", region, page)] = entries
}

// SetProfile registers the profile served for identifier.
func (m *MockTracker) SetProfile(identifier string, profile models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[identifier] = profile
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockTracker) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler serves registered pages and profiles, 404 otherwise.
func (m *MockTracker) defaultHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/valorant/leaderboards/"):
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		m.mu.RLock()
		entries, ok := m.pages[fmt.Sprintf("%s:%d", r.URL.Query().Get("region"), page)]
		m.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(LeaderboardHTML(entries)))

	case strings.HasPrefix(r.URL.Path, "/profile/riot/"):
		identifier, _ := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/profile/riot/"))
		m.mu.RLock()
		profile, ok := m.profiles[identifier]
		m.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(TrackerProfileJSON(profile)))

	default:
		http.NotFound(w, r)
	}
}

// LeaderboardHTML renders entries as a leaderboard table.
func LeaderboardHTML(entries []models.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString("<html><body><table><tbody>\n")
	for _, e := range entries {
		fmt.Fprintf(&b, `<tr><td>#%d</td><td><a href="/valorant/profile/riot/%s/overview">%s</a></td></tr>`+"\n",
			e.Rank, url.PathEscape(e.Identifier), html.EscapeString(e.Identifier))
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

// TrackerProfileJSON renders profile as a public API response with one
// competitive playlist segment. CurrentRank must have the "<tier> <rr>RR" form.
func TrackerProfileJSON(profile models.Profile) string {
	tier, rr := profile.CurrentRank, 0
	if i := strings.LastIndexByte(profile.CurrentRank, ' '); i > 0 {
		tier = profile.CurrentRank[:i]
		rr, _ = strconv.Atoi(strings.TrimSuffix(profile.CurrentRank[i+1:], "RR"))
	}

	doc := map[string]any{
		"data": map[string]any{
			"platformInfo": map[string]any{"platformUserHandle": profile.Identifier},
			"segments": []any{
				map[string]any{
					"type":     "playlist",
					"metadata": map[string]any{"name": "Competitive"},
					"stats": map[string]any{
						"rank":          map[string]any{"value": rr, "metadata": map[string]any{"tierName": tier}},
						"kDRatio":       map[string]any{"displayValue": profile.KD},
						"matchesWinPct": map[string]any{"displayValue": profile.WinRate},
						"matchesPlayed": map[string]any{"value": profile.GamesPlayed},
						"matchesWon":    map[string]any{"value": profile.Wins},
					},
				},
			},
		},
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockTrackerResponse {
	return MockTrackerResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockTrackerResponse {
	return MockTrackerResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
