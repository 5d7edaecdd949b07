package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/rs/zerolog"
)

const leaderboardTableHTML = `<html><body><table>
<tr><th>Rank</th><th>Player</th></tr>
<tr><td>#101</td><td><a href="/valorant/profile/riot/Alpha%23EUW/overview">Alpha#EUW</a></td></tr>
<tr><td> 102 </td><td><a href="/valorant/profile/riot/Beta%20Two%23123/overview">Beta Two#123</a></td></tr>
<tr><td>103</td><td>anonymous</td></tr>
</table></body></html>`

const leaderboardStateHTML = `<html><head><script>
window.__INITIAL_STATE__ = {"stats":{"standardLeaderboards":[{"items":[
 {"rank":1,"owner":{"metadata":{"platformUserHandle":"One#AAA"}}},
 {"rank":2,"owner":{"metadata":{"platformUserIdentifier":"Two#BBB"}}},
 {"rank":3,"owner":{"id":"Three#CCC"}},
 {"rank":4,"owner":{}}
]}]}};window.other = {};
</script></head><body><table><tr><td>9</td><td><a href="/valorant/profile/riot/Dom%23X/overview">x</a></td></tr></table></body></html>`

func TestParseLeaderboardHTML_Table(t *testing.T) {
	entries, err := ParseLeaderboardHTML([]byte(leaderboardTableHTML))
	if err != nil {
		t.Fatalf("ParseLeaderboardHTML() error = %v", err)
	}

	want := []models.LeaderboardEntry{
		{Rank: 101, Identifier: "Alpha#EUW"},
		{Rank: 102, Identifier: "Beta Two#123"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %+v, want %+v", entries, want)
	}
}

func TestParseLeaderboardHTML_InitialStatePreferred(t *testing.T) {
	entries, err := ParseLeaderboardHTML([]byte(leaderboardStateHTML))
	if err != nil {
		t.Fatalf("ParseLeaderboardHTML() error = %v", err)
	}

	want := []models.LeaderboardEntry{
		{Rank: 1, Identifier: "One#AAA"},
		{Rank: 2, Identifier: "Two#BBB"},
		{Rank: 3, Identifier: "Three#CCC"},
		{Rank: 4, Identifier: ""},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %+v, want %+v", entries, want)
	}
}

func TestParseLeaderboardHTML_Empty(t *testing.T) {
	entries, err := ParseLeaderboardHTML([]byte(`<html><body><p>Nothing here</p></body></html>`))
	if err != nil {
		t.Fatalf("ParseLeaderboardHTML() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %+v, want none", entries)
	}
}

func TestLeaderboardScraper_FetchLeaderboardPage(t *testing.T) {
	queries := make(chan url.Values, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()
		w.Write([]byte(leaderboardTableHTML))
	}))
	defer server.Close()

	s, err := NewLeaderboardScraper(newTestClient(), server.URL, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLeaderboardScraper() error = %v", err)
	}

	entries, err := s.FetchLeaderboardPage(context.Background(), models.RegionKR, 2)
	if err != nil {
		t.Fatalf("FetchLeaderboardPage() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}

	query := <-queries
	for key, want := range map[string]string{"region": "kr", "page": "2", "act": DefaultActID, "platform": "pc"} {
		if got := query[key]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s = %v, want %q", key, got, want)
		}
	}
}

func TestLeaderboardScraper_EmptyPageNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html></html>`))
	}))
	defer server.Close()

	s, _ := NewLeaderboardScraper(newTestClient(), server.URL, "", zerolog.Nop())
	if _, err := s.FetchLeaderboardPage(context.Background(), models.RegionNA, 1); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestLeaderboardScraper_Validation(t *testing.T) {
	if _, err := NewLeaderboardScraper(newTestClient(), "", "not-a-uuid", zerolog.Nop()); err == nil {
		t.Error("expected error for invalid act")
	}

	s, _ := NewLeaderboardScraper(newTestClient(), "http://unused", "", zerolog.Nop())
	if _, err := s.FetchLeaderboardPage(context.Background(), models.Region("mars"), 1); err == nil {
		t.Error("expected error for invalid region")
	}
	if _, err := s.FetchLeaderboardPage(context.Background(), models.RegionNA, 0); err == nil {
		t.Error("expected error for page 0")
	}
	if _, err := s.FetchLeaderboardPage(context.Background(), models.RegionNA, MaxLeaderboardPage+1); err == nil {
		t.Error("expected error for page beyond maximum")
	}
	if _, err := s.FetchPlayerStats(context.Background(), "Foo#EUW"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("FetchPlayerStats err = %v, want ErrUnsupported", err)
	}
}
