package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/rs/zerolog"
)

// MaxLeaderboardPage is the highest page the scraper will request.
const MaxLeaderboardPage = 10000

const initialStateMarker = "window.__INITIAL_STATE__"

var (
	profileHrefPattern = regexp.MustCompile(`/valorant/profile/riot/([^/?#]+)`)
	digitsPattern      = regexp.MustCompile(`\d+`)
)

// LeaderboardScraper reads ranked leaderboard pages from the tracker web site.
// It does not serve player profiles.
type LeaderboardScraper struct {
	client  *Client
	baseURL string
	actID   string
	logger  zerolog.Logger
}

// NewLeaderboardScraper creates the scraper source. It fails when actID is
// not a UUID.
func NewLeaderboardScraper(client *Client, baseURL, actID string, logger zerolog.Logger) (*LeaderboardScraper, error) {
	if baseURL == "" {
		baseURL = DefaultTrackerWebURL
	}
	if actID == "" {
		actID = DefaultActID
	}
	if err := ValidateActID(actID); err != nil {
		return nil, fmt.Errorf("leaderboard scraper: %w", err)
	}
	return &LeaderboardScraper{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		actID:   actID,
		logger:  logger.With().Str("component", "leaderboard-scraper").Logger(),
	}, nil
}

// Name implements Source.
func (s *LeaderboardScraper) Name() string {
	return "leaderboard_scraper"
}

// FetchPlayerStats implements Source.
func (s *LeaderboardScraper) FetchPlayerStats(context.Context, string) (*models.Profile, error) {
	return nil, ErrUnsupported
}

// FetchLeaderboardPage implements Source.
func (s *LeaderboardScraper) FetchLeaderboardPage(ctx context.Context, region models.Region, page int) ([]models.LeaderboardEntry, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("invalid region %q", region)
	}
	if page < 1 || page > MaxLeaderboardPage {
		return nil, &ProfileError{Message: "Invalid page number"}
	}

	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml")
	header.Set("Accept-Language", "en-US,en;q=0.9")

	body, err := s.client.Get(ctx, s.pageURL(region, page), header)
	if err != nil {
		var se *SourceError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("leaderboard scraper: %w", err)
	}

	entries, err := ParseLeaderboardHTML(body)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		s.logger.Debug().
			Str(logging.FieldRegion, region.String()).
			Int(logging.FieldPage, page).
			Msg("Leaderboard page had no rows")
		return nil, ErrNoData
	}
	return entries, nil
}

func (s *LeaderboardScraper) pageURL(region models.Region, page int) string {
	q := url.Values{}
	q.Set("platform", "pc")
	q.Set("region", region.String())
	q.Set("act", s.actID)
	q.Set("page", strconv.Itoa(page))
	return s.baseURL + "/valorant/leaderboards/ranked/all/default?" + q.Encode()
}

// ParseLeaderboardHTML extracts leaderboard rows from a rendered page. The
// embedded initial state is preferred; table rows are the fallback.
func ParseLeaderboardHTML(body []byte) ([]models.LeaderboardEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse leaderboard html: %w", err)
	}

	var entries []models.LeaderboardEntry
	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		entries = parseInitialState(script.Text())
		return entries == nil
	})
	if entries != nil {
		return entries, nil
	}

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find(`a[href*="/valorant/profile/"]`).First().Attr("href")
		if !ok {
			return
		}
		m := profileHrefPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		identifier, err := url.PathUnescape(m[1])
		if err != nil {
			return
		}
		rank, _ := strconv.Atoi(digitsPattern.FindString(row.Find("td").First().Text()))
		if rank > 0 {
			entries = append(entries, models.LeaderboardEntry{Rank: rank, Identifier: identifier})
		}
	})
	return entries, nil
}

type initialState struct {
	Stats struct {
		StandardLeaderboards []struct {
			Items []struct {
				Rank  int `json:"rank"`
				Owner struct {
					ID       string `json:"id"`
					Metadata struct {
						PlatformUserHandle     string `json:"platformUserHandle"`
						PlatformUserIdentifier string `json:"platformUserIdentifier"`
					} `json:"metadata"`
				} `json:"owner"`
			} `json:"items"`
		} `json:"standardLeaderboards"`
	} `json:"stats"`
}

// parseInitialState decodes the first leaderboard embedded in a script body.
// Returns nil when the script carries none.
func parseInitialState(script string) []models.LeaderboardEntry {
	idx := strings.Index(script, initialStateMarker)
	if idx < 0 {
		return nil
	}
	rest := script[idx+len(initialStateMarker):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return nil
	}

	// Decode reads one value and ignores whatever follows it.
	var state initialState
	if err := json.NewDecoder(strings.NewReader(rest[start:])).Decode(&state); err != nil {
		return nil
	}
	if len(state.Stats.StandardLeaderboards) == 0 {
		return nil
	}

	items := state.Stats.StandardLeaderboards[0].Items
	entries := make([]models.LeaderboardEntry, 0, len(items))
	for _, item := range items {
		if item.Rank <= 0 {
			continue
		}
		identifier := item.Owner.Metadata.PlatformUserHandle
		if identifier == "" {
			identifier = item.Owner.Metadata.PlatformUserIdentifier
		}
		if identifier == "" {
			identifier = item.Owner.ID
		}
		entries = append(entries, models.LeaderboardEntry{Rank: item.Rank, Identifier: identifier})
	}
	return entries
}
