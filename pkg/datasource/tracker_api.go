package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/rs/zerolog"
)

// Tracker endpoints.
const (
	DefaultTrackerAPIURL = "https://public-api.tracker.gg/v2/valorant/standard"
	DefaultTrackerWebURL = "https://tracker.gg"
)

// TrackerAPI fetches player profiles from the tracker.gg public API.
// It does not serve leaderboard pages.
type TrackerAPI struct {
	client  *Client
	baseURL string
	webURL  string
	apiKey  string
	logger  zerolog.Logger
}

// NewTrackerAPI creates the API source. An empty apiKey leaves the source
// present but unsupported for every call.
func NewTrackerAPI(client *Client, baseURL, webURL, apiKey string, logger zerolog.Logger) *TrackerAPI {
	if baseURL == "" {
		baseURL = DefaultTrackerAPIURL
	}
	if webURL == "" {
		webURL = DefaultTrackerWebURL
	}
	return &TrackerAPI{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		webURL:  strings.TrimSuffix(webURL, "/"),
		apiKey:  apiKey,
		logger:  logger.With().Str("component", "tracker-api").Logger(),
	}
}

// Name implements Source.
func (t *TrackerAPI) Name() string {
	return "tracker_api"
}

// FetchLeaderboardPage implements Source.
func (t *TrackerAPI) FetchLeaderboardPage(context.Context, models.Region, int) ([]models.LeaderboardEntry, error) {
	return nil, ErrUnsupported
}

// FetchPlayerStats implements Source.
func (t *TrackerAPI) FetchPlayerStats(ctx context.Context, identifier string) (*models.Profile, error) {
	if t.apiKey == "" {
		return nil, ErrUnsupported
	}
	if err := ValidateIdentifier(identifier); err != nil {
		return nil, err
	}

	escaped := url.PathEscape(identifier)
	header := http.Header{}
	header.Set("TRN-Api-Key", t.apiKey)
	header.Set("Accept", "application/json")

	body, err := t.client.Get(ctx, t.baseURL+"/profile/riot/"+escaped, header)
	if err != nil {
		var se *SourceError
		if errors.As(err, &se) {
			switch se.StatusCode {
			case http.StatusNotFound:
				// unknown or private profile
				return nil, ErrNoData
			case http.StatusUnauthorized, http.StatusForbidden:
				t.logger.Error().Int("status", se.StatusCode).Msg("Tracker API rejected the API key")
			}
		}
		return nil, fmt.Errorf("tracker api: %w", err)
	}

	var resp trackerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode tracker response: %w", err)
	}
	if resp.Data == nil {
		return nil, ErrNoData
	}

	segment := competitiveSegment(resp.Data.Segments)
	if segment == nil {
		t.logger.Debug().Str(logging.FieldIdentifier, identifier).Msg("No competitive segment in profile")
		return nil, ErrNoData
	}

	handle := resp.Data.PlatformInfo.PlatformUserHandle
	if handle == "" {
		handle = identifier
	}

	return &models.Profile{
		Identifier:  handle,
		CurrentRank: segment.rankLabel(),
		KD:          segment.Stats["kDRatio"].display("%.2f", 1),
		WinRate:     segment.Stats["matchesWinPct"].display("%.1f%%", 1),
		GamesPlayed: int(segment.Stats["matchesPlayed"].Value),
		Wins:        int(segment.Stats["matchesWon"].Value),
		TrackerURL:  t.webURL + "/valorant/profile/riot/" + escaped + "/overview",
	}, nil
}

type trackerResponse struct {
	Data *struct {
		PlatformInfo struct {
			PlatformUserHandle string `json:"platformUserHandle"`
		} `json:"platformInfo"`
		Segments []trackerSegment `json:"segments"`
	} `json:"data"`
}

type trackerSegment struct {
	Type       string `json:"type"`
	Attributes struct {
		PlaylistID string `json:"playlistId"`
	} `json:"attributes"`
	Metadata struct {
		Name            string `json:"name"`
		IsCurrentSeason bool   `json:"isCurrentSeason"`
	} `json:"metadata"`
	Stats map[string]trackerStat `json:"stats"`
}

type trackerStat struct {
	Value        float64 `json:"value"`
	DisplayValue string  `json:"displayValue"`
	Metadata     struct {
		TierName string `json:"tierName"`
	} `json:"metadata"`
}

// display prefers the upstream formatting and falls back to format(value*scale).
func (s trackerStat) display(format string, scale float64) string {
	if s.DisplayValue != "" {
		return s.DisplayValue
	}
	return fmt.Sprintf(format, s.Value*scale)
}

// competitiveSegment picks the most specific competitive segment available.
func competitiveSegment(segments []trackerSegment) *trackerSegment {
	preds := []func(trackerSegment) bool{
		func(s trackerSegment) bool { return s.Type == "season" && s.Metadata.IsCurrentSeason },
		func(s trackerSegment) bool { return s.Metadata.Name == "Competitive" },
		func(s trackerSegment) bool { return s.Attributes.PlaylistID == "competitive" },
		func(s trackerSegment) bool { return strings.Contains(strings.ToLower(s.Metadata.Name), "competitive") },
		func(s trackerSegment) bool { return s.Type == "overview" },
	}
	for _, pred := range preds {
		for i := range segments {
			if pred(segments[i]) {
				return &segments[i]
			}
		}
	}
	return nil
}

func (s *trackerSegment) rankLabel() string {
	if rank, ok := s.Stats["rank"]; ok {
		if rank.Metadata.TierName != "" {
			return fmt.Sprintf("%s %dRR", rank.Metadata.TierName, int(math.Round(rank.Value)))
		}
		if rank.DisplayValue != "" {
			return rank.DisplayValue
		}
	}
	if tier, ok := s.Stats["tier"]; ok && tier.DisplayValue != "" {
		return tier.DisplayValue
	}
	return "Unknown"
}
