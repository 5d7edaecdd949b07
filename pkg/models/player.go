package models

// LeaderboardEntry is one row of a leaderboard page.
// Identifier is empty when the listing carried no resolvable player handle.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	Identifier string `json:"riotId"`
}

// Profile is the competitive statistics payload returned by a data source.
type Profile struct {
	Identifier  string `json:"riot_id"`
	CurrentRank string `json:"current_rank"`
	KD          string `json:"kd"`
	WinRate     string `json:"wr"`
	GamesPlayed int    `json:"games_played"`
	Wins        int    `json:"wins"`
	TrackerURL  string `json:"tracker_url"`
}

// FindRank returns the entry holding rank, if present.
func FindRank(entries []LeaderboardEntry, rank int) (LeaderboardEntry, bool) {
	for _, e := range entries {
		if e.Rank == rank {
			return e, true
		}
	}
	return LeaderboardEntry{}, false
}
