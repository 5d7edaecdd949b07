// Package lookup implements the batch rank lookup orchestrator.
//
// A batch flows through four stages:
//
//	Classify          raw inputs -> rank and identifier targets
//	PageCoordinator   rank targets -> resolved players (one fetch per page)
//	StatsCoordinator  resolved players -> player statistics
//	Assemble          successes and failures -> one ordered result
//
// Service.Lookup runs the stages under a soft deadline. Every input yields
// exactly one outcome: a PlayerStats or a LookupError.
package lookup

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/Sternrassler/rank-lookup/pkg/models"
)

// RawInput is one element of a batch as sent by the client: either a JSON
// number or a JSON string. It re-encodes in the same form.
type RawInput struct {
	Text   string
	Number bool
}

// NumberInput returns the input a client sends as a bare JSON number.
func NumberInput(n int) RawInput {
	return RawInput{Text: strconv.Itoa(n), Number: true}
}

// TextInput returns the input a client sends as a JSON string.
func TextInput(s string) RawInput {
	return RawInput{Text: s}
}

// String returns the input as text.
func (r RawInput) String() string {
	return r.Text
}

var errInputType = errors.New("batch elements must be strings or numbers")

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errInputType
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RawInput{Text: s}
		return nil
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*r = RawInput{Text: n.String(), Number: true}
		return nil
	default:
		return errInputType
	}
}

// MarshalJSON implements json.Marshaler.
func (r RawInput) MarshalJSON() ([]byte, error) {
	if r.Number {
		if _, err := strconv.ParseFloat(r.Text, 64); err == nil {
			return []byte(r.Text), nil
		}
	}
	return json.Marshal(r.Text)
}

// TargetKind discriminates lookup targets.
type TargetKind int

const (
	// TargetRank is resolved through a leaderboard page.
	TargetRank TargetKind = iota
	// TargetIdentifier is looked up directly.
	TargetIdentifier
)

// Target is one classified batch element.
type Target struct {
	Kind       TargetKind
	Rank       int
	Identifier string
	Input      RawInput
}

// ResolvedPlayer is a player identifier ready for a stats lookup.
// SourceRank is zero for identifier targets.
type ResolvedPlayer struct {
	Identifier string
	Input      RawInput
	SourceRank int
}

// PlayerStats is one successful lookup result.
type PlayerStats struct {
	Input           RawInput `json:"rank_input"`
	Identifier      string   `json:"riot_id"`
	CurrentRank     string   `json:"current_rank"`
	KD              string   `json:"kd"`
	WinRate         string   `json:"wr"`
	GamesPlayed     int      `json:"games_played"`
	Wins            int      `json:"wins"`
	TrackerURL      string   `json:"tracker_url"`
	Cached          bool     `json:"cached"`
	LeaderboardRank int      `json:"leaderboard_rank,omitempty"`
	Error           string   `json:"error,omitempty"`
}

func newPlayerStats(p ResolvedPlayer, profile models.Profile, cached bool) PlayerStats {
	return PlayerStats{
		Input:           p.Input,
		Identifier:      profile.Identifier,
		CurrentRank:     profile.CurrentRank,
		KD:              profile.KD,
		WinRate:         profile.WinRate,
		GamesPlayed:     profile.GamesPlayed,
		Wins:            profile.Wins,
		TrackerURL:      profile.TrackerURL,
		Cached:          cached,
		LeaderboardRank: p.SourceRank,
	}
}

// LookupError is one failed batch element.
type LookupError struct {
	Input   RawInput `json:"rank_input"`
	Message string   `json:"error"`
}

// Outcome is either a success or a failure for one input.
type Outcome struct {
	Stats *PlayerStats
	Err   *LookupError
}

// Input returns the original input the outcome belongs to.
func (o Outcome) Input() RawInput {
	if o.Stats != nil {
		return o.Stats.Input
	}
	return o.Err.Input
}

// Request is the body of a lookup call.
type Request struct {
	Ranks  []RawInput `json:"ranks"`
	Region string     `json:"region"`
}

// Response is the body of a successful lookup call.
type Response struct {
	Success bool          `json:"success"`
	Data    []PlayerStats `json:"data"`
	Errors  []LookupError `json:"errors"`
}
