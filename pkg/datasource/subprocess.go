package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/rs/zerolog"
)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec. Stderr is folded into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// SubprocessConfig configures the external scraper script.
type SubprocessConfig struct {
	Python string
	Script string
	ActID  string
}

// Subprocess runs an external scraper script that prints one JSON document
// on stdout per invocation:
//
//	leaderboard <region> <page> <act>  ->  {"items":[{"rank":1,"riotId":"Name#Tag"}]}
//	profile <identifier>               ->  profile fields
//
// Either form may instead print {"error":"..."}.
type Subprocess struct {
	config SubprocessConfig
	run    Runner
	logger zerolog.Logger
}

// NewSubprocess creates the subprocess source. It fails when the configured
// act is not a UUID. A nil runner uses ExecRunner.
func NewSubprocess(cfg SubprocessConfig, run Runner, logger zerolog.Logger) (*Subprocess, error) {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Script == "" {
		cfg.Script = "python/scraper.py"
	}
	if cfg.ActID == "" {
		cfg.ActID = DefaultActID
	}
	if err := ValidateActID(cfg.ActID); err != nil {
		return nil, fmt.Errorf("subprocess source: %w", err)
	}
	if run == nil {
		run = ExecRunner
	}
	return &Subprocess{
		config: cfg,
		run:    run,
		logger: logger.With().Str("component", "subprocess-source").Logger(),
	}, nil
}

// Name implements Source.
func (s *Subprocess) Name() string {
	return "subprocess"
}

type subprocessLeaderboard struct {
	Items []models.LeaderboardEntry `json:"items"`
	Error string                    `json:"error"`
}

type subprocessProfile struct {
	models.Profile
	Error string `json:"error"`
}

// FetchLeaderboardPage implements Source.
func (s *Subprocess) FetchLeaderboardPage(ctx context.Context, region models.Region, page int) ([]models.LeaderboardEntry, error) {
	out, err := s.run(ctx, s.config.Python, s.config.Script,
		"leaderboard", region.String(), strconv.Itoa(page), s.config.ActID)
	if err != nil {
		return nil, fmt.Errorf("leaderboard subprocess: %w", err)
	}

	var res subprocessLeaderboard
	if err := json.Unmarshal(bytes.TrimSpace(out), &res); err != nil {
		return nil, fmt.Errorf("decode leaderboard output: %w", err)
	}
	if res.Error != "" {
		s.logger.Warn().
			Str(logging.FieldRegion, region.String()).
			Int(logging.FieldPage, page).
			Str("error", res.Error).
			Msg("Leaderboard script reported an error")
		return nil, &ProfileError{Message: res.Error}
	}
	if len(res.Items) == 0 {
		return nil, ErrNoData
	}
	return res.Items, nil
}

// FetchPlayerStats implements Source.
func (s *Subprocess) FetchPlayerStats(ctx context.Context, identifier string) (*models.Profile, error) {
	if err := ValidateIdentifier(identifier); err != nil {
		return nil, err
	}

	out, err := s.run(ctx, s.config.Python, s.config.Script, "profile", identifier)
	if err != nil {
		return nil, fmt.Errorf("profile subprocess: %w", err)
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 || bytes.Equal(out, []byte("null")) {
		return nil, ErrNoData
	}

	var res subprocessProfile
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("decode profile output: %w", err)
	}
	if res.Error != "" {
		return nil, &ProfileError{Message: res.Error}
	}
	if res.Profile.Identifier == "" {
		res.Profile.Identifier = identifier
	}
	return &res.Profile, nil
}
