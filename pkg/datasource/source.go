// Package datasource provides the pluggable collaborators that supply
// leaderboard pages and player profiles to the lookup orchestrator.
//
// Every variant implements Source. Chain composes variants in a fixed order
// at construction time so callers never know which variant served a request.
//
// Result conventions shared by all variants:
//   - success: non-nil value, nil error
//   - nothing to return: ErrNoData
//   - explicit error payload from the source: *ProfileError
//   - operation not implemented by the variant: ErrUnsupported
//   - anything else: a transport or parse error
package datasource

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/models"
	"github.com/google/uuid"
)

// DefaultActID is the competitive act used when none is configured.
const DefaultActID = "4c4b8cff-43eb-13d3-8f14-96b783c90cd2"

// Source fetches leaderboard pages and player profiles.
type Source interface {
	// Name identifies the variant in logs and metrics.
	Name() string

	// FetchLeaderboardPage returns the entries of one 1-indexed page.
	FetchLeaderboardPage(ctx context.Context, region models.Region, page int) ([]models.LeaderboardEntry, error)

	// FetchPlayerStats returns the competitive profile of identifier.
	FetchPlayerStats(ctx context.Context, identifier string) (*models.Profile, error)
}

// Identifier limits.
const (
	minNameLen       = 3
	maxNameLen       = 20
	minTagLen        = 3
	maxTagLen        = 5
	maxIdentifierLen = 100
)

var (
	identifierPattern = regexp.MustCompile(`^.+#.+$`)
	actIDPattern      = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// Validation messages returned to clients.
const (
	msgInvalidIdentifier = "Invalid Riot ID format"
	msgInvalidActID      = "Invalid Act ID configuration"
)

// ValidateIdentifier checks the Name#Tag form of a player identifier.
// It returns a *ProfileError describing the problem.
func ValidateIdentifier(identifier string) error {
	if len(identifier) > maxIdentifierLen || !identifierPattern.MatchString(identifier) {
		return &ProfileError{Message: msgInvalidIdentifier}
	}

	name, tag, _ := strings.Cut(identifier, "#")
	// a second separator belongs to neither part
	tag, _, _ = strings.Cut(tag, "#")

	if n := len([]rune(name)); n < minNameLen || n > maxNameLen {
		return &ProfileError{Message: msgInvalidIdentifier}
	}
	if n := len([]rune(tag)); n < minTagLen || n > maxTagLen {
		return &ProfileError{Message: msgInvalidIdentifier}
	}
	return nil
}

// ValidateActID checks that actID is a canonical UUID.
func ValidateActID(actID string) error {
	if !actIDPattern.MatchString(actID) {
		return &ProfileError{Message: msgInvalidActID}
	}
	if _, err := uuid.Parse(actID); err != nil {
		return &ProfileError{Message: msgInvalidActID}
	}
	return nil
}

// observe records one source call in the Prometheus metrics.
func observe(source, operation string, start time.Time, err error) {
	sourceRequestDuration.WithLabelValues(source, operation).Observe(time.Since(start).Seconds())
	sourceRequestsTotal.WithLabelValues(source, operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var pe *ProfileError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.As(err, &pe):
		return "profile_error"
	default:
		return "error"
	}
}
