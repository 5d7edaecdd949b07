package lookup

import (
	"errors"
	"fmt"
)

// Validation error codes.
const (
	CodeInvalidRegion = "INVALID_REGION"
	CodeInvalidRank   = "INVALID_RANK"
	CodeBatchTooLarge = "BATCH_TOO_LARGE"
	CodeInvalidBody   = "INVALID_BODY"
)

// ErrTimeout is returned when a lookup exceeds its deadline.
var ErrTimeout = errors.New("lookup timed out")

// ValidationError rejects a whole batch before any work is done.
type ValidationError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Per-item messages.
const (
	msgInvalidInput      = "Invalid input format"
	msgPageFailed        = "Failed to fetch leaderboard page"
	msgPagePanic         = "Internal error fetching leaderboard"
	msgRankNotFound      = "Rank not found on leaderboard"
	msgIdentifierMissing = "Player identifier not found in leaderboard data"
	msgStatsFailed       = "Failed to fetch player stats (Private profile?)"
	msgStatsPanic        = "Internal error fetching stats"
)
