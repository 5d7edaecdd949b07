package lookup

import (
	"math"
	"strconv"
	"strings"
)

// IdentifierSeparator marks an input as a player identifier.
const IdentifierSeparator = "#"

// Batch limits.
const (
	DefaultMaxBatch = 10
	MinRank         = 1
	DefaultMaxRank  = 999999
)

// Classification is the result of Classify.
type Classification struct {
	Ranks       []Target
	Identifiers []Target
	Errors      []LookupError
}

// Total returns the number of inputs the classification accounts for.
func (c Classification) Total() int {
	return len(c.Ranks) + len(c.Identifiers) + len(c.Errors)
}

// parseNumber parses a trimmed input as a finite number.
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Classify splits inputs into rank and identifier targets.
//
// Batch-level checks run first: more than maxBatch inputs, or any numeric
// input outside [1, maxRank], rejects the whole batch with a
// *ValidationError. After that every input yields exactly one target or one
// LookupError.
func Classify(inputs []RawInput, maxBatch, maxRank int) (Classification, error) {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if maxRank <= 0 {
		maxRank = DefaultMaxRank
	}

	if len(inputs) > maxBatch {
		return Classification{}, newValidationError(CodeBatchTooLarge,
			"Request limit exceeded: Max %d ranks allowed per query.", maxBatch)
	}

	for _, in := range inputs {
		s := strings.TrimSpace(in.Text)
		if strings.Contains(s, IdentifierSeparator) {
			continue
		}
		if v, ok := parseNumber(s); ok && (v < MinRank || v > float64(maxRank)) {
			return Classification{}, newValidationError(CodeInvalidRank,
				"Rank %s must be between %d and %d.", strconv.FormatFloat(v, 'f', -1, 64), MinRank, maxRank)
		}
	}

	var c Classification
	for _, in := range inputs {
		s := strings.TrimSpace(in.Text)

		if strings.Contains(s, IdentifierSeparator) {
			c.Identifiers = append(c.Identifiers, Target{Kind: TargetIdentifier, Identifier: s, Input: in})
			continue
		}

		v, ok := parseNumber(s)
		if !ok || v != math.Trunc(v) {
			c.Errors = append(c.Errors, LookupError{Input: in, Message: msgInvalidInput})
			continue
		}
		c.Ranks = append(c.Ranks, Target{Kind: TargetRank, Rank: int(v), Input: in})
	}
	return c, nil
}
