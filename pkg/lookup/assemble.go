package lookup

import (
	"sort"
	"strings"
)

// numericValue reports the value of an input that reads as a number.
func numericValue(in RawInput) (float64, bool) {
	s := strings.TrimSpace(in.Text)
	if s == "" {
		return 0, false
	}
	return parseNumber(s)
}

// CompareInputs orders inputs: numbers ascending, then everything else
// lexicographically by text.
func CompareInputs(a, b RawInput) int {
	av, aNum := numericValue(a)
	bv, bNum := numericValue(b)

	switch {
	case aNum && bNum:
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(a.Text, b.Text)
	}
}

// Assemble merges successes and failures into one list ordered by input.
// Equal inputs keep successes ahead of failures.
func Assemble(results []PlayerStats, errs []LookupError) []Outcome {
	out := make([]Outcome, 0, len(results)+len(errs))
	for i := range results {
		out = append(out, Outcome{Stats: &results[i]})
	}
	for i := range errs {
		out = append(out, Outcome{Err: &errs[i]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return CompareInputs(out[i].Input(), out[j].Input()) < 0
	})
	return out
}

// Split separates an assembled list into its successes and failures, each
// keeping the assembled order.
func Split(outcomes []Outcome) ([]PlayerStats, []LookupError) {
	data := make([]PlayerStats, 0, len(outcomes))
	errs := make([]LookupError, 0)
	for _, o := range outcomes {
		if o.Stats != nil {
			data = append(data, *o.Stats)
		} else {
			errs = append(errs, *o.Err)
		}
	}
	return data, errs
}
