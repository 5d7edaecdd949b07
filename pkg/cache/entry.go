package cache

import (
	"time"
)

// Entry is a value held by the in-process backend.
type Entry struct {
	// Value is the encoded payload
	Value []byte

	// StoredAt is when the value was written
	StoredAt time.Time
}

// IsExpired reports whether the entry is older than ttl at now.
// An entry exactly ttl old is still live.
func (e Entry) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) > ttl
}

// Remaining returns how long the entry stays live, or 0 if it already expired.
func (e Entry) Remaining(now time.Time, ttl time.Duration) time.Duration {
	left := ttl - now.Sub(e.StoredAt)
	if left < 0 {
		return 0
	}
	return left
}
