package cache

import (
	"strconv"
	"strings"

	"github.com/Sternrassler/rank-lookup/pkg/models"
)

// Key namespaces.
const (
	NamespaceLeaderboard = "leaderboard"
	NamespacePlayer      = "player"
)

// Key identifies a cached value.
type Key struct {
	// Namespace separates page listings from player statistics
	Namespace string

	// Region is the leaderboard region the value belongs to
	Region models.Region

	// ID is the page number or player identifier
	ID string
}

// String generates the composite key string.
// Format: namespace:region:id
//
// Example:
//
//	player:eu:Player#EUW
func (k Key) String() string {
	return strings.Join([]string{k.Namespace, string(k.Region), k.ID}, ":")
}

// LeaderboardKey is the key of one leaderboard page listing.
func LeaderboardKey(region models.Region, page int) Key {
	return Key{Namespace: NamespaceLeaderboard, Region: region, ID: strconv.Itoa(page)}
}

// PlayerKey is the key of one player's statistics.
func PlayerKey(region models.Region, identifier string) Key {
	return Key{Namespace: NamespacePlayer, Region: region, ID: identifier}
}
