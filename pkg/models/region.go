// Package models holds the domain types shared by the data sources and the
// lookup orchestrator.
package models

import (
	"fmt"
	"strings"
)

// Region is a leaderboard/profile partition.
type Region string

// Supported regions.
const (
	RegionNA    Region = "na"
	RegionEU    Region = "eu"
	RegionAP    Region = "ap"
	RegionKR    Region = "kr"
	RegionBR    Region = "br"
	RegionLATAM Region = "latam"
)

// Regions lists every supported region in display order.
var Regions = []Region{RegionNA, RegionEU, RegionAP, RegionKR, RegionBR, RegionLATAM}

// Valid reports whether r is one of the supported regions.
func (r Region) Valid() bool {
	for _, known := range Regions {
		if r == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (r Region) String() string {
	return string(r)
}

// ParseRegion normalizes s and checks it against the supported set.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unsupported region %q", s)
	}
	return r, nil
}
