package models

import "testing"

func TestParseRegion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Region
		wantErr bool
	}{
		{name: "lowercase", input: "eu", want: RegionEU},
		{name: "uppercase with spaces", input: " LATAM ", want: RegionLATAM},
		{name: "unknown", input: "oce", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRegion(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseRegion(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRegion(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseRegion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFindRank(t *testing.T) {
	entries := []LeaderboardEntry{
		{Rank: 1, Identifier: "Alpha#001"},
		{Rank: 2, Identifier: ""},
	}

	if e, ok := FindRank(entries, 1); !ok || e.Identifier != "Alpha#001" {
		t.Errorf("FindRank(1) = %+v, %v", e, ok)
	}
	if e, ok := FindRank(entries, 2); !ok || e.Identifier != "" {
		t.Errorf("FindRank(2) = %+v, %v", e, ok)
	}
	if _, ok := FindRank(entries, 3); ok {
		t.Error("FindRank(3) should report absent")
	}
}
