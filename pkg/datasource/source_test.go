package datasource

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"valid", "Player#EUW", true},
		{"shortest parts", "abc#123", true},
		{"longest parts", strings.Repeat("a", 20) + "#12345", true},
		{"no separator", "Player", false},
		{"empty tag", "Player#", false},
		{"empty name", "#EUW", false},
		{"name too short", "ab#EUW", false},
		{"name too long", strings.Repeat("a", 21) + "#EUW", false},
		{"tag too short", "Player#EU", false},
		{"tag too long", "Player#123456", false},
		{"multibyte name", "Jäger#EUW", true},
		{"extra separator", "Player#EUW#X", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if tt.valid && err != nil {
				t.Errorf("ValidateIdentifier(%q) = %v, want nil", tt.input, err)
			}
			if !tt.valid {
				var pe *ProfileError
				if !errors.As(err, &pe) {
					t.Fatalf("ValidateIdentifier(%q) = %v, want ProfileError", tt.input, err)
				}
				if pe.Message != "Invalid Riot ID format" {
					t.Errorf("message = %q", pe.Message)
				}
			}
		})
	}
}

func TestValidateActID(t *testing.T) {
	if err := ValidateActID(DefaultActID); err != nil {
		t.Errorf("default act rejected: %v", err)
	}
	if err := ValidateActID("4C4B8CFF-43EB-13D3-8F14-96B783C90CD2"); err != nil {
		t.Errorf("upper case act rejected: %v", err)
	}

	for _, bad := range []string{"", "season-1", "4c4b8cff43eb13d38f1496b783c90cd2", "{4c4b8cff-43eb-13d3-8f14-96b783c90cd2}"} {
		var pe *ProfileError
		if err := ValidateActID(bad); !errors.As(err, &pe) || pe.Message != "Invalid Act ID configuration" {
			t.Errorf("ValidateActID(%q) = %v, want ProfileError", bad, err)
		}
	}
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{ErrNoData, "no_data"},
		{ErrUnsupported, "unsupported"},
		{&ProfileError{Message: "x"}, "profile_error"},
		{errors.New("x"), "error"},
	}
	for _, tt := range tests {
		if got := resultLabel(tt.err); got != tt.want {
			t.Errorf("resultLabel(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
