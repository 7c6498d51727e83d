package shipengine

import (
	"strings"
	"testing"
)

func TestTagAddressesWithPatterns(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantTags int
	}{
		{
			"full street address",
			"Send it to 123 Main Street, Anytown, CA 90210 please.",
			1,
		},
		{
			"po box",
			"Mail goes to P.O. Box 789, San Francisco, CA 94102 today.",
			1,
		},
		{
			"suite number",
			"Visit 456 Oak Avenue, Suite 100, Los Angeles, CA 90001 soon.",
			1,
		},
		{
			"no address",
			"The meeting will be held in New York City next week.",
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tagged := TagAddressesWithPatterns(tt.in)
			if got := strings.Count(tagged, "<address>"); got != tt.wantTags {
				t.Errorf("tag count = %d, want %d: %q", got, tt.wantTags, tagged)
			}
		})
	}
}

func TestFindAddressCandidates_ShortMatchesDiscarded(t *testing.T) {
	// The bare number-plus-street pattern matches, but the candidate is
	// too short to keep.
	for _, c := range findAddressCandidates("At 1 A Street.") {
		if len(c) <= minCandidateLen {
			t.Errorf("short candidate kept: %q", c)
		}
	}
}

func TestFindAddressCandidates_Deduplicated(t *testing.T) {
	text := "Ship to 123 Main Street, Anytown, CA 90210. Again: 123  MAIN  STREET, ANYTOWN, CA 90210."

	candidates := findAddressCandidates(text)

	seen := make(map[string]bool)
	for _, c := range candidates {
		key := strings.Join(strings.Fields(strings.ToLower(c)), " ")
		if seen[key] {
			t.Errorf("duplicate candidate survived: %q", c)
		}
		seen[key] = true
	}
}
