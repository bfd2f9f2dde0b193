package feed

import (
	"testing"
	"time"
)

func TestCanonicalURLStripsTrackingParams(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "utm params removed",
			input:    "https://example.com/story?utm_source=rss&utm_medium=feed&id=42",
			expected: "https://example.com/story?id=42",
		},
		{
			name:     "all tracking params removed",
			input:    "https://example.com/a?utm_campaign=x&utm_term=y&utm_content=z&utm_name=w&mc_cid=1&mc_eid=2&gclid=3&igshid=4",
			expected: "https://example.com/a",
		},
		{
			name:     "host lowercased",
			input:    "https://Example.COM/Story",
			expected: "https://example.com/Story",
		},
		{
			name:     "non-tracking params preserved",
			input:    "https://example.com/s?page=2&sort=new",
			expected: "https://example.com/s?page=2&sort=new",
		},
		{
			name:     "no query string",
			input:    "https://example.com/story",
			expected: "https://example.com/story",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalURL(tt.input)
			if got != tt.expected {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalURLEquivalence(t *testing.T) {
	// URLs differing only in tracking params or host casing canonicalize
	// identically.
	variants := []string{
		"https://example.com/story?id=1",
		"https://EXAMPLE.com/story?id=1",
		"https://example.com/story?id=1&utm_source=feed",
		"https://example.com/story?utm_campaign=daily&id=1&gclid=abc",
	}

	base := CanonicalURL(variants[0])
	for _, v := range variants[1:] {
		if got := CanonicalURL(v); got != base {
			t.Errorf("CanonicalURL(%q) = %q, want %q", v, got, base)
		}
	}
}

func TestCanonicalURLInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "not-a-url", "://missing-scheme"} {
		if got := CanonicalURL(input); got != "" {
			t.Errorf("CanonicalURL(%q) = %q, want empty", input, got)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Fed Raises Rates  ", "fed raises rates"},
		{"Breaking: Stocks Soar!!!", "breaking stocks soar"},
		{"Multi   space\ttitle", "multi space title"},
		{"Em—dash and “quotes”", "em dash and quotes"},
		{"ALL CAPS TITLE", "all caps title"},
	}

	for _, tt := range tests {
		if got := NormalizeTitle(tt.input); got != tt.expected {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestContentHashDeterminism(t *testing.T) {
	published := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	h1 := ContentHash("Fed Raises Rates", "https://example.com/story", &published)
	h2 := ContentHash("Fed Raises Rates", "https://example.com/story", &published)
	if h1 != h2 {
		t.Error("Identical inputs must produce identical hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Expected 64-char hex hash, got %d chars", len(h1))
	}

	// Title punctuation and casing do not change the hash
	h3 := ContentHash("FED raises rates!", "https://example.com/story", &published)
	if h1 != h3 {
		t.Error("Title normalization must make punctuation variants hash equal")
	}

	// A different day produces a different hash
	nextDay := published.Add(24 * time.Hour)
	h4 := ContentHash("Fed Raises Rates", "https://example.com/story", &nextDay)
	if h1 == h4 {
		t.Error("Different publication dates must produce different hashes")
	}

	// Intraday time does not matter, only the UTC date
	sameDay := published.Add(2 * time.Hour)
	h5 := ContentHash("Fed Raises Rates", "https://example.com/story", &sameDay)
	if h1 != h5 {
		t.Error("Same UTC date must hash equal regardless of time of day")
	}

	// Missing timestamp hashes with an empty date component
	h6 := ContentHash("Fed Raises Rates", "https://example.com/story", nil)
	if h6 == h1 {
		t.Error("Nil timestamp must hash differently from a dated item")
	}
}
