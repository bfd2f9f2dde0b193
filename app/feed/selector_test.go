package feed

import (
	"fmt"
	"testing"
	"time"
)

func makeItem(title, source string, age time.Duration, now time.Time) Item {
	published := now.Add(-age)
	url := fmt.Sprintf("https://%s/%s", source, NormalizeTitle(title))
	return Item{
		Title:        title,
		CanonicalURL: url,
		Source:       source,
		PublishedAt:  &published,
		ContentHash:  ContentHash(title, url, &published),
	}
}

func TestSelectorRecencyOrdering(t *testing.T) {
	now := time.Now().UTC()
	items := []Item{
		makeItem("Old story about municipal bonds", "a.example", 20*time.Hour, now),
		makeItem("Fresh story about copper futures", "b.example", 1*time.Hour, now),
	}

	selector := NewSelector(25, 10)
	selected := selector.Run(items, now)

	if len(selected) != 2 {
		t.Fatalf("Expected 2 selected, got %d", len(selected))
	}
	if selected[0].Title != "Fresh story about copper futures" {
		t.Errorf("Expected the fresher item ranked first, got: %s", selected[0].Title)
	}
	if selected[0].Rank != 1 || selected[1].Rank != 2 {
		t.Errorf("Expected 1-based contiguous ranks, got %d and %d", selected[0].Rank, selected[1].Rank)
	}
	if selected[0].Score <= selected[1].Score {
		t.Error("Expected descending scores")
	}
}

func TestSelectorClusterBoost(t *testing.T) {
	now := time.Now().UTC()
	// Three near-identical titles across sources form a cluster; the loner
	// does not.
	items := []Item{
		makeItem("Solar eclipse dazzles millions across America", "a.example", 10*time.Hour, now),
		makeItem("Quarterly pottery auction results announced", "b.example", 10*time.Hour, now),
		makeItem("Solar eclipse dazzles millions across country", "c.example", 10*time.Hour, now),
		makeItem("Millions across America dazzled by solar eclipse", "d.example", 10*time.Hour, now),
	}

	selector := NewSelector(25, 10)
	selected := selector.Run(items, now)

	scores := make(map[string]float64)
	for _, s := range selected {
		scores[s.Source] = s.Score
	}

	// Same age everywhere, so the only difference is the cluster boost:
	// 6 * (3 - 1) = 12 for each member of the three-item cluster.
	if scores["a.example"] != scores["b.example"]+12 {
		t.Errorf("Expected clustered item (%v) to score 12 over the loner (%v)",
			scores["a.example"], scores["b.example"])
	}
	if selected[len(selected)-1].Source != "b.example" {
		t.Errorf("Expected the loner ranked last, got %s", selected[len(selected)-1].Source)
	}
}

func TestSelectorDiversityCap(t *testing.T) {
	now := time.Now().UTC()
	var items []Item
	for i := 0; i < 20; i++ {
		items = append(items, makeItem(
			fmt.Sprintf("Unrelated headline number %d about topic%d", i, i),
			"a.example", time.Duration(i)*time.Minute, now))
	}

	selector := NewSelector(25, 10)
	selected := selector.Run(items, now)

	if len(selected) != 10 {
		t.Fatalf("Expected per-source cap of 10, got %d", len(selected))
	}
	for _, s := range selected {
		if s.Source != "a.example" {
			t.Errorf("Unexpected source %s", s.Source)
		}
	}
}

func TestSelectorMaxForAI(t *testing.T) {
	now := time.Now().UTC()
	var items []Item
	for i := 0; i < 40; i++ {
		items = append(items, makeItem(
			fmt.Sprintf("Distinct headline %d mentioning subject%d", i, i),
			fmt.Sprintf("host%d.example", i), time.Hour, now))
	}

	selector := NewSelector(25, 10)
	selected := selector.Run(items, now)

	if len(selected) != 25 {
		t.Fatalf("Expected max_articles_for_ai cap of 25, got %d", len(selected))
	}
}

func TestSelectorStableTiebreak(t *testing.T) {
	now := time.Now().UTC()
	// Identical scores: no timestamps, no shared tokens.
	items := []Item{
		{Title: "Alpha subject", Source: "a.example", CanonicalURL: "https://a.example/1"},
		{Title: "Bravo matter", Source: "b.example", CanonicalURL: "https://b.example/2"},
		{Title: "Charlie theme", Source: "c.example", CanonicalURL: "https://c.example/3"},
	}

	selector := NewSelector(25, 10)
	selected := selector.Run(items, now)

	if len(selected) != 3 {
		t.Fatalf("Expected 3 selected, got %d", len(selected))
	}
	for i, want := range []string{"Alpha subject", "Bravo matter", "Charlie theme"} {
		if selected[i].Title != want {
			t.Errorf("Tiebreak must preserve insertion order: position %d = %s, want %s",
				i, selected[i].Title, want)
		}
	}
}

func TestTokenizeTitle(t *testing.T) {
	tokens := tokenizeTitle("The Fed and the US: new rates for 2025!")
	if tokens["THE"] || tokens["AND"] || tokens["FOR"] || tokens["NEW"] {
		t.Error("Stopwords must be dropped")
	}
	if tokens["US"] {
		t.Error("US is a stopword and too short")
	}
	if !tokens["FED"] || !tokens["RATES"] || !tokens["2025"] {
		t.Errorf("Expected FED, RATES, 2025 in tokens, got %v", tokens)
	}
}

func TestJaccard(t *testing.T) {
	a := map[string]bool{"FED": true, "RATES": true, "HIKE": true}
	b := map[string]bool{"FED": true, "RATES": true, "CUT": true}
	got := jaccard(a, b)
	want := 2.0 / 4.0
	if got != want {
		t.Errorf("jaccard = %v, want %v", got, want)
	}

	if jaccard(a, map[string]bool{}) != 0 {
		t.Error("Empty set must yield zero similarity")
	}
}
