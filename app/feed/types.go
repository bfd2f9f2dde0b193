package feed

import (
	"time"
)

// Item is a normalized feed entry ready for dedupe and selection.
type Item struct {
	Title        string
	Link         string
	CanonicalURL string
	Source       string // lowercased hostname of the canonical URL
	Description  string
	Category     string
	PublishedAt  *time.Time
	ContentHash  string
}

// FetchResult is the outcome of fetching one feed. A failing feed never
// affects the others; the error travels in the result.
type FetchResult struct {
	FeedID      string
	URL         string
	OK          bool
	Items       []Item
	Err         error
	ParseFailed bool // body arrived but was not a valid feed
	Duration    time.Duration
}

// ScoredItem is an item that survived selection, with its rank and score.
type ScoredItem struct {
	Item
	ArticleID string
	Rank      int // 1-based
	Score     float64
}
