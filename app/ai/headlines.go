package ai

import (
	"fmt"
	"strings"

	"github.com/jsnider89/ai-news-digest/app/feed"
)

const (
	// HeadlinesLabel is the provider label recorded when the cascade is
	// exhausted and the deterministic fallback produced the digest.
	HeadlinesLabel = "headlines-only"

	maxHeadlineItems = 12
)

// HeadlinesFallback synthesizes the fixed-structure headlines digest from
// the selected items. Pure and deterministic; used when every provider
// fails.
func HeadlinesFallback(items []feed.ScoredItem) string {
	var b strings.Builder

	b.WriteString("### Headlines\n\n")
	if len(items) == 0 {
		b.WriteString("No fresh articles were selected for this run.\n")
		return b.String()
	}

	count := len(items)
	if count > maxHeadlineItems {
		count = maxHeadlineItems
	}
	for _, item := range items[:count] {
		fmt.Fprintf(&b, "- **%s** — [%s](%s)\n", item.Title, item.Source, item.CanonicalURL)
	}

	b.WriteString("\nAutomated analysis was unavailable for this run; the stories above are the top selected headlines.\n")
	return b.String()
}
