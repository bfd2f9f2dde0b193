package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/jsnider89/ai-news-digest/app/feed"
	"github.com/jsnider89/ai-news-digest/app/market"
)

func promptItems() []feed.ScoredItem {
	return []feed.ScoredItem{
		{Item: feed.Item{Title: "Fed Holds Rates", CanonicalURL: "https://a.example/fed", Source: "a.example", Description: "The central bank held steady."}, Rank: 1},
		{Item: feed.Item{Title: "Tech Rally Extends", CanonicalURL: "https://b.example/tech", Source: "b.example", Description: strings.Repeat("x", 300)}, Rank: 2},
	}
}

func TestBuildPromptStructure(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	req := BuildPrompt(PromptInput{
		NewsletterName: "Daily Markets",
		NewsletterType: "market_analysis",
		Verbosity:      "medium",
		LocalDate:      time.Date(2025, 7, 7, 7, 30, 0, 0, loc),
		Watchlist:      []string{"SPY", "QQQ"},
		Quotes: []market.Quote{
			{Symbol: "SPY", Price: 512.34, ChangeAmount: 1.2, ChangePercent: 0.23},
		},
		Items: promptItems(),
	})

	// System prompt pins the output contract headings.
	for _, heading := range []string{
		"## SECTION 1 - MARKET PERFORMANCE",
		"## SECTION 2 - TOP MARKET & ECONOMY STORIES (5 stories)",
		"## SECTION 3 - GENERAL NEWS STORIES (10 stories)",
		"### LOOKING AHEAD (Tomorrow)",
	} {
		if !strings.Contains(req.System, heading) {
			t.Errorf("System prompt missing heading %q", heading)
		}
	}

	if !strings.Contains(req.User, "Monday, July 7, 2025") {
		t.Error("Expected literal local date in context block")
	}
	if !strings.Contains(req.User, "US market status: quiet") {
		t.Errorf("Expected pre-open status hint, got: %s", req.User)
	}
	if !strings.Contains(req.User, "Tracked tickers: SPY, QQQ") {
		t.Error("Expected tracked tickers")
	}
	if !strings.Contains(req.User, "| SPY | $512.34 | +1.20 | +0.23% |") {
		t.Errorf("Expected quote table row, got: %s", req.User)
	}
	if !strings.Contains(req.User, "1. Fed Holds Rates [https://a.example/fed]") {
		t.Error("Expected numbered headline with URL")
	}
	if !strings.Contains(req.User, "2. Tech Rally Extends") {
		t.Error("Expected second numbered headline")
	}
	if !strings.Contains(req.User, "### a.example (1 articles)") {
		t.Error("Expected per-source grouping")
	}
}

func TestBuildPromptSnippetTruncation(t *testing.T) {
	req := BuildPrompt(PromptInput{
		NewsletterName: "N",
		LocalDate:      time.Date(2025, 7, 7, 12, 0, 0, 0, time.UTC),
		Items:          promptItems(),
	})

	// 300-char description clips to 220 with ellipsis.
	wantClipped := strings.Repeat("x", 217) + "..."
	if !strings.Contains(req.User, wantClipped) {
		t.Error("Expected description clipped to 220 chars")
	}
	if strings.Contains(req.User, strings.Repeat("x", 221)) {
		t.Error("Snippet exceeded 220 chars")
	}
}

func TestBuildPromptCustomPrompt(t *testing.T) {
	req := BuildPrompt(PromptInput{
		NewsletterName: "N",
		LocalDate:      time.Date(2025, 7, 7, 12, 0, 0, 0, time.UTC),
		CustomPrompt:   "Always mention commodity markets.",
		Items:          promptItems(),
	})

	if !strings.Contains(req.User, "Always mention commodity markets.") {
		t.Error("Expected custom prompt appended")
	}
}

func TestBuildPromptNoQuotes(t *testing.T) {
	req := BuildPrompt(PromptInput{
		NewsletterName: "N",
		LocalDate:      time.Date(2025, 7, 7, 12, 0, 0, 0, time.UTC),
		Watchlist:      []string{"SPY"},
		Items:          promptItems(),
	})

	if !strings.Contains(req.User, "Do not fabricate price tables") {
		t.Error("Expected fabrication guard when quotes are missing")
	}
}
