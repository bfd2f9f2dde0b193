package ai

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jsnider89/ai-news-digest/app/feed"
	"github.com/jsnider89/ai-news-digest/app/market"
	"github.com/jsnider89/ai-news-digest/app/markettime"
)

const snippetLength = 220

const systemPrompt = `You are a professional financial and market analyst writing a daily
briefing for busy readers. Produce Markdown using exactly these headings, in
this order:

## SECTION 1 - MARKET PERFORMANCE
## SECTION 2 - TOP MARKET & ECONOMY STORIES (5 stories)
## SECTION 3 - GENERAL NEWS STORIES (10 stories)
### LOOKING AHEAD (Tomorrow)

Write concise, factual prose. Always substitute literal calendar dates;
never leave placeholder tokens such as [Today] or [Tomorrow] in the output.`

// PromptInput gathers everything the prompt builder needs for one run.
type PromptInput struct {
	NewsletterName string
	NewsletterType string
	Verbosity      string
	CustomPrompt   string
	LocalDate      time.Time // already in the newsletter's timezone
	Watchlist      []string
	Quotes         []market.Quote
	Items          []feed.ScoredItem
}

// BuildPrompt assembles the system instruction and the user prompt: context
// block, quote table, numbered headlines, and per-source groupings.
func BuildPrompt(input PromptInput) Request {
	var b strings.Builder

	b.WriteString("## Context\n")
	fmt.Fprintf(&b, "Today is %s.\n", input.LocalDate.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "US market status: %s.\n", markettime.StatusFor(input.LocalDate))
	fmt.Fprintf(&b, "Newsletter: %s (%s), verbosity %s.\n",
		input.NewsletterName, input.NewsletterType, input.Verbosity)

	if len(input.Watchlist) > 0 {
		fmt.Fprintf(&b, "Tracked tickers: %s.\n", strings.Join(input.Watchlist, ", "))
	}

	if len(input.Quotes) > 0 {
		b.WriteString("\n## Market Data\n")
		b.WriteString("| Symbol | Price | Change | % |\n| --- | ---: | ---: | ---: |\n")
		for _, q := range input.Quotes {
			fmt.Fprintf(&b, "| %s | $%.2f | %+.2f | %+.2f%% |\n",
				q.Symbol, q.Price, q.ChangeAmount, q.ChangePercent)
		}
	} else if len(input.Watchlist) > 0 {
		b.WriteString("\nNo market performance data was available for this briefing. Do not fabricate price tables.\n")
	}

	b.WriteString("\n## Headlines\n")
	for i, item := range input.Items {
		fmt.Fprintf(&b, "%d. %s [%s]\n", i+1, item.Title, item.CanonicalURL)
	}

	b.WriteString("\n## By source\n")
	writeSourceGroups(&b, input.Items)

	if custom := strings.TrimSpace(input.CustomPrompt); custom != "" {
		b.WriteString("\n")
		b.WriteString(custom)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nUse the literal date %s wherever the briefing refers to today.\n",
		input.LocalDate.Format("January 2, 2006"))

	return Request{System: systemPrompt, User: b.String()}
}

func writeSourceGroups(b *strings.Builder, items []feed.ScoredItem) {
	grouped := make(map[string][]feed.ScoredItem)
	for _, item := range items {
		grouped[item.Source] = append(grouped[item.Source], item)
	}

	sources := make([]string, 0, len(grouped))
	for source := range grouped {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		entries := grouped[source]
		fmt.Fprintf(b, "### %s (%d articles)\n", source, len(entries))
		for _, item := range entries {
			fmt.Fprintf(b, "- **%s**\n", item.Title)
			if snippet := truncateRunes(item.Description, snippetLength); snippet != "" {
				fmt.Fprintf(b, "  %s\n", snippet)
			}
		}
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
