package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	blockClosePattern = regexp.MustCompile(`(?i)</(p|h1|h2|h3|li|tr|div|table)>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// PlainText produces the text/plain alternative for an HTML digest body by
// stripping tags and bulletizing the market table.
func PlainText(analysisHTML string, meta DigestMetadata) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n%s\n\n", meta.NewsletterName, meta.RunStartedAt.Format("Monday, Jan 2 2006"))

	if len(meta.Quotes) > 0 {
		b.WriteString("Market snapshot:\n")
		for _, q := range meta.Quotes {
			fmt.Fprintf(&b, "- %s: $%.2f (%+.2f, %+.2f%%)\n",
				q.Symbol, q.Price, q.ChangeAmount, q.ChangePercent)
		}
		b.WriteString("\n")
	}

	b.WriteString(StripTags(analysisHTML))

	if len(meta.Watchlist) > 0 {
		fmt.Fprintf(&b, "\nTracked symbols: %s\n", strings.Join(meta.Watchlist, ", "))
	}

	return b.String()
}

// StripTags flattens HTML to readable text: block closers become newlines,
// remaining tags are removed, and entities are decoded.
func StripTags(htmlBody string) string {
	text := blockClosePattern.ReplaceAllString(htmlBody, "\n")
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text) + "\n"
}
