package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

const maxDescriptionLength = 400

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses RSS 2.0 or Atom 1.0 bytes into normalized items. Items missing
// a title or a link are dropped silently; unknown elements are ignored by
// the underlying parser.
func (p *Parser) Run(data []byte, category string) ([]Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item, ok := p.normalizeEntry(entry, category)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (p *Parser) normalizeEntry(entry *gofeed.Item, category string) (Item, bool) {
	title := strings.TrimSpace(entry.Title)
	link := cmp.Or(strings.TrimSpace(entry.Link), strings.TrimSpace(entry.GUID))
	if title == "" || link == "" {
		return Item{}, false
	}

	canonical := CanonicalURL(link)
	if canonical == "" {
		return Item{}, false
	}

	item := Item{
		Title:        title,
		Link:         link,
		CanonicalURL: canonical,
		Source:       Hostname(canonical),
		Description:  normalizeDescription(cmp.Or(entry.Description, entry.Content)),
		Category:     category,
	}

	if entry.PublishedParsed != nil {
		t := entry.PublishedParsed.UTC()
		item.PublishedAt = &t
	} else if entry.UpdatedParsed != nil {
		t := entry.UpdatedParsed.UTC()
		item.PublishedAt = &t
	}

	item.ContentHash = ContentHash(item.Title, item.CanonicalURL, item.PublishedAt)

	return item, true
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func normalizeDescription(value string) string {
	text := tagPattern.ReplaceAllString(value, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > maxDescriptionLength {
		text = string(runes[:maxDescriptionLength-3]) + "..."
	}
	return text
}
