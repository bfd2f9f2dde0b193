package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// The digest output contract is a narrow Markdown subset: headings, lists,
// bold, italics, and links. A line-wise state machine keeps the escaping
// discipline exact; everything else becomes an escaped paragraph.

var (
	linkPattern       = regexp.MustCompile(`\[([^\]\n]+)\]\((https?://[^)\s]+)\)`)
	bracketURLPattern = regexp.MustCompile(`\[(https?://[^\]\s]+)\]`)
	bareURLPattern    = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	boldPattern       = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicPattern     = regexp.MustCompile(`\*([^*\n]+)\*`)
	orderedPattern    = regexp.MustCompile(`^\d+\.\s+`)
)

type listState int

const (
	listNone listState = iota
	listUnordered
	listOrdered
)

// MarkdownToHTML converts the supported subset into email-safe HTML. Input
// is HTML-escaped before emphasis and link substitution; every generated
// anchor opens in a new tab with rel protection.
func MarkdownToHTML(markdown string) string {
	var b strings.Builder
	state := listNone

	closeList := func() {
		switch state {
		case listUnordered:
			b.WriteString("</ul>\n")
		case listOrdered:
			b.WriteString("</ol>\n")
		}
		state = listNone
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			closeList()

		case strings.HasPrefix(trimmed, "### "):
			closeList()
			fmt.Fprintf(&b, "<h3 style=\"margin:18px 0 8px;color:#111827;\">%s</h3>\n",
				renderInline(strings.TrimPrefix(trimmed, "### ")))

		case strings.HasPrefix(trimmed, "## "):
			closeList()
			fmt.Fprintf(&b, "<h2 style=\"margin:24px 0 10px;color:#111827;\">%s</h2>\n",
				renderInline(strings.TrimPrefix(trimmed, "## ")))

		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			if state != listUnordered {
				closeList()
				b.WriteString("<ul style=\"margin:8px 0;padding-left:22px;\">\n")
				state = listUnordered
			}
			fmt.Fprintf(&b, "<li style=\"margin:4px 0;\">%s</li>\n", renderInline(trimmed[2:]))

		case orderedPattern.MatchString(trimmed):
			if state != listOrdered {
				closeList()
				b.WriteString("<ol style=\"margin:8px 0;padding-left:22px;\">\n")
				state = listOrdered
			}
			content := orderedPattern.ReplaceAllString(trimmed, "")
			fmt.Fprintf(&b, "<li style=\"margin:4px 0;\">%s</li>\n", renderInline(content))

		default:
			closeList()
			fmt.Fprintf(&b, "<p style=\"margin:10px 0;line-height:1.55;\">%s</p>\n", renderInline(trimmed))
		}
	}
	closeList()

	return b.String()
}

// renderInline escapes the line, then substitutes links and emphasis.
// Anchors are swapped for placeholders so later passes never touch URLs.
func renderInline(text string) string {
	escaped := html.EscapeString(text)

	var anchors []string
	stash := func(href, label string) string {
		anchors = append(anchors, fmt.Sprintf(
			`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, href, label))
		return fmt.Sprintf("\x00%d\x00", len(anchors)-1)
	}

	escaped = linkPattern.ReplaceAllStringFunc(escaped, func(m string) string {
		parts := linkPattern.FindStringSubmatch(m)
		return stash(parts[2], parts[1])
	})
	escaped = bracketURLPattern.ReplaceAllStringFunc(escaped, func(m string) string {
		parts := bracketURLPattern.FindStringSubmatch(m)
		return stash(parts[1], parts[1])
	})
	escaped = bareURLPattern.ReplaceAllStringFunc(escaped, func(m string) string {
		return stash(m, m)
	})

	escaped = boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>")
	escaped = italicPattern.ReplaceAllString(escaped, "<em>$1</em>")

	for i, anchor := range anchors {
		escaped = strings.Replace(escaped, fmt.Sprintf("\x00%d\x00", i), anchor, 1)
	}

	return escaped
}
