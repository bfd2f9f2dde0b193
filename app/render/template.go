package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jsnider89/ai-news-digest/app/market"
	"github.com/jsnider89/ai-news-digest/app/markettime"
)

// DigestMetadata is the header/footer context for one rendered digest.
type DigestMetadata struct {
	NewsletterName string
	ProviderLabel  string
	ArticleCount   int
	FeedsOK        int
	FeedsTotal     int
	RunStartedAt   time.Time // in the newsletter's timezone
	Watchlist      []string
	Quotes         []market.Quote
}

// Subject builds the email subject in the newsletter's timezone.
func Subject(name string, localTime time.Time) string {
	return fmt.Sprintf("%s — %s, %s %d",
		name,
		localTime.Format("Monday"),
		localTime.Format("Jan"),
		localTime.Day())
}

// RenderEmail wraps the analysis HTML in the single-column email template.
// Inline styles only; the critical path carries no <style> blocks.
func RenderEmail(analysisHTML string, meta DigestMetadata) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width, initial-scale=1" />
<title>`)
	b.WriteString(html.EscapeString(meta.NewsletterName))
	b.WriteString(` Digest</title>
</head>
<body style="margin:0;padding:0;background:#f5f5f5;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;color:#1f2933;">
<div style="max-width:720px;margin:0 auto;padding:24px;">
<div style="background:#ffffff;border-radius:14px;padding:30px 26px;">
`)

	writeHeader(&b, meta)
	writeMarketTable(&b, meta.Quotes)

	b.WriteString(`<div style="margin-top:18px;">`)
	b.WriteString(analysisHTML)
	b.WriteString("</div>\n")

	writeFooter(&b, meta)

	b.WriteString(`</div>
</div>
</body>
</html>
`)

	return b.String()
}

func writeHeader(b *strings.Builder, meta DigestMetadata) {
	fmt.Fprintf(b, "<h1 style=\"margin:0 0 8px;font-size:24px;color:#111827;\">%s</h1>\n",
		html.EscapeString(meta.NewsletterName))

	badge := markettime.Badge(meta.RunStartedAt)
	closed := badge == "Market Closed"
	bg, fg, border := "#dcfce7", "#065f46", "#bbf7d0"
	if closed {
		bg, fg, border = "#fee2e2", "#991b1b", "#fecaca"
	}
	fmt.Fprintf(b, "<div style=\"display:inline-block;padding:6px 10px;border-radius:999px;font-size:12px;margin:6px 0;background:%s;color:%s;border:1px solid %s;\">%s, %s &bull; %s</div>\n",
		bg, fg, border,
		meta.RunStartedAt.Format("Monday"),
		meta.RunStartedAt.Format("Jan 2"),
		badge)

	fmt.Fprintf(b, "<div style=\"font-size:13px;color:#444444;margin:8px 0;\"><strong>Analysis by:</strong> %s<br /><strong>Articles:</strong> %d &bull; <strong>Feeds:</strong> %d/%d</div>\n",
		html.EscapeString(meta.ProviderLabel), meta.ArticleCount, meta.FeedsOK, meta.FeedsTotal)
}

func writeMarketTable(b *strings.Builder, quotes []market.Quote) {
	if len(quotes) == 0 {
		return
	}

	b.WriteString(`<table style="width:100%;border-collapse:collapse;margin:16px 0;">
<tr>
<th style="border:1px solid #e5e7eb;padding:8px 12px;text-align:left;background:#f9fafb;">Symbol</th>
<th style="border:1px solid #e5e7eb;padding:8px 12px;text-align:right;background:#f9fafb;">Price</th>
<th style="border:1px solid #e5e7eb;padding:8px 12px;text-align:right;background:#f9fafb;">Change</th>
<th style="border:1px solid #e5e7eb;padding:8px 12px;text-align:right;background:#f9fafb;">%</th>
</tr>
`)
	for _, q := range quotes {
		color := "#047857" // green
		if q.ChangeAmount < 0 {
			color = "#b91c1c" // red
		}
		fmt.Fprintf(b, `<tr>
<td style="border:1px solid #e5e7eb;padding:8px 12px;">%s</td>
<td style="border:1px solid #e5e7eb;padding:8px 12px;text-align:right;">$%.2f</td>
<td style="border:1px solid #e5e7eb;padding:8px 12px;text-align:right;color:%s;">%+.2f</td>
<td style="border:1px solid #e5e7eb;padding:8px 12px;text-align:right;color:%s;">%+.2f%%</td>
</tr>
`, html.EscapeString(q.Symbol), q.Price, color, q.ChangeAmount, color, q.ChangePercent)
	}
	b.WriteString("</table>\n")
}

func writeFooter(b *strings.Builder, meta DigestMetadata) {
	b.WriteString(`<hr style="border:none;border-top:1px solid #e5e7eb;margin:24px 0 12px;" />`)
	b.WriteString("\n")
	if len(meta.Watchlist) > 0 {
		fmt.Fprintf(b, "<div style=\"font-size:12px;color:#6b7280;\">Tracked symbols: %s</div>\n",
			html.EscapeString(strings.Join(meta.Watchlist, ", ")))
	}
	fmt.Fprintf(b, "<div style=\"font-size:12px;color:#9ca3af;margin-top:4px;\">Generated %s</div>\n",
		meta.RunStartedAt.Format("2006-01-02 15:04 MST"))
}
