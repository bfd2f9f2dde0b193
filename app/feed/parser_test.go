package feed

import (
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>Fed Holds Rates Steady</title>
      <link>https://example.com/fed-holds?utm_source=rss</link>
      <description>The central bank kept its target range unchanged.</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Markets Rally</title>
      <link>https://News.example.com/rally</link>
      <description><![CDATA[Stocks <b>rose</b> broadly.]]></description>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	items, err := parser.Run([]byte(rssData), "markets")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(items))
	}

	item1 := items[0]
	if item1.Title != "Fed Holds Rates Steady" {
		t.Errorf("Expected title 'Fed Holds Rates Steady', got: %s", item1.Title)
	}
	if item1.CanonicalURL != "https://example.com/fed-holds" {
		t.Errorf("Expected tracking params stripped, got: %s", item1.CanonicalURL)
	}
	if item1.Source != "example.com" {
		t.Errorf("Expected source 'example.com', got: %s", item1.Source)
	}
	if item1.PublishedAt == nil {
		t.Fatal("Expected parsed pubDate")
	}
	if item1.ContentHash == "" {
		t.Error("Expected content hash to be set")
	}
	if item1.Category != "markets" {
		t.Errorf("Expected category 'markets', got: %s", item1.Category)
	}

	item2 := items[1]
	if item2.Source != "news.example.com" {
		t.Errorf("Expected lowercased host, got: %s", item2.Source)
	}
	if item2.Description != "Stocks rose broadly." {
		t.Errorf("Expected HTML stripped from description, got: %q", item2.Description)
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Test</title>
  <link href="https://example.org/"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <entry>
    <title>Treasury Yields Climb</title>
    <link rel="alternate" href="https://example.org/yields"/>
    <updated>2023-07-03T09:00:00Z</updated>
    <summary>Ten-year yields moved higher.</summary>
  </entry>
</feed>`

	parser := NewParser()
	items, err := parser.Run([]byte(atomData), "")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}

	item := items[0]
	if item.Title != "Treasury Yields Climb" {
		t.Errorf("Expected Atom title, got: %s", item.Title)
	}
	if item.CanonicalURL != "https://example.org/yields" {
		t.Errorf("Expected alternate link, got: %s", item.CanonicalURL)
	}
	if item.PublishedAt == nil {
		t.Error("Expected updated timestamp used when published is absent")
	}
	if item.Description != "Ten-year yields moved higher." {
		t.Errorf("Expected summary as description, got: %q", item.Description)
	}
}

func TestParseDropsIncompleteItems(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test</title>
    <item>
      <title>No Link Here</title>
    </item>
    <item>
      <link>https://example.com/no-title</link>
    </item>
    <item>
      <title>Complete</title>
      <link>https://example.com/ok</link>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	items, err := parser.Run([]byte(rssData), "")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected only the complete item, got: %d", len(items))
	}
	if items[0].Title != "Complete" {
		t.Errorf("Expected 'Complete', got: %s", items[0].Title)
	}
}

func TestParseIgnoresUnknownElements(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:custom="https://example.com/ns">
  <channel>
    <title>Test</title>
    <custom:extension>ignored</custom:extension>
    <item>
      <title>Story</title>
      <link>https://example.com/story</link>
      <custom:weird><nested attr="1">stuff</nested></custom:weird>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	items, err := parser.Run([]byte(rssData), "")

	if err != nil {
		t.Fatalf("Parser must not abort on unknown elements: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}
}

func TestParseInvalidXML(t *testing.T) {
	parser := NewParser()
	_, err := parser.Run([]byte("this is not XML at all"), "")
	if err == nil {
		t.Error("Expected error for invalid feed data")
	}
}

func TestParseGUIDFallbackLink(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test</title>
    <item>
      <title>GUID Only</title>
      <guid>https://example.com/from-guid</guid>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	items, err := parser.Run([]byte(rssData), "")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}
	if items[0].CanonicalURL != "https://example.com/from-guid" {
		t.Errorf("Expected guid used as link fallback, got: %s", items[0].CanonicalURL)
	}
}
