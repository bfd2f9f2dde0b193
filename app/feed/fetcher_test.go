package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jsnider89/ai-news-digest/app/database"
)

const fetcherTestRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test</title>
    <item>
      <title>Story One</title>
      <link>https://example.com/one</link>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestFetcherPerFeedIsolation(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept"), "application/rss+xml") {
			t.Errorf("Expected RSS accept header, got: %s", r.Header.Get("Accept"))
		}
		w.Write([]byte(fetcherTestRSS))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	fetcher := NewFetcher(&http.Client{}, NewParser(), "test-agent", 5*time.Second, 6)
	results := fetcher.Run(context.Background(), []database.Feed{
		{ID: "f1", URL: good.URL},
		{ID: "f2", URL: bad.URL},
	})

	if len(results) != 2 {
		t.Fatalf("Expected all-settled results for every feed, got %d", len(results))
	}

	if !results[0].OK {
		t.Errorf("Expected first feed ok, got error: %v", results[0].Err)
	}
	if len(results[0].Items) != 1 {
		t.Errorf("Expected 1 item from good feed, got %d", len(results[0].Items))
	}

	if results[1].OK {
		t.Error("Expected second feed to fail")
	}
	if results[1].Err == nil {
		t.Error("Expected error recorded for failing feed")
	}
}

func TestFetcherBoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()

		w.Write([]byte(fetcherTestRSS))
	}))
	defer server.Close()

	var feeds []database.Feed
	for i := 0; i < 10; i++ {
		feeds = append(feeds, database.Feed{URL: server.URL})
	}

	fetcher := NewFetcher(&http.Client{}, NewParser(), "test-agent", 5*time.Second, 2)
	results := fetcher.Run(context.Background(), feeds)

	if len(results) != 10 {
		t.Fatalf("Expected 10 results, got %d", len(results))
	}
	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("Expected at most 2 in-flight requests, observed %d", peak)
	}
}

func TestFetcherTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(fetcherTestRSS))
	}))
	defer server.Close()

	fetcher := NewFetcher(&http.Client{}, NewParser(), "test-agent", 50*time.Millisecond, 1)
	results := fetcher.Run(context.Background(), []database.Feed{{URL: server.URL}})

	if results[0].OK {
		t.Error("Expected timeout failure")
	}
}
