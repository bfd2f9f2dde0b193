package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jsnider89/ai-news-digest/app/database"
)

const acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9"

// Fetcher downloads and parses feeds with a bounded number of in-flight
// requests. Results carry per-feed success or failure; aggregation waits for
// every feed (all-settled semantics).
type Fetcher struct {
	httpClient  *http.Client
	parser      *Parser
	userAgent   string
	timeout     time.Duration
	maxInFlight int
}

func NewFetcher(httpClient *http.Client, parser *Parser, userAgent string, timeout time.Duration, maxInFlight int) *Fetcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Fetcher{
		httpClient:  httpClient,
		parser:      parser,
		userAgent:   userAgent,
		timeout:     timeout,
		maxInFlight: maxInFlight,
	}
}

// Run fetches all feeds and returns one result per feed, in input order.
func (f *Fetcher) Run(ctx context.Context, feeds []database.Feed) []FetchResult {
	results := make([]FetchResult, len(feeds))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := f.maxInFlight
	if workers > len(feeds) {
		workers = len(feeds)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = f.fetchOne(ctx, feeds[idx])
			}
		}()
	}

	for idx := range feeds {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, fd database.Feed) FetchResult {
	started := time.Now()
	result := FetchResult{FeedID: fd.ID, URL: fd.URL}

	data, err := f.download(ctx, fd.URL)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(started)
		slog.Warn("Feed fetch failed", "url", fd.URL, "error", err)
		return result
	}

	items, err := f.parser.Run(data, fd.Category)
	if err != nil {
		result.Err = err
		result.ParseFailed = true
		result.Duration = time.Since(started)
		slog.Warn("Feed parse failed", "url", fd.URL, "error", err)
		return result
	}

	result.OK = true
	result.Items = items
	result.Duration = time.Since(started)
	return result
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
