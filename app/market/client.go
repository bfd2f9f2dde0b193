package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
)

// Quote is a coerced vendor quote for one symbol.
type Quote struct {
	Symbol        string
	Price         float64
	ChangeAmount  float64
	ChangePercent float64
}

// Client fetches equity quotes from Finnhub. Symbols are requested
// sequentially to stay inside the vendor's rate limits; a failing symbol is
// skipped and never fails the run.
type Client struct {
	api *finnhub.DefaultApiService
}

func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	return &Client{api: finnhub.NewAPIClient(cfg).DefaultApi}
}

// Enabled reports whether a vendor key was configured.
func (c *Client) Enabled() bool {
	return c.api != nil
}

// FetchQuotes returns one quote per symbol that produced finite numbers.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) []Quote {
	if c.api == nil {
		slog.Warn("Market data disabled: FINNHUB_API_KEY not configured")
		return nil
	}

	quotes := make([]Quote, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := c.fetchOne(ctx, symbol)
		if err != nil {
			slog.Warn("Quote lookup failed, skipping symbol", "symbol", symbol, "error", err)
			continue
		}
		quotes = append(quotes, quote)
	}

	return quotes
}

func (c *Client) fetchOne(ctx context.Context, symbol string) (Quote, error) {
	res, _, err := c.api.Quote(ctx).Symbol(symbol).Execute()
	if err != nil {
		return Quote{}, fmt.Errorf("quote request failed: %w", err)
	}

	price := res.GetC()
	change := res.GetD()
	changePercent := res.GetDp()

	if !isFinite(price) || price == 0 {
		return Quote{}, fmt.Errorf("no quote data for %s", symbol)
	}
	if !isFinite(change) || !isFinite(changePercent) {
		return Quote{}, fmt.Errorf("non-finite change fields for %s", symbol)
	}

	return Quote{
		Symbol:        symbol,
		Price:         float64(price),
		ChangeAmount:  float64(change),
		ChangePercent: float64(changePercent),
	}, nil
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
