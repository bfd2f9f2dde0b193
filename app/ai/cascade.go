package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	attemptRetries   = 3
	retryBackoffBase = 500 * time.Millisecond
	maxErrorSnippet  = 500
)

// Cascade walks an ordered list of provider attempts until one yields text.
// Each attempt is retried with exponential backoff on retryable failures,
// then the next provider takes over.
type Cascade struct {
	providers map[string]Provider
	attempts  []Attempt
	sink      EventSink
}

func NewCascade(providers []Provider, attempts []Attempt, sink EventSink) *Cascade {
	byID := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}
	return &Cascade{providers: byID, attempts: attempts, sink: sink}
}

// Attempts returns the configured pipeline, for introspection.
func (c *Cascade) Attempts() []Attempt {
	return c.attempts
}

// Generate runs the cascade. It returns the first success; when every
// provider is exhausted the error is ErrExhausted and the caller falls back
// to the headlines-only digest.
func (c *Cascade) Generate(ctx context.Context, req Request) (*Result, error) {
	if len(c.attempts) == 0 {
		return nil, ErrExhausted
	}

	for _, attempt := range c.attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		provider, ok := c.providers[attempt.ProviderID]
		if !ok {
			slog.Warn("No provider registered for attempt", "provider", attempt.ProviderID, "model", attempt.ModelID)
			continue
		}

		result, err := c.executeWithRetry(ctx, provider, attempt, req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			c.logFailure(attempt, err)
			continue
		}

		c.sink.Event("info", "ai.result", map[string]interface{}{
			"provider_id": result.ProviderID,
			"model_id":    result.ModelID,
			"tokens_in":   result.TokensIn,
			"tokens_out":  result.TokensOut,
		})
		return result, nil
	}

	return nil, ErrExhausted
}

// ErrExhausted signals that every configured provider failed.
var ErrExhausted = errors.New("all AI providers failed")

func (c *Cascade) executeWithRetry(ctx context.Context, provider Provider, attempt Attempt, req Request) (*Result, error) {
	var lastErr error

	for i := 0; i < attemptRetries; i++ {
		if i > 0 {
			backoff := retryBackoffBase * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := provider.Generate(ctx, attempt, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var provErr *ProviderError
		if errors.As(err, &provErr) && !provErr.Retryable() {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Cascade) logFailure(attempt Attempt, err error) {
	fields := map[string]interface{}{
		"provider_id": attempt.ProviderID,
		"model_id":    attempt.ModelID,
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		if provErr.Status > 0 {
			fields["status"] = provErr.Status
		}
		fields["error"] = provErr.Snippet
	} else {
		fields["error"] = truncateSnippet(err.Error())
	}

	c.sink.Event("warn", "ai.failed", fields)
	slog.Warn("AI provider failed, advancing cascade",
		"provider", attempt.ProviderID, "model", attempt.ModelID, "error", err)
}

func truncateSnippet(s string) string {
	if len(s) > maxErrorSnippet {
		return s[:maxErrorSnippet]
	}
	return s
}

// NewProviders constructs the provider set for configured credentials.
func NewProviders(openaiKey, anthropicKey string, timeout time.Duration) []Provider {
	var providers []Provider
	if openaiKey != "" {
		providers = append(providers, NewOpenAIProvider(openaiKey, timeout))
	}
	if anthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(anthropicKey, timeout))
	}
	if len(providers) == 0 {
		slog.Warn("No AI provider credentials configured; runs will fall back to headlines")
	}
	return providers
}
