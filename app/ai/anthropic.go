package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider uses the messages API, the chat-shape analog for Claude
// models.
type AnthropicProvider struct {
	client anthropic.Client
}

var _ Provider = (*AnthropicProvider)(nil)

func NewAnthropicProvider(apiKey string, timeout time.Duration) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(timeout),
		),
	}
}

func (p *AnthropicProvider) ID() string {
	return ProviderAnthropic
}

func (p *AnthropicProvider) Generate(ctx context.Context, attempt Attempt, req Request) (*Result, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(attempt.ModelID),
		MaxTokens: attempt.MaxOutputTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		return nil, p.classify(attempt, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Text != "" {
			b.WriteString(block.Text)
		}
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return nil, &ProviderError{
			ProviderID: ProviderAnthropic,
			ModelID:    attempt.ModelID,
			Snippet:    "empty message content",
		}
	}

	return &Result{
		Text:       text,
		ProviderID: ProviderAnthropic,
		ModelID:    attempt.ModelID,
		Label:      "Anthropic " + attempt.ModelID,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
	}, nil
}

func (p *AnthropicProvider) classify(attempt Attempt, err error) *ProviderError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			ProviderID: ProviderAnthropic,
			ModelID:    attempt.ModelID,
			Status:     apiErr.StatusCode,
			Snippet:    truncateSnippet(apiErr.Error()),
			Err:        err,
		}
	}
	return &ProviderError{
		ProviderID: ProviderAnthropic,
		ModelID:    attempt.ModelID,
		Snippet:    truncateSnippet(err.Error()),
		Err:        err,
	}
}
