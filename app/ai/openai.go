package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider speaks both the chat-completions shape and the responses
// shape, chosen per model id. SDK-level retries are disabled so the cascade
// owns backoff.
type OpenAIProvider struct {
	client openai.Client
}

var _ Provider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(apiKey string, timeout time.Duration) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(timeout),
		),
	}
}

func (p *OpenAIProvider) ID() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) Generate(ctx context.Context, attempt Attempt, req Request) (*Result, error) {
	if UsesResponsesShape(attempt.ModelID) {
		return p.generateResponses(ctx, attempt, req)
	}
	return p.generateChat(ctx, attempt, req)
}

func (p *OpenAIProvider) generateChat(ctx context.Context, attempt Attempt, req Request) (*Result, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(attempt.ModelID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(attempt.MaxOutputTokens),
	})
	if err != nil {
		return nil, p.classify(attempt, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &ProviderError{
			ProviderID: ProviderOpenAI,
			ModelID:    attempt.ModelID,
			Snippet:    "empty completion",
		}
	}

	return &Result{
		Text:       resp.Choices[0].Message.Content,
		ProviderID: ProviderOpenAI,
		ModelID:    attempt.ModelID,
		Label:      "OpenAI " + attempt.ModelID,
		TokensIn:   int(resp.Usage.PromptTokens),
		TokensOut:  int(resp.Usage.CompletionTokens),
	}, nil
}

func (p *OpenAIProvider) generateResponses(ctx context.Context, attempt Attempt, req Request) (*Result, error) {
	params := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(attempt.ModelID),
		Instructions:    openai.String(req.System),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(req.User)},
		MaxOutputTokens: openai.Int(attempt.MaxOutputTokens),
	}
	if attempt.ReasoningEffort != "" {
		params.Reasoning = shared.ReasoningParam{
			Effort: shared.ReasoningEffort(attempt.ReasoningEffort),
		}
	}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return nil, p.classify(attempt, err)
	}

	text := extractResponsesText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, &ProviderError{
			ProviderID: ProviderOpenAI,
			ModelID:    attempt.ModelID,
			Snippet:    "empty response output",
		}
	}

	return &Result{
		Text:       text,
		ProviderID: ProviderOpenAI,
		ModelID:    attempt.ModelID,
		Label:      "OpenAI " + attempt.ModelID,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
	}, nil
}

// extractResponsesText prefers the aggregate output_text, falling back to
// walking output message content blocks.
func extractResponsesText(resp *responses.Response) string {
	if text := resp.OutputText(); strings.TrimSpace(text) != "" {
		return text
	}

	var b strings.Builder
	for _, item := range resp.Output {
		for _, content := range item.Content {
			if content.Text != "" {
				b.WriteString(content.Text)
			}
		}
	}
	return b.String()
}

func (p *OpenAIProvider) classify(attempt Attempt, err error) *ProviderError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			ProviderID: ProviderOpenAI,
			ModelID:    attempt.ModelID,
			Status:     apiErr.StatusCode,
			Snippet:    truncateSnippet(apiErr.Error()),
			Err:        err,
		}
	}
	return &ProviderError{
		ProviderID: ProviderOpenAI,
		ModelID:    attempt.ModelID,
		Snippet:    truncateSnippet(err.Error()),
		Err:        err,
	}
}
