package ai

import (
	"strings"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultMaxOutputTokens = 8000
)

// responsesPrefixes selects models that use the responses request shape
// instead of chat completions.
var responsesPrefixes = []string{"gpt-5", "o3", "o4"}

// ProviderForModel maps a model id to its provider, or "" when unknown.
func ProviderForModel(modelID string) string {
	switch {
	case strings.HasPrefix(modelID, "gpt-"),
		strings.HasPrefix(modelID, "o3"),
		strings.HasPrefix(modelID, "o4"):
		return ProviderOpenAI
	case strings.HasPrefix(modelID, "claude-"):
		return ProviderAnthropic
	}
	return ""
}

// UsesResponsesShape reports whether the model id takes the single
// instruction + input request shape with optional reasoning effort.
func UsesResponsesShape(modelID string) bool {
	for _, prefix := range responsesPrefixes {
		if strings.HasPrefix(modelID, prefix) {
			return true
		}
	}
	return false
}

// BuildAttempts turns the configured primary/secondary models plus a static
// tail into the ordered cascade, dropping unknown models and duplicate
// entries.
func BuildAttempts(primaryModel, secondaryModel, reasoningLevel string) []Attempt {
	candidates := []string{primaryModel, secondaryModel, "gpt-4o-mini", "claude-haiku-4-5"}

	var attempts []Attempt
	seen := make(map[string]bool)
	for _, model := range candidates {
		if model == "" || seen[model] {
			continue
		}
		provider := ProviderForModel(model)
		if provider == "" {
			continue
		}
		seen[model] = true

		attempt := Attempt{
			ProviderID:      provider,
			ModelID:         model,
			MaxOutputTokens: defaultMaxOutputTokens,
		}
		if provider == ProviderOpenAI && UsesResponsesShape(model) {
			attempt.ReasoningEffort = reasoningLevel
		}
		attempts = append(attempts, attempt)
	}

	return attempts
}
