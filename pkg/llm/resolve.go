package llm

import (
	"fmt"

	"github.com/rajat1299/memoire/pkg/config"
)

// New builds the process-lifetime gateway for the configured provider,
// wrapped with transient-error retry. Selecting a provider is a startup
// decision; nothing swaps providers at runtime.
func New(cfg *config.Config) (Gateway, error) {
	apiKey := cfg.ProviderAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.LLMProvider)
	}

	var inner Gateway
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		inner = NewOpenAI(apiKey, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDim)
	case config.ProviderOpenRouter:
		inner = NewOpenRouter(apiKey, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDim)
	case config.ProviderGemini:
		inner = NewGemini(apiKey, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDim)
	case config.ProviderAnthropic:
		// Anthropic has no embedding API; delegate to OpenAI when a key for
		// it is present.
		var embedder Gateway
		if cfg.OpenAIAPIKey != "" {
			embedder = NewOpenAI(cfg.OpenAIAPIKey, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDim)
		}
		inner = NewAnthropic(apiKey, cfg.ChatModel, embedder)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}

	return WithRetry(inner), nil
}
