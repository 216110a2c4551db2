package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/config"
)

// NewProvider creates the Provider selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required for provider %q", cfg.Provider)
	}

	provider := strings.ToLower(cfg.Provider)
	baseURL, model := cfg.BaseURL, cfg.Model
	if !openAICompatible(provider) {
		// Drop the Qwen defaults when another vendor is selected.
		if baseURL == DashScopeBaseURL {
			baseURL = ""
		}
		if strings.HasPrefix(model, "qwen") {
			model = ""
		}
	}

	var b backend
	switch provider {
	case ProviderOpenAI, "qwen", "dashscope", "":
		b = newOpenAIBackend(cfg.APIKey, baseURL, model)
	case ProviderAnthropic, "claude":
		b = newAnthropicBackend(cfg.APIKey, baseURL, model)
	case ProviderGemini:
		gb, err := newGeminiBackend(ctx, cfg.APIKey, baseURL, model)
		if err != nil {
			return nil, fmt.Errorf("llm: gemini client: %w", err)
		}
		b = gb
	default:
		return nil, fmt.Errorf("llm: unknown provider %q (supported: %s, %s, %s)",
			cfg.Provider, ProviderOpenAI, ProviderAnthropic, ProviderGemini)
	}
	return newClient(b, cfg, log), nil
}

func openAICompatible(provider string) bool {
	switch provider {
	case ProviderOpenAI, "qwen", "dashscope", "":
		return true
	}
	return false
}
