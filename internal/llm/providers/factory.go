package providers

import (
	"fmt"

	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
)

const (
	defaultMaxOutputTokens = 4096
	defaultTemperature     = 0.7
)

// BuildApiHandler creates an API handler for the given provider.
// A missing API key is reported as llm.ErrConfiguration.
func BuildApiHandler(provider llm.ProviderType, options llm.ApiHandlerOptions) (llm.ApiHandler, error) {
	if options.ModelID == "" {
		options.ModelID = provider.DefaultModel()
	}
	if provider.RequiresAPIKey() && options.APIKey == "" {
		return nil, fmt.Errorf("%w: no key for provider %s", llm.ErrConfiguration, provider)
	}

	switch provider {
	case llm.ProviderGemini:
		return NewGeminiSDKHandler(options), nil
	case llm.ProviderAnthropic:
		return NewAnthropicSDKHandler(options), nil
	case llm.ProviderOpenAI:
		return NewOpenAISDKHandler(options), nil
	case llm.ProviderOpenRouter:
		return NewOpenRouterSDKHandler(options), nil
	case llm.ProviderBedrock:
		return NewBedrockSDKHandler(options), nil
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", llm.ErrConfiguration, provider)
	}
}

func maxOutputTokens(options llm.ApiHandlerOptions) int {
	if options.MaxOutputTokens > 0 {
		return options.MaxOutputTokens
	}
	return defaultMaxOutputTokens
}

func temperature(options llm.ApiHandlerOptions) float64 {
	if options.Temperature > 0 {
		return options.Temperature
	}
	return defaultTemperature
}
