package llm

import (
	"csvinsight/internal/config"
	"csvinsight/internal/errors"
	"csvinsight/ports"
)

// New returns the TextGenerator selected by cfg.Provider
func New(cfg config.LLMConfig) (ports.TextGenerator, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		if cfg.APIKey == "" {
			return nil, errors.ConfigInvalid("GEMINI_API_KEY is required")
		}
		return NewGeminiClient(cfg), nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.ConfigInvalid("OPENAI_API_KEY is required")
		}
		return NewOpenAIClient(cfg), nil
	case config.ProviderMock:
		return &MockGenerator{}, nil
	default:
		return nil, errors.ConfigInvalid("unsupported LLM provider: " + cfg.Provider)
	}
}
