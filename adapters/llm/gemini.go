package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"csvinsight/internal/config"
	"csvinsight/ports"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Gemini generateContent endpoint and asks for a
// JSON response body.
type GeminiClient struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int

	transport *transport
}

// NewGeminiClient builds a client from provider settings
func NewGeminiClient(cfg config.LLMConfig) *GeminiClient {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		APIKey:      cfg.APIKey,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		transport:   newTransport(config.ProviderGemini, cfg.Timeout, cfg.RetryMax),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

// Generate sends prompt as a single user turn
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (*ports.LLMResponse, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("missing Gemini API key")
	}
	if strings.TrimSpace(c.Model) == "" {
		return nil, fmt.Errorf("missing model")
	}

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			Temperature:      c.Temperature,
			MaxOutputTokens:  c.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, c.Model)
	body, err := c.transport.post(ctx, url, map[string]string{"x-goog-api-key": c.APIKey}, payload)
	if err != nil {
		return nil, err
	}
	return parseGeminiResponse(c.Model, body)
}

func parseGeminiResponse(model string, body []byte) (*ports.LLMResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("gemini returned invalid JSON")
	}
	parsed := gjson.ParseBytes(body)

	var sb strings.Builder
	for _, part := range parsed.Get("candidates.0.content.parts.#.text").Array() {
		sb.WriteString(part.String())
	}
	finish := parsed.Get("candidates.0.finishReason").String()
	if finish == "" {
		finish = parsed.Get("promptFeedback.blockReason").String()
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, &EmptyResponseError{Provider: config.ProviderGemini, FinishReason: finish}
	}

	usage := parsed.Get("usageMetadata")
	return &ports.LLMResponse{
		Content:      sb.String(),
		FinishReason: finish,
		Usage: &ports.UsageData{
			PromptTokens:     int(usage.Get("promptTokenCount").Int()),
			CompletionTokens: int(usage.Get("candidatesTokenCount").Int()),
			TotalTokens:      int(usage.Get("totalTokenCount").Int()),
			Model:            model,
			Provider:         config.ProviderGemini,
		},
	}, nil
}
