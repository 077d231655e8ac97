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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to any Chat Completions compatible endpoint
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int

	transport *transport
}

// NewOpenAIClient builds a client from provider settings
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		APIKey:      cfg.APIKey,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		transport:   newTransport(config.ProviderOpenAI, cfg.Timeout, cfg.RetryMax),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

// Generate sends one system and one user message in JSON mode
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (*ports.LLMResponse, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}
	if strings.TrimSpace(c.Model) == "" {
		return nil, fmt.Errorf("missing model")
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "Eres un analista de datos. Responde solo con un objeto JSON."},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.Temperature,
		MaxTokens:      c.MaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + c.APIKey}
	body, err := c.transport.post(ctx, c.BaseURL+"/chat/completions", headers, payload)
	if err != nil {
		return nil, err
	}
	return parseChatResponse(c.Model, body)
}

func parseChatResponse(model string, body []byte) (*ports.LLMResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("openai returned invalid JSON")
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.Get("choices.0").Exists() {
		return nil, fmt.Errorf("openai response missing choices")
	}

	content := parsed.Get("choices.0.message.content").String()
	finish := parsed.Get("choices.0.finish_reason").String()
	if strings.TrimSpace(content) == "" {
		return nil, &EmptyResponseError{Provider: config.ProviderOpenAI, FinishReason: finish}
	}
	if m := parsed.Get("model").String(); m != "" {
		model = m
	}

	usage := parsed.Get("usage")
	return &ports.LLMResponse{
		Content:      content,
		FinishReason: finish,
		Usage: &ports.UsageData{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
			Model:            model,
			Provider:         config.ProviderOpenAI,
		},
	}, nil
}
