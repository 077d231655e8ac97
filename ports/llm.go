package ports

import "context"

// UsageData represents raw usage data from LLM provider APIs
type UsageData struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// LLMResponse is the text a provider produced plus its token accounting
type LLMResponse struct {
	Content      string
	FinishReason string
	Usage        *UsageData
}

// TextGenerator turns a prompt into text. Implementations own transport,
// retries and provider-specific request shapes.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (*LLMResponse, error)
}
