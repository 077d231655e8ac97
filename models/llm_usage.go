package models

import "time"

// ModelUsage is token usage aggregated per provider and model
type ModelUsage struct {
	Provider         string `json:"provider" db:"provider"`
	Model            string `json:"model" db:"model"`
	RequestCount     int    `json:"request_count" db:"request_count"`
	PromptTokens     int    `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens" db:"total_tokens"`
}

// UsageSummary provides aggregated usage statistics for a period
type UsageSummary struct {
	PeriodStart           time.Time    `json:"period_start"`
	PeriodEnd             time.Time    `json:"period_end"`
	TotalTokens           int          `json:"total_tokens"`
	TotalPromptTokens     int          `json:"total_prompt_tokens"`
	TotalCompletionTokens int          `json:"total_completion_tokens"`
	RequestCount          int          `json:"request_count"`
	ByModel               []ModelUsage `json:"by_model"`
}
