package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRecord is one persisted analysis: the derived metrics report,
// the validated model result and the token usage of the call.
type AnalysisRecord struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Filename         string    `json:"filename" db:"filename"`
	Rows             int       `json:"rows" db:"row_count"`
	Columns          int       `json:"columns" db:"column_count"`
	HealthScore      float64   `json:"health_score" db:"health_score"`
	ReportJSON       string    `json:"-" db:"report_json"`
	ResultJSON       string    `json:"-" db:"result_json"`
	Provider         string    `json:"provider" db:"provider"`
	Model            string    `json:"model" db:"model"`
	PromptTokens     int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens" db:"total_tokens"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// AnalysisSummary is the list view of a record, without the JSON documents
type AnalysisSummary struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Filename    string    `json:"filename" db:"filename"`
	Rows        int       `json:"rows" db:"row_count"`
	Columns     int       `json:"columns" db:"column_count"`
	HealthScore float64   `json:"health_score" db:"health_score"`
	Provider    string    `json:"provider" db:"provider"`
	Model       string    `json:"model" db:"model"`
	TotalTokens int       `json:"total_tokens" db:"total_tokens"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
