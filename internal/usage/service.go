package usage

import (
	"context"
	"time"

	"csvinsight/internal/errors"
	"csvinsight/models"
	"csvinsight/ports"
)

const (
	DefaultWindow = 30 * 24 * time.Hour
	MaxWindow     = 365 * 24 * time.Hour
)

// MsgUsageUnavailable is returned when there is no history to aggregate
const MsgUsageUnavailable = "El consumo de tokens requiere el historial de análisis"

// Service reports LLM token usage from the analysis history
type Service struct {
	repo ports.AnalysisRepository
	now  func() time.Time
}

// NewService creates a new usage service. A nil repository makes every
// call fail with NOT_FOUND.
func NewService(repo ports.AnalysisRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Summary aggregates usage over the trailing window ending now. Windows
// outside (0, MaxWindow] fall back to DefaultWindow.
func (s *Service) Summary(ctx context.Context, window time.Duration) (*models.UsageSummary, error) {
	if s.repo == nil {
		return nil, errors.New(errors.CodeNotFound, MsgUsageUnavailable)
	}
	if window <= 0 || window > MaxWindow {
		window = DefaultWindow
	}

	end := s.now().UTC()
	start := end.Add(-window)
	rows, err := s.repo.UsageByModel(ctx, start, end)
	if err != nil {
		return nil, err
	}

	summary := &models.UsageSummary{
		PeriodStart: start,
		PeriodEnd:   end,
		ByModel:     rows,
	}
	if summary.ByModel == nil {
		summary.ByModel = []models.ModelUsage{}
	}
	for _, row := range rows {
		summary.RequestCount += row.RequestCount
		summary.TotalPromptTokens += row.PromptTokens
		summary.TotalCompletionTokens += row.CompletionTokens
		summary.TotalTokens += row.TotalTokens
	}
	return summary, nil
}
