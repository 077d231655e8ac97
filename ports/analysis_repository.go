package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"csvinsight/models"
)

// AnalysisRepository persists derived analysis records. Uploaded datasets
// are never stored.
type AnalysisRepository interface {
	Save(ctx context.Context, record *models.AnalysisRecord) error
	Get(ctx context.Context, id uuid.UUID) (*models.AnalysisRecord, error)
	List(ctx context.Context, limit, offset int) ([]*models.AnalysisSummary, error)
	// UsageByModel sums token usage of analyses created in [start, end)
	UsageByModel(ctx context.Context, start, end time.Time) ([]models.ModelUsage, error)
}
