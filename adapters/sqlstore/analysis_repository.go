package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"csvinsight/internal/errors"
	"csvinsight/models"
	"csvinsight/ports"
)

// MsgAnalysisNotFound is returned when an id has no stored analysis
const MsgAnalysisNotFound = "Análisis no encontrado"

// AnalysisRepositoryImpl implements AnalysisRepository on any sqlx
// database whose driver has a registered bind type.
type AnalysisRepositoryImpl struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new SQL analysis repository
func NewAnalysisRepository(db *sqlx.DB) ports.AnalysisRepository {
	return &AnalysisRepositoryImpl{db: db}
}

// Save inserts a new analysis record
func (r *AnalysisRepositoryImpl) Save(ctx context.Context, record *models.AnalysisRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO analyses (
			id, filename, row_count, column_count, health_score,
			report_json, result_json, provider, model,
			prompt_tokens, completion_tokens, total_tokens, created_at
		) VALUES (
			:id, :filename, :row_count, :column_count, :health_score,
			:report_json, :result_json, :provider, :model,
			:prompt_tokens, :completion_tokens, :total_tokens, :created_at
		)
	`, record)
	if err != nil {
		return errors.Wrap(errors.DatabaseError("failed to save analysis"), err.Error())
	}
	return nil
}

// Get retrieves one analysis with its stored documents
func (r *AnalysisRepositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.AnalysisRecord, error) {
	var record models.AnalysisRecord
	err := r.db.GetContext(ctx, &record, r.db.Rebind(`
		SELECT id, filename, row_count, column_count, health_score,
		       report_json, result_json, provider, model,
		       prompt_tokens, completion_tokens, total_tokens, created_at
		FROM analyses
		WHERE id = ?
	`), id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, MsgAnalysisNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(errors.DatabaseError("failed to load analysis"), err.Error())
	}
	return &record, nil
}

// List returns summaries newest first
func (r *AnalysisRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.AnalysisSummary, error) {
	summaries := []*models.AnalysisSummary{}
	err := r.db.SelectContext(ctx, &summaries, r.db.Rebind(`
		SELECT id, filename, row_count, column_count, health_score,
		       provider, model, total_tokens, created_at
		FROM analyses
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, errors.Wrap(errors.DatabaseError("failed to list analyses"), err.Error())
	}
	return summaries, nil
}

// UsageByModel aggregates token counts per provider and model, largest first
func (r *AnalysisRepositoryImpl) UsageByModel(ctx context.Context, start, end time.Time) ([]models.ModelUsage, error) {
	usage := []models.ModelUsage{}
	err := r.db.SelectContext(ctx, &usage, r.db.Rebind(`
		SELECT provider, model,
		       COUNT(*) AS request_count,
		       COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens,
		       COALESCE(SUM(completion_tokens), 0) AS completion_tokens,
		       COALESCE(SUM(total_tokens), 0) AS total_tokens
		FROM analyses
		WHERE created_at >= ? AND created_at < ?
		GROUP BY provider, model
		ORDER BY total_tokens DESC, provider, model
	`), start.UTC(), end.UTC())
	if err != nil {
		return nil, errors.Wrap(errors.DatabaseError("failed to aggregate usage"), err.Error())
	}
	return usage, nil
}
