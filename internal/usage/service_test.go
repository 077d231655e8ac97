package usage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvinsight/internal/errors"
	"csvinsight/models"
)

// fakeRepo records the requested window and returns fixed rows
type fakeRepo struct {
	rows       []models.ModelUsage
	start, end time.Time
}

func (f *fakeRepo) Save(ctx context.Context, record *models.AnalysisRecord) error { return nil }

func (f *fakeRepo) Get(ctx context.Context, id uuid.UUID) (*models.AnalysisRecord, error) {
	return nil, nil
}

func (f *fakeRepo) List(ctx context.Context, limit, offset int) ([]*models.AnalysisSummary, error) {
	return nil, nil
}

func (f *fakeRepo) UsageByModel(ctx context.Context, start, end time.Time) ([]models.ModelUsage, error) {
	f.start, f.end = start, end
	return f.rows, nil
}

func TestSummaryAddsUpModels(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{rows: []models.ModelUsage{
		{Provider: "gemini", Model: "gemini-2.0-flash", RequestCount: 3, PromptTokens: 300, CompletionTokens: 60, TotalTokens: 360},
		{Provider: "openai", Model: "gpt-4o-mini", RequestCount: 1, PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60},
	}}
	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	summary, err := svc.Summary(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.RequestCount)
	assert.Equal(t, 350, summary.TotalPromptTokens)
	assert.Equal(t, 70, summary.TotalCompletionTokens)
	assert.Equal(t, 420, summary.TotalTokens)
	assert.Equal(t, now, summary.PeriodEnd)
	assert.Equal(t, now.Add(-7*24*time.Hour), repo.start)
	assert.Len(t, summary.ByModel, 2)
}

func TestSummaryWindowFallsBackToDefault(t *testing.T) {
	for _, window := range []time.Duration{0, -time.Hour, 2 * MaxWindow} {
		repo := &fakeRepo{}
		_, err := NewService(repo).Summary(context.Background(), window)
		require.NoError(t, err)
		assert.Equal(t, DefaultWindow, repo.end.Sub(repo.start))
	}
}

func TestSummaryEmptyHistory(t *testing.T) {
	summary, err := NewService(&fakeRepo{}).Summary(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, summary.ByModel)
	assert.Zero(t, summary.TotalTokens)
}

func TestSummaryWithoutHistory(t *testing.T) {
	_, err := NewService(nil).Summary(context.Background(), time.Hour)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.Equal(t, MsgUsageUnavailable, errors.PublicMessage(err))
}
