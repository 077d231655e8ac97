package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"csvinsight/ai"
	"csvinsight/domain/analysis"
	"csvinsight/domain/dataset"
	"csvinsight/domain/metrics"
	"csvinsight/internal"
	"csvinsight/internal/errors"
	"csvinsight/models"
	"csvinsight/ports"
)

const (
	// MsgLLMFailure is shown when the provider could not be reached or
	// returned nothing usable.
	MsgLLMFailure = "Error en la comunicación con el servicio de IA"
	// MsgHistoryDisabled is returned by history lookups when no store is configured
	MsgHistoryDisabled = "El historial de análisis no está habilitado"
)

// AnalysisOutcome is everything one analysis produced
type AnalysisOutcome struct {
	ID     uuid.UUID
	Report *metrics.Report
	Result *analysis.Result
	Usage  *ports.UsageData
}

// AnalysisService runs the upload → metrics → prompt → model → validation
// pipeline. History is optional; a nil repository disables it.
type AnalysisService struct {
	reader    ports.DatasetReader
	engine    ports.MetricsEngine
	prompts   *ai.PromptManager
	generator ports.TextGenerator
	history   ports.AnalysisRepository
	logger    *internal.Logger
	now       func() time.Time
}

func NewAnalysisService(
	reader ports.DatasetReader,
	engine ports.MetricsEngine,
	prompts *ai.PromptManager,
	generator ports.TextGenerator,
	history ports.AnalysisRepository,
) *AnalysisService {
	return &AnalysisService{
		reader:    reader,
		engine:    engine,
		prompts:   prompts,
		generator: generator,
		history:   history,
		logger:    internal.DefaultLogger.WithComponent("AnalysisService"),
		now:       time.Now,
	}
}

// HistoryEnabled reports whether analyses are persisted
func (s *AnalysisService) HistoryEnabled() bool {
	return s.history != nil
}

// Metrics loads the file and computes its report without calling a model
func (s *AnalysisService) Metrics(ctx context.Context, filename string, content []byte) (*metrics.Report, error) {
	_, report, err := s.load(ctx, filename, content)
	return report, err
}

// Analyze runs the full pipeline. A failed history write is logged and
// does not fail the analysis.
func (s *AnalysisService) Analyze(ctx context.Context, filename string, content []byte) (*AnalysisOutcome, error) {
	if s.generator == nil {
		return nil, errors.ConfigInvalid("no text generator configured")
	}
	start := s.now()

	ds, report, err := s.load(ctx, filename, content)
	if err != nil {
		return nil, err
	}

	prompt, err := s.prompts.RenderAnalysisPrompt(filename, report, ds)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render analysis prompt")
	}

	resp, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("text generation failed for %s: %v", filename, err)
		return nil, &errors.AppError{Code: errors.CodeExternalService, Message: MsgLLMFailure, Cause: err}
	}

	result, err := ai.ParseAnalysis(resp.Content)
	if err != nil {
		return nil, err
	}

	outcome := &AnalysisOutcome{
		ID:     uuid.New(),
		Report: report,
		Result: result,
		Usage:  resp.Usage,
	}
	s.save(ctx, filename, outcome)

	s.logger.Info("analyzed %s (%d rows, %d columns) in %s", filename,
		report.Basic.Dimensions.Rows, report.Basic.Dimensions.Columns, s.now().Sub(start).Round(time.Millisecond))
	return outcome, nil
}

// load reads the upload and computes its metrics. The dataset is returned
// too so callers can preview rows.
func (s *AnalysisService) load(ctx context.Context, filename string, content []byte) (*dataset.Dataset, *metrics.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ds, err := s.reader.Read(filename, content)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.engine.Compute(ds)
	if err != nil {
		return nil, nil, errors.Wrap(errors.InternalError("Error interno del servidor"), err.Error())
	}
	return ds, report, nil
}

func (s *AnalysisService) save(ctx context.Context, filename string, outcome *AnalysisOutcome) {
	if s.history == nil {
		return
	}
	record, err := newRecord(filename, outcome, s.now().UTC())
	if err == nil {
		err = s.history.Save(ctx, record)
	}
	if err != nil {
		s.logger.Warn("analysis %s not saved to history: %v", outcome.ID, err)
	}
}

func newRecord(filename string, outcome *AnalysisOutcome, createdAt time.Time) (*models.AnalysisRecord, error) {
	reportJSON, err := json.Marshal(outcome.Report)
	if err != nil {
		return nil, err
	}
	resultJSON, err := ai.MarshalResult(outcome.Result)
	if err != nil {
		return nil, err
	}
	record := &models.AnalysisRecord{
		ID:          outcome.ID,
		Filename:    filename,
		Rows:        outcome.Report.Basic.Dimensions.Rows,
		Columns:     outcome.Report.Basic.Dimensions.Columns,
		HealthScore: outcome.Report.Basic.HealthScore,
		ReportJSON:  string(reportJSON),
		ResultJSON:  string(resultJSON),
		CreatedAt:   createdAt,
	}
	if u := outcome.Usage; u != nil {
		record.Provider = u.Provider
		record.Model = u.Model
		record.PromptTokens = u.PromptTokens
		record.CompletionTokens = u.CompletionTokens
		record.TotalTokens = u.TotalTokens
	}
	return record, nil
}

// ListAnalyses returns the most recent analyses first
func (s *AnalysisService) ListAnalyses(ctx context.Context, limit, offset int) ([]*models.AnalysisSummary, error) {
	if s.history == nil {
		return nil, errors.New(errors.CodeNotFound, MsgHistoryDisabled)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.history.List(ctx, limit, offset)
}

// GetAnalysis loads one stored analysis
func (s *AnalysisService) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.AnalysisRecord, error) {
	if s.history == nil {
		return nil, errors.New(errors.CodeNotFound, MsgHistoryDisabled)
	}
	return s.history.Get(ctx, id)
}

// StoredReport decodes the metrics report kept with an analysis
func (s *AnalysisService) StoredReport(ctx context.Context, id uuid.UUID) (*metrics.Report, error) {
	record, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	report := metrics.NewReport()
	if err := json.Unmarshal([]byte(record.ReportJSON), report); err != nil {
		return nil, errors.Wrap(errors.InternalError("Error interno del servidor"), "decode stored report: "+err.Error())
	}
	return report, nil
}
