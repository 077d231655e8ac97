package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"csvinsight/ai"
	"csvinsight/app"
	"csvinsight/internal"
	"csvinsight/internal/config"
	"csvinsight/internal/errors"
	"csvinsight/internal/report"
	"csvinsight/internal/usage"
	"csvinsight/models"
)

const (
	MsgMissingFile   = "Debes enviar un archivo en el campo 'file'"
	MsgFileTooLarge  = "El archivo excede el tamaño máximo permitido"
	MsgServerBusy    = "El servidor está ocupado, intenta de nuevo en unos momentos"
	MsgInvalidID     = "Identificador de análisis inválido"
	uploadField      = "file"
	analysisIDHeader = "X-Analysis-ID"
)

// Handler serves the analysis API
type Handler struct {
	service   *app.AnalysisService
	usage     *usage.Service
	limiter   *semaphore.Weighted
	maxUpload int64
	logger    *internal.Logger
}

// NewHandler creates a handler bound to the service. At most
// cfg.MaxConcurrentAnalyses uploads are processed at once.
func NewHandler(service *app.AnalysisService, usageService *usage.Service, cfg config.ServerConfig) *Handler {
	return &Handler{
		service:   service,
		usage:     usageService,
		limiter:   semaphore.NewWeighted(cfg.MaxConcurrentAnalyses),
		maxUpload: cfg.MaxUploadBytes,
		logger:    internal.DefaultLogger.WithComponent("API"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Post("/analyze_dataset/", h.AnalyzeDataset)
	r.Post("/metrics/", h.DatasetMetrics)

	r.Get("/analyses", h.ListAnalyses)
	r.Get("/analyses/{id}", h.GetAnalysis)
	r.Get("/analyses/{id}/report", h.GetAnalysisReport)
	r.Get("/usage", h.GetUsage)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AnalyzeDataset profiles the uploaded file and returns the model's
// validated observations and suggestions
func (h *Handler) AnalyzeDataset(w http.ResponseWriter, r *http.Request) {
	filename, content, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.acquire(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	defer h.limiter.Release(1)

	outcome, err := h.service.Analyze(r.Context(), filename, content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body, err := ai.MarshalResult(outcome.Result)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set(analysisIDHeader, outcome.ID.String())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// DatasetMetrics returns the metrics report without calling a model
func (h *Handler) DatasetMetrics(w http.ResponseWriter, r *http.Request) {
	filename, content, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.acquire(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	defer h.limiter.Release(1)

	rep, err := h.service.Metrics(r.Context(), filename, content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := h.service.ListAnalyses(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": list})
}

// analysisDetail inlines the stored documents instead of escaping them
type analysisDetail struct {
	*models.AnalysisRecord
	Report json.RawMessage `json:"report"`
	Result json.RawMessage `json:"result"`
}

func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	record, err := h.service.GetAnalysis(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisDetail{
		AnalysisRecord: record,
		Report:         json.RawMessage(record.ReportJSON),
		Result:         json.RawMessage(record.ResultJSON),
	})
}

// GetAnalysisReport renders the stored metrics as an HTML page
func (h *Handler) GetAnalysisReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rep, err := h.service.StoredReport(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.HTML(rep, "Análisis "+id.String()))
}

// GetUsage sums token usage over the last ?days= days (default 30)
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	summary, err := h.usage.Summary(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// readUpload pulls the multipart file into memory, enforcing the size limit
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if isTooLarge(err) {
			return "", nil, errors.TooLarge(MsgFileTooLarge)
		}
		return "", nil, errors.Wrap(errors.InvalidInput(MsgMissingFile), err.Error())
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return "", nil, errors.Wrap(errors.InvalidInput(MsgMissingFile), err.Error())
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, errors.Wrap(errors.InvalidInput(MsgMissingFile), err.Error())
	}
	return header.Filename, content, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return stderrors.As(err, &maxErr) || stderrors.Is(err, multipart.ErrMessageTooLarge)
}

// acquire waits for a processing slot until the request is abandoned
func (h *Handler) acquire(r *http.Request) error {
	if err := h.limiter.Acquire(r.Context(), 1); err != nil {
		return errors.Wrap(errors.Unavailable(MsgServerBusy), err.Error())
	}
	return nil
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errors.Wrap(errors.InvalidInput(MsgInvalidID), err.Error())
	}
	return id, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		h.logger.Debug("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]string{"detail": errors.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
