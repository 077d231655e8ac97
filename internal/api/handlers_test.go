package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvinsight/adapters/ingest"
	"csvinsight/adapters/llm"
	"csvinsight/adapters/sqlstore"
	"csvinsight/ai"
	"csvinsight/app"
	"csvinsight/internal/config"
	enginepkg "csvinsight/internal/metrics"
	"csvinsight/internal/migration"
	"csvinsight/internal/usage"
	"csvinsight/ports"
)

const sampleCSV = "edad,ciudad\n30,Lima\n40,Quito\n,Lima\n30,Lima\n"

const modelReply = `{
  "observaciones": [{"tipo_de_reporte": "alerta", "titulo": "Faltantes", "mensaje": "edad tiene huecos"}],
  "metricas": {"porcentaje_valores_faltantes": 13, "porcentaje_filas_duplicadas": 25, "salud_del_dataset": 75},
  "sugerencias": []
}`

type testServer struct {
	handler http.Handler
	gen     *llm.MockGenerator
}

func newTestServer(t *testing.T, withHistory bool, serverCfg config.ServerConfig) *testServer {
	t.Helper()
	gen := &llm.MockGenerator{Response: modelReply}

	var repo ports.AnalysisRepository
	if withHistory {
		db, err := sqlstore.Open(context.Background(), config.HistoryConfig{Driver: sqlstore.DriverSQLite, DSN: ":memory:"})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, migration.NewRunner(sqlstore.DriverSQLite).Run(context.Background(), db))
		repo = sqlstore.NewAnalysisRepository(db)
	}

	svc := app.NewAnalysisService(ingest.NewReader(false), enginepkg.NewEngine(), ai.NewPromptManager(""), gen, repo)
	h := NewHandler(svc, usage.NewService(repo), serverCfg)
	return &testServer{handler: NewRouter(h, []string{"*"}), gen: gen}
}

func defaultServerConfig() config.ServerConfig {
	return config.ServerConfig{MaxUploadBytes: 1 << 20, MaxConcurrentAnalyses: 2}
}

func uploadRequest(t *testing.T, path, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false, defaultServerConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyzeDataset(t *testing.T) {
	s := newTestServer(t, false, defaultServerConfig())
	rec := serve(s, uploadRequest(t, "/analyze_dataset/", "file", "ventas.csv", sampleCSV))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	_, err := uuid.Parse(rec.Header().Get("X-Analysis-ID"))
	assert.NoError(t, err)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 3)
	assert.Contains(t, body, "observaciones")
	assert.Contains(t, body, "metricas")
	assert.JSONEq(t, `[]`, string(body["sugerencias"]))
	assert.Len(t, s.gen.Prompts(), 1)
}

func TestAnalyzeDatasetErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		reply   string
		status  int
		message string
	}{
		{
			name:    "unsupported extension",
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "/analyze_dataset/", "file", "notas.txt", sampleCSV) },
			status:  http.StatusBadRequest,
			message: ingest.MsgUnsupportedType,
		},
		{
			name:    "empty csv",
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "/analyze_dataset/", "file", "vacio.csv", "") },
			status:  http.StatusBadRequest,
			message: ingest.MsgEmptyFile,
		},
		{
			name:    "wrong field",
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "/analyze_dataset/", "archivo", "a.csv", sampleCSV) },
			status:  http.StatusBadRequest,
			message: MsgMissingFile,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/analyze_dataset/", strings.NewReader(sampleCSV))
			},
			status:  http.StatusBadRequest,
			message: MsgMissingFile,
		},
		{
			name:    "model reply invalid",
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "/analyze_dataset/", "file", "a.csv", sampleCSV) },
			reply:   `{"observaciones": "ninguna"}`,
			status:  http.StatusInternalServerError,
			message: ai.MsgInvalidSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, false, defaultServerConfig())
			if tt.reply != "" {
				s.gen.Response = tt.reply
			}
			rec := serve(s, tt.req(t))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, detail(t, rec))
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.MaxUploadBytes = 1024
	s := newTestServer(t, false, cfg)

	big := "a,b\n" + strings.Repeat("1,2\n", 2000)
	rec := serve(s, uploadRequest(t, "/metrics/", "file", "big.csv", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, MsgFileTooLarge, detail(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false, defaultServerConfig())
	rec := serve(s, uploadRequest(t, "/metrics/", "file", "ventas.csv", sampleCSV))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), `{"metricas_basicas":`))
	assert.Contains(t, rec.Body.String(), `"filas_duplicadas":{"total":1,"porcentaje":25}`)
	assert.Empty(t, s.gen.Prompts())
}

func TestBusyServerReturns503WhenRequestEnds(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.MaxConcurrentAnalyses = 1
	h := NewHandler(nil, nil, cfg)
	require.NoError(t, h.limiter.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := uploadRequest(t, "/metrics/", "file", "a.csv", sampleCSV).WithContext(ctx)

	rec := httptest.NewRecorder()
	router := NewRouter(h, []string{"*"})
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, MsgServerBusy, detail(t, rec))
}

func TestHistoryDisabled(t *testing.T) {
	s := newTestServer(t, false, defaultServerConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/analyses", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, app.MsgHistoryDisabled, detail(t, rec))
}

func TestHistoryRoundTrip(t *testing.T) {
	s := newTestServer(t, true, defaultServerConfig())

	rec := serve(s, uploadRequest(t, "/analyze_dataset/", "file", "ventas.csv", sampleCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := rec.Header().Get("X-Analysis-ID")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/analyses?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Analyses []struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
		} `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Analyses, 1)
	assert.Equal(t, id, list.Analyses[0].ID)
	assert.Equal(t, "ventas.csv", list.Analyses[0].Filename)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/analyses/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var detailBody map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detailBody))
	assert.Contains(t, string(detailBody["report"]), `"metricas_basicas"`)
	assert.Contains(t, string(detailBody["result"]), `"observaciones"`)
	assert.NotContains(t, detailBody, "ReportJSON")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/analyses/"+id+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<table>")
}

func TestHistoryLookupErrors(t *testing.T) {
	s := newTestServer(t, true, defaultServerConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/analyses/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgInvalidID, detail(t, rec))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/analyses/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, sqlstore.MsgAnalysisNotFound, detail(t, rec))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, false, defaultServerConfig())
	req := httptest.NewRequest(http.MethodOptions, "/analyze_dataset/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := serve(s, req)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestUsageEndpoint(t *testing.T) {
	s := newTestServer(t, true, defaultServerConfig())
	s.gen.Usage = &ports.UsageData{PromptTokens: 90, CompletionTokens: 10, TotalTokens: 100, Model: "gemini-2.0-flash", Provider: "gemini"}

	for i := 0; i < 2; i++ {
		rec := serve(s, uploadRequest(t, "/analyze_dataset/", "file", "a.csv", sampleCSV))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/usage?days=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		TotalTokens  int `json:"total_tokens"`
		RequestCount int `json:"request_count"`
		ByModel      []struct {
			Model string `json:"model"`
		} `json:"by_model"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 200, summary.TotalTokens)
	assert.Equal(t, 2, summary.RequestCount)
	require.Len(t, summary.ByModel, 1)
	assert.Equal(t, "gemini-2.0-flash", summary.ByModel[0].Model)
}

func TestUsageWithoutHistory(t *testing.T) {
	s := newTestServer(t, false, defaultServerConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/usage", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, usage.MsgUsageUnavailable, detail(t, rec))
}
