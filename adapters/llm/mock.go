package llm

import (
	"context"
	"sync"

	"csvinsight/ports"
)

// mockAnalysis is a schema-valid reply used when no Response is set
const mockAnalysis = `{
  "observaciones": [
    {"tipo_de_reporte": "info", "titulo": "Respuesta simulada", "mensaje": "Proveedor mock activo; no se consultó ningún modelo."}
  ],
  "metricas": {
    "porcentaje_valores_faltantes": 0,
    "porcentaje_filas_duplicadas": 0,
    "salud_del_dataset": 100
  },
  "sugerencias": [
    {"tipo_de_reporte": "info", "titulo": "Configura un proveedor", "mensaje": "Define LLM_PROVIDER y su API key para obtener un análisis real."}
  ]
}`

// MockGenerator is a canned TextGenerator for tests and offline runs
type MockGenerator struct {
	Response string // Set this for testing
	Error    error  // Set this to simulate errors
	Usage    *ports.UsageData

	mu      sync.Mutex
	prompts []string
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (*ports.LLMResponse, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Error != nil {
		return nil, m.Error
	}
	content := m.Response
	if content == "" {
		content = mockAnalysis
	}
	usage := m.Usage
	if usage == nil {
		usage = &ports.UsageData{Model: "mock", Provider: "mock"}
	}
	return &ports.LLMResponse{Content: content, FinishReason: "STOP", Usage: usage}, nil
}

// Prompts returns every prompt received so far
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
