package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Limits on the model-generated result
const (
	MaxObservations  = 10
	MaxSuggestions   = 4
	MaxTitleLength   = 50
	MaxMessageLength = 100
)

// Result is the validated document returned to clients
type Result struct {
	Observations []Item     `json:"observaciones" validate:"required,max=10,dive"`
	Metrics      KeyMetrics `json:"metricas"`
	Suggestions  []Item     `json:"sugerencias" validate:"required,max=4,dive"`
}

// Item is one observation or suggestion
type Item struct {
	ReportType string `json:"tipo_de_reporte" validate:"required"`
	Title      string `json:"titulo" validate:"required,max=50"`
	Message    string `json:"mensaje" validate:"required,max=100"`
}

// KeyMetrics are the three headline scores, each an integer in [0, 100]
type KeyMetrics struct {
	MissingPercentage   *Percent `json:"porcentaje_valores_faltantes" validate:"required,min=0,max=100"`
	DuplicatePercentage *Percent `json:"porcentaje_filas_duplicadas" validate:"required,min=0,max=100"`
	HealthScore         *Percent `json:"salud_del_dataset" validate:"required,min=0,max=100"`
}

// Percent is an integer score. It also accepts integral floats (15.0) and
// numeric strings ("15"), which models emit now and then.
type Percent int

// NewPercent returns a pointer to p
func NewPercent(p int) *Percent {
	v := Percent(p)
	return &v
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("percentage must not be null")
	}
	text := string(data)
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("percentage %s is not a number", data)
	}
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("percentage %s is not an integer", data)
	}
	*p = Percent(int(f))
	return nil
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(p))
}
