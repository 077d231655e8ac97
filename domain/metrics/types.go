package metrics

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Report is the full metrics document produced for one dataset.
// Field tags are the wire contract consumed by the prompt and the API.
type Report struct {
	Basic        BasicMetrics                                     `json:"metricas_basicas"`
	Numeric      *orderedmap.OrderedMap[string, NumericStats]     `json:"metricas_numericas"`
	Categorical  *orderedmap.OrderedMap[string, CategoricalStats] `json:"metricas_categoricas"`
	Correlations CorrelationSummary                               `json:"correlaciones"`
	Quality      QualityReport                                    `json:"calidad_datos"`
	Columns      ColumnSummary                                    `json:"resumen_columnas"`
}

// NewReport returns a report with every container initialized and empty
func NewReport() *Report {
	return &Report{
		Numeric:      orderedmap.New[string, NumericStats](),
		Categorical:  orderedmap.New[string, CategoricalStats](),
		Correlations: CorrelationSummary{Strong: []StrongCorrelation{}},
		Quality: QualityReport{
			ColumnsWithIssues:  []ColumnIssues{},
			Inconsistencies:    []string{},
			SuspiciousPatterns: []string{},
		},
		Columns: ColumnSummary{Numeric: []string{}, Categorical: []string{}, Datetime: []string{}},
	}
}

type Dimensions struct {
	Rows    int `json:"filas"`
	Columns int `json:"columnas"`
}

// CountWithPercentage pairs an absolute count with its rounded share
type CountWithPercentage struct {
	Total      int     `json:"total"`
	Percentage float64 `json:"porcentaje"`
}

type TypeCounts struct {
	Numeric     int `json:"numericas"`
	Categorical int `json:"categoricas"`
	Datetime    int `json:"fechas"`
}

// BasicMetrics holds dataset-wide counts and the health score
type BasicMetrics struct {
	Dimensions    Dimensions          `json:"dimensiones"`
	MissingValues CountWithPercentage `json:"valores_faltantes"`
	DuplicateRows CountWithPercentage `json:"filas_duplicadas"`
	HealthScore   float64             `json:"salud_dataset"`
	ColumnTypes   TypeCounts          `json:"tipos_columnas"`
}

// NumericStats describes the distribution of one numeric column
type NumericStats struct {
	Mean              float64 `json:"media"`
	Median            float64 `json:"mediana"`
	StdDev            float64 `json:"desviacion_estandar"`
	Min               float64 `json:"minimo"`
	Max               float64 `json:"maximo"`
	Outliers          int     `json:"outliers"`
	OutlierPercentage float64 `json:"porcentaje_outliers"`
}

// CategoricalStats describes the value frequencies of one text column
type CategoricalStats struct {
	UniqueValues int                                 `json:"valores_unicos"`
	MostFrequent string                              `json:"valor_mas_frecuente"`
	MaxFrequency int                                 `json:"frecuencia_maxima"`
	TopValues    *orderedmap.OrderedMap[string, int] `json:"distribucion_top5"`
}

// CorrelationType labels the sign of a strong correlation
type CorrelationType string

const (
	CorrelationPositive CorrelationType = "positiva"
	CorrelationNegative CorrelationType = "negativa"
)

type StrongCorrelation struct {
	Variables   [2]string       `json:"variables"`
	Coefficient float64         `json:"correlacion"`
	Type        CorrelationType `json:"tipo"`
}

type CorrelationSummary struct {
	Strong []StrongCorrelation `json:"correlaciones_fuertes"`
	Total  int                 `json:"total_correlaciones_fuertes"`
}

// ColumnIssues lists the heuristic problems found in one column
type ColumnIssues struct {
	Column string   `json:"columna"`
	Issues []string `json:"problemas"`
}

// QualityReport carries per-column issues. The two trailing lists are
// reserved and currently always empty.
type QualityReport struct {
	ColumnsWithIssues  []ColumnIssues `json:"columnas_con_problemas"`
	Inconsistencies    []string       `json:"inconsistencias"`
	SuspiciousPatterns []string       `json:"patrones_sospechosos"`
}

// ColumnSummary lists column names per profiled kind
type ColumnSummary struct {
	Numeric     []string `json:"numericas"`
	Categorical []string `json:"categoricas"`
	Datetime    []string `json:"fechas"`
}
