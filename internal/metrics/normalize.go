package metrics

import (
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"csvinsight/domain/metrics"
)

// Normalize makes a report safe for JSON: non-finite numbers become 0 and
// absent containers become empty ones. It mutates r in place.
func Normalize(r *metrics.Report) {
	b := &r.Basic
	b.MissingValues.Percentage = finite(b.MissingValues.Percentage)
	b.DuplicateRows.Percentage = finite(b.DuplicateRows.Percentage)
	b.HealthScore = finite(b.HealthScore)

	if r.Numeric == nil {
		r.Numeric = orderedmap.New[string, metrics.NumericStats]()
	}
	for pair := r.Numeric.Oldest(); pair != nil; pair = pair.Next() {
		s := pair.Value
		s.Mean = finite(s.Mean)
		s.Median = finite(s.Median)
		s.StdDev = finite(s.StdDev)
		s.Min = finite(s.Min)
		s.Max = finite(s.Max)
		s.OutlierPercentage = finite(s.OutlierPercentage)
		pair.Value = s
	}

	if r.Categorical == nil {
		r.Categorical = orderedmap.New[string, metrics.CategoricalStats]()
	}
	for pair := r.Categorical.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.TopValues == nil {
			s := pair.Value
			s.TopValues = orderedmap.New[string, int]()
			pair.Value = s
		}
	}

	if r.Correlations.Strong == nil {
		r.Correlations.Strong = []metrics.StrongCorrelation{}
	}
	for i := range r.Correlations.Strong {
		r.Correlations.Strong[i].Coefficient = finite(r.Correlations.Strong[i].Coefficient)
	}
	r.Correlations.Total = len(r.Correlations.Strong)

	q := &r.Quality
	if q.ColumnsWithIssues == nil {
		q.ColumnsWithIssues = []metrics.ColumnIssues{}
	}
	for i := range q.ColumnsWithIssues {
		if q.ColumnsWithIssues[i].Issues == nil {
			q.ColumnsWithIssues[i].Issues = []string{}
		}
	}
	q.Inconsistencies = emptyIfNil(q.Inconsistencies)
	q.SuspiciousPatterns = emptyIfNil(q.SuspiciousPatterns)

	r.Columns.Numeric = emptyIfNil(r.Columns.Numeric)
	r.Columns.Categorical = emptyIfNil(r.Columns.Categorical)
	r.Columns.Datetime = emptyIfNil(r.Columns.Datetime)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
