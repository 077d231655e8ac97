package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"csvinsight/domain/dataset"
	"csvinsight/domain/metrics"
)

// StrongCorrelationThreshold is the exclusive lower bound on |r| for a
// pair to be reported.
const StrongCorrelationThreshold = 0.7

// AnalyzeCorrelations reports every numeric column pair whose Pearson
// coefficient over pairwise-complete rows exceeds the threshold.
func AnalyzeCorrelations(ds *dataset.Dataset, cls Classification) (metrics.CorrelationSummary, error) {
	summary := metrics.CorrelationSummary{Strong: []metrics.StrongCorrelation{}}
	if len(cls.Numeric) < 2 {
		return summary, nil
	}

	cols := make([]*dataset.Column, len(cls.Numeric))
	for i, name := range cls.Numeric {
		col, ok := ds.Column(name)
		if !ok {
			return summary, fmt.Errorf("numeric column %q not found", name)
		}
		cols[i] = col
	}

	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			r := pearson(cols[i], cols[j])
			if math.IsNaN(r) || math.Abs(r) <= StrongCorrelationThreshold {
				continue
			}
			kind := metrics.CorrelationNegative
			if r > 0 {
				kind = metrics.CorrelationPositive
			}
			summary.Strong = append(summary.Strong, metrics.StrongCorrelation{
				Variables:   [2]string{cols[i].Name, cols[j].Name},
				Coefficient: round(r, 3),
				Type:        kind,
			})
		}
	}
	summary.Total = len(summary.Strong)
	return summary, nil
}

// pearson returns NaN when fewer than two complete pairs exist or either
// side has zero variance.
func pearson(a, b *dataset.Column) float64 {
	xs := make([]float64, 0, a.Len())
	ys := make([]float64, 0, a.Len())
	for k := 0; k < a.Len(); k++ {
		if a.IsMissing(k) || b.IsMissing(k) {
			continue
		}
		xs = append(xs, a.Numbers[k])
		ys = append(ys, b.Numbers[k])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}
