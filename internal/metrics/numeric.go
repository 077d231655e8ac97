package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"csvinsight/domain/dataset"
	"csvinsight/domain/metrics"
)

// StdDevDDOF is the delta degrees of freedom used for the standard
// deviation: 1 gives the sample estimator, 0 the population one.
const StdDevDDOF = 1

// OutlierIQRFactor scales the interquartile range into the outlier fences
const OutlierIQRFactor = 1.5

// ProfileNumeric computes distribution statistics for every numeric column
// with at least one present value, keyed in column order.
func ProfileNumeric(ds *dataset.Dataset, cls Classification) (*orderedmap.OrderedMap[string, metrics.NumericStats], error) {
	out := orderedmap.New[string, metrics.NumericStats]()
	for _, name := range cls.Numeric {
		col, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("numeric column %q not found", name)
		}
		values := col.PresentNumbers()
		if len(values) == 0 {
			continue
		}
		s, err := describe(values)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out.Set(name, s)
	}
	return out, nil
}

func describe(values []float64) (metrics.NumericStats, error) {
	var s metrics.NumericStats

	minVal, err := stats.Min(values)
	if err != nil {
		return s, fmt.Errorf("min: %w", err)
	}
	maxVal, err := stats.Max(values)
	if err != nil {
		return s, fmt.Errorf("max: %w", err)
	}
	mean, std := meanStdDev(values, StdDevDDOF)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	outliers := countOutliers(sorted)

	s.Mean = round(mean, 2)
	s.Median = round(quantileLinear(sorted, 0.5), 2)
	s.StdDev = round(std, 2)
	s.Min = round(minVal, 2)
	s.Max = round(maxVal, 2)
	s.Outliers = outliers
	s.OutlierPercentage = round(percentage(outliers, len(values)), 2)
	return s, nil
}

// meanStdDev runs Welford's update over values divided by their largest
// magnitude, so columns of large finite values cannot overflow the
// accumulators. Too few values for the estimator yields a deviation of 0.
func meanStdDev(values []float64, ddof int) (mean, std float64) {
	scale := 0.0
	for _, v := range values {
		if a := math.Abs(v); a > scale {
			scale = a
		}
	}
	if scale == 0 {
		return 0, 0
	}

	var m, m2 float64
	for i, v := range values {
		x := v / scale
		delta := x - m
		m += delta / float64(i+1)
		m2 += delta * (x - m)
	}

	mean = m * scale
	if len(values) > ddof {
		std = math.Sqrt(m2/float64(len(values)-ddof)) * scale
	}
	return mean, std
}

// countOutliers counts values strictly outside the Tukey fences of sorted
func countOutliers(sorted []float64) int {
	q1 := quantileLinear(sorted, 0.25)
	q3 := quantileLinear(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - OutlierIQRFactor*iqr
	upper := q3 + OutlierIQRFactor*iqr

	n := 0
	for _, v := range sorted {
		if v < lower || v > upper {
			n++
		}
	}
	return n
}
