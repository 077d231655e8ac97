package ports

import (
	"csvinsight/domain/dataset"
	"csvinsight/domain/metrics"
)

// MetricsEngine computes the descriptive report for a loaded dataset
type MetricsEngine interface {
	Compute(ds *dataset.Dataset) (*metrics.Report, error)
}
