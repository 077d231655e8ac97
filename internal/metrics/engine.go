package metrics

import (
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"csvinsight/domain/dataset"
	"csvinsight/domain/metrics"
	"csvinsight/internal"
)

// Engine computes a metrics report from a loaded dataset. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	sequential bool
	logger     *internal.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithSequential runs every profiler on the calling goroutine
func WithSequential() Option {
	return func(e *Engine) { e.sequential = true }
}

// WithLogger overrides the default logger
func WithLogger(l *internal.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine; profilers run concurrently unless
// WithSequential is given.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: internal.DefaultLogger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute partitions the dataset, runs every profiler and returns the
// normalized report. The dataset is never modified.
func (e *Engine) Compute(ds *dataset.Dataset) (*metrics.Report, error) {
	if ds == nil {
		return nil, errors.New("metrics: nil dataset")
	}
	start := time.Now()

	cls := Partition(ds)
	report := metrics.NewReport()
	report.Columns = metrics.ColumnSummary{
		Numeric:     cls.Numeric,
		Categorical: cls.Categorical,
		Datetime:    cls.Datetime,
	}

	// each task writes a distinct field of report
	tasks := []func() error{
		func() error {
			report.Basic = ProfileBasic(ds, cls)
			return nil
		},
		func() error {
			numeric, err := ProfileNumeric(ds, cls)
			if err != nil {
				return err
			}
			report.Numeric = numeric
			return nil
		},
		func() error {
			categorical, err := ProfileCategorical(ds, cls)
			if err != nil {
				return err
			}
			report.Categorical = categorical
			return nil
		},
		func() error {
			correlations, err := AnalyzeCorrelations(ds, cls)
			if err != nil {
				return err
			}
			report.Correlations = correlations
			return nil
		},
		func() error {
			report.Quality = DetectQualityIssues(ds)
			return nil
		},
	}

	if e.sequential {
		for _, task := range tasks {
			if err := task(); err != nil {
				return nil, err
			}
		}
	} else {
		var g errgroup.Group
		for _, task := range tasks {
			g.Go(task)
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	Normalize(report)

	e.logger.Debug("[MetricsEngine] %q: %d rows x %d columns profiled in %.2fms",
		ds.Name, ds.Rows(), ds.NumColumns(), float64(time.Since(start).Nanoseconds())/1e6)
	return report, nil
}
