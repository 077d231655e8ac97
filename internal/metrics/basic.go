package metrics

import (
	"math"
	"strconv"
	"strings"

	"csvinsight/domain/dataset"
	"csvinsight/domain/metrics"
)

// ProfileBasic computes dimensions, missing and duplicate rates, the health
// score and per-kind column counts.
func ProfileBasic(ds *dataset.Dataset, cls Classification) metrics.BasicMetrics {
	rows, cols := ds.Rows(), ds.NumColumns()

	missing := 0
	for _, col := range ds.Columns {
		missing += col.MissingCount()
	}
	duplicates := countDuplicateRows(ds)

	missingPct := round(percentage(missing, rows*cols), 2)
	duplicatePct := round(percentage(duplicates, rows), 2)

	return metrics.BasicMetrics{
		Dimensions:    metrics.Dimensions{Rows: rows, Columns: cols},
		MissingValues: metrics.CountWithPercentage{Total: missing, Percentage: missingPct},
		DuplicateRows: metrics.CountWithPercentage{Total: duplicates, Percentage: duplicatePct},
		HealthScore:   round(math.Max(0, 100-missingPct-duplicatePct), 2),
		ColumnTypes: metrics.TypeCounts{
			Numeric:     len(cls.Numeric),
			Categorical: len(cls.Categorical),
			Datetime:    len(cls.Datetime),
		},
	}
}

// countDuplicateRows counts rows identical in every cell to an earlier row
func countDuplicateRows(ds *dataset.Dataset) int {
	rows := ds.Rows()
	if rows == 0 || ds.NumColumns() == 0 {
		return 0
	}
	seen := make(map[string]struct{}, rows)
	duplicates := 0
	var b strings.Builder
	for i := 0; i < rows; i++ {
		b.Reset()
		for _, col := range ds.Columns {
			// length-prefixed so cell boundaries stay unambiguous
			key := col.CellKey(i)
			b.WriteString(strconv.Itoa(len(key)))
			b.WriteByte(':')
			b.WriteString(key)
		}
		k := b.String()
		if _, ok := seen[k]; ok {
			duplicates++
			continue
		}
		seen[k] = struct{}{}
	}
	return duplicates
}
