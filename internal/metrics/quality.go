package metrics

import (
	"fmt"
	"strings"

	"csvinsight/domain/dataset"
	"csvinsight/domain/metrics"
)

const (
	// HighMissingThreshold is the missing percentage above which a column is flagged
	HighMissingThreshold = 50.0
	// IdentifierUniqueRatio is the unique/present ratio above which a
	// categorical column looks like an identifier
	IdentifierUniqueRatio = 0.95
)

const (
	issueHighMissing      = "Alto porcentaje de valores faltantes (%.1f%%)"
	issueIdentifierLike   = "Posible columna identificadora (demasiados valores únicos)"
	issueCaseInconsistent = "Posibles inconsistencias en mayúsculas/minúsculas"
)

// DetectQualityIssues applies the per-column heuristics in dataset order.
// Columns without findings are left out.
func DetectQualityIssues(ds *dataset.Dataset) metrics.QualityReport {
	report := metrics.QualityReport{
		ColumnsWithIssues:  []metrics.ColumnIssues{},
		Inconsistencies:    []string{},
		SuspiciousPatterns: []string{},
	}
	rows := ds.Rows()
	for _, col := range ds.Columns {
		var issues []string

		if rows > 0 {
			missingPct := percentage(col.MissingCount(), rows)
			if missingPct > HighMissingThreshold {
				issues = append(issues, fmt.Sprintf(issueHighMissing, missingPct))
			}
		}

		if col.Kind == dataset.KindCategorical {
			present := col.PresentTexts()
			if len(present) > 0 {
				distinct := distinctValues(present)
				if float64(len(distinct))/float64(len(present)) > IdentifierUniqueRatio {
					issues = append(issues, issueIdentifierLike)
				}
				if hasCaseConflict(distinct) {
					issues = append(issues, issueCaseInconsistent)
				}
			}
		}

		if len(issues) > 0 {
			report.ColumnsWithIssues = append(report.ColumnsWithIssues, metrics.ColumnIssues{
				Column: col.Name,
				Issues: issues,
			})
		}
	}
	return report
}

func distinctValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// hasCaseConflict reports whether two distinct values share a lowercase form
func hasCaseConflict(distinct []string) bool {
	lowered := make(map[string]struct{}, len(distinct))
	for _, v := range distinct {
		l := strings.ToLower(v)
		if _, ok := lowered[l]; ok {
			return true
		}
		lowered[l] = struct{}{}
	}
	return false
}
