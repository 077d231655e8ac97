// Package report renders a metrics report for people: Markdown for the
// CLI and a standalone HTML page for the history endpoint.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"csvinsight/domain/metrics"
)

// Markdown renders r as a Markdown document with Spanish headings
func Markdown(r *metrics.Report) string {
	var b strings.Builder
	basic := r.Basic

	b.WriteString("# Reporte de métricas\n\n")

	b.WriteString("## Resumen\n\n")
	fmt.Fprintf(&b, "- Filas: %d\n", basic.Dimensions.Rows)
	fmt.Fprintf(&b, "- Columnas: %d\n", basic.Dimensions.Columns)
	fmt.Fprintf(&b, "- Valores faltantes: %d (%s%%)\n", basic.MissingValues.Total, num(basic.MissingValues.Percentage))
	fmt.Fprintf(&b, "- Filas duplicadas: %d (%s%%)\n", basic.DuplicateRows.Total, num(basic.DuplicateRows.Percentage))
	fmt.Fprintf(&b, "- Salud del dataset: %s/100\n", num(basic.HealthScore))
	fmt.Fprintf(&b, "- Tipos: %d numéricas, %d categóricas, %d fechas\n\n",
		basic.ColumnTypes.Numeric, basic.ColumnTypes.Categorical, basic.ColumnTypes.Datetime)

	if r.Numeric != nil && r.Numeric.Len() > 0 {
		b.WriteString("## Columnas numéricas\n\n")
		b.WriteString("| Columna | Media | Mediana | Desv. estándar | Mínimo | Máximo | Outliers |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
		for pair := r.Numeric.Oldest(); pair != nil; pair = pair.Next() {
			s := pair.Value
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %d (%s%%) |\n",
				escapeCell(pair.Key), num(s.Mean), num(s.Median), num(s.StdDev),
				num(s.Min), num(s.Max), s.Outliers, num(s.OutlierPercentage))
		}
		b.WriteString("\n")
	}

	if r.Categorical != nil && r.Categorical.Len() > 0 {
		b.WriteString("## Columnas categóricas\n\n")
		b.WriteString("| Columna | Valores únicos | Más frecuente | Frecuencia | Top 5 |\n")
		b.WriteString("|---|---:|---|---:|---|\n")
		for pair := r.Categorical.Oldest(); pair != nil; pair = pair.Next() {
			s := pair.Value
			fmt.Fprintf(&b, "| %s | %d | %s | %d | %s |\n",
				escapeCell(pair.Key), s.UniqueValues, escapeCell(s.MostFrequent), s.MaxFrequency, topValues(s))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Correlaciones fuertes\n\n")
	if len(r.Correlations.Strong) == 0 {
		b.WriteString("Sin correlaciones fuertes (|r| > 0.7).\n\n")
	} else {
		b.WriteString("| Variables | Correlación | Tipo |\n")
		b.WriteString("|---|---:|---|\n")
		for _, c := range r.Correlations.Strong {
			fmt.Fprintf(&b, "| %s / %s | %s | %s |\n",
				escapeCell(c.Variables[0]), escapeCell(c.Variables[1]), num(c.Coefficient), c.Type)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Calidad de datos\n\n")
	if len(r.Quality.ColumnsWithIssues) == 0 {
		b.WriteString("No se detectaron problemas por columna.\n")
	} else {
		for _, issue := range r.Quality.ColumnsWithIssues {
			fmt.Fprintf(&b, "- **%s**: %s\n", escapeCell(issue.Column), escapeCell(strings.Join(issue.Issues, "; ")))
		}
	}
	return b.String()
}

// HTML renders r as a complete HTML page
func HTML(r *metrics.Report, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables | parser.NoEmptyLineBeforeBlock)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage | html.SkipHTML,
	})
	return markdown.ToHTML([]byte(Markdown(r)), p, renderer)
}

func topValues(s metrics.CategoricalStats) string {
	if s.TopValues == nil {
		return ""
	}
	parts := make([]string, 0, s.TopValues.Len())
	for pair := s.TopValues.Oldest(); pair != nil; pair = pair.Next() {
		parts = append(parts, fmt.Sprintf("%s: %d", escapeCell(pair.Key), pair.Value))
	}
	return strings.Join(parts, ", ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var cellEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"\r\n", " ",
	"\n", " ",
)

// escapeCell keeps user-supplied text from breaking table rows or being
// read as markup
func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
