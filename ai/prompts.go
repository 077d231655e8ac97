package ai

import (
	"bytes"
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"csvinsight/domain/analysis"
	"csvinsight/domain/dataset"
	"csvinsight/domain/metrics"
	"csvinsight/internal"
)

// AnalysisPrompt is the template used to interpret a metrics report
const AnalysisPrompt = "analisis_dataset"

// DefaultPreviewRows is how many leading rows are embedded in the prompt
const DefaultPreviewRows = 20

//go:embed prompts/*.txt
var builtinPrompts embed.FS

// PromptManager loads templates from an override directory, falling back
// to the ones compiled into the binary.
type PromptManager struct {
	PromptsDir  string
	PreviewRows int
	logger      *internal.Logger
}

// NewPromptManager creates a prompt manager; promptsDir may be empty
func NewPromptManager(promptsDir string) *PromptManager {
	pm := &PromptManager{
		PromptsDir:  promptsDir,
		PreviewRows: DefaultPreviewRows,
		logger:      internal.DefaultLogger.WithComponent("PromptManager"),
	}
	if promptsDir != "" {
		pm.logger.Info("Initialized with override directory: %s", promptsDir)
	}
	return pm
}

// LoadPrompt loads a prompt template by name
func (pm *PromptManager) LoadPrompt(name string) (string, error) {
	if pm.PromptsDir != "" {
		content, err := os.ReadFile(filepath.Join(pm.PromptsDir, name+".txt"))
		if err == nil {
			return string(content), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
		}
	}

	content, err := builtinPrompts.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("prompt template not found: %s", name)
	}
	return string(content), nil
}

// RenderPrompt replaces each {PLACEHOLDER} with its value in a single
// pass, so values containing braces are never expanded again.
func (pm *PromptManager) RenderPrompt(name string, replacements map[string]string) (string, error) {
	template, err := pm.LoadPrompt(name)
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", replacements[k])
	}
	return strings.NewReplacer(pairs...).Replace(template), nil
}

// RenderAnalysisPrompt embeds the report JSON and a dataset preview
func (pm *PromptManager) RenderAnalysisPrompt(filename string, report *metrics.Report, ds *dataset.Dataset) (string, error) {
	reportJSON, err := MarshalReport(report)
	if err != nil {
		return "", err
	}
	preview, rows := DatasetPreview(ds, pm.PreviewRows)

	return pm.RenderPrompt(AnalysisPrompt, map[string]string{
		"FILENAME":           filename,
		"METRICS_JSON":       string(reportJSON),
		"DATASET_PREVIEW":    preview,
		"PREVIEW_ROWS":       strconv.Itoa(rows),
		"MAX_OBSERVATIONS":   strconv.Itoa(analysis.MaxObservations),
		"MAX_SUGGESTIONS":    strconv.Itoa(analysis.MaxSuggestions),
		"MAX_TITLE_LENGTH":   strconv.Itoa(analysis.MaxTitleLength),
		"MAX_MESSAGE_LENGTH": strconv.Itoa(analysis.MaxMessageLength),
	})
}

// MarshalReport renders the report as indented JSON without HTML escaping
func MarshalReport(report *metrics.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return nil, fmt.Errorf("failed to encode metrics report: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DatasetPreview writes the header and up to maxRows rows as CSV and
// returns the number of data rows written.
func DatasetPreview(ds *dataset.Dataset, maxRows int) (string, int) {
	if ds == nil || ds.NumColumns() == 0 {
		return "", 0
	}
	rows := ds.Rows()
	if maxRows >= 0 && rows > maxRows {
		rows = maxRows
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, ds.NumColumns())
	for j, col := range ds.Columns {
		header[j] = col.Name
	}
	_ = w.Write(header)
	record := make([]string, ds.NumColumns())
	for i := 0; i < rows; i++ {
		for j, col := range ds.Columns {
			record[j] = col.Display(i)
		}
		_ = w.Write(record)
	}
	w.Flush()
	return strings.TrimRight(buf.String(), "\n"), rows
}
