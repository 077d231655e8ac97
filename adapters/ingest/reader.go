package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"csvinsight/domain/dataset"
	"csvinsight/internal"
	"csvinsight/internal/errors"
)

// User-facing messages returned for rejected uploads
const (
	MsgUnsupportedType = "Tipo de archivo no soportado. Por favor, sube un archivo .csv o .xlsx"
	MsgEmptyFile       = "El archivo está vacío o no contiene datos."
	MsgMalformedFile   = "No se pudo leer el archivo. Verifica que el formato sea válido."
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader loads CSV and XLSX uploads into typed datasets
type Reader struct {
	coercer *Coercer
	logger  *internal.Logger
}

// NewReader creates a reader; parseDates enables datetime detection for CSV
func NewReader(parseDates bool) *Reader {
	return &Reader{
		coercer: NewCoercer(parseDates),
		logger:  internal.DefaultLogger.WithComponent("Ingest"),
	}
}

// Read dispatches on the file extension
func (r *Reader) Read(filename string, content []byte) (*dataset.Dataset, error) {
	start := time.Now()
	ext := strings.ToLower(filepath.Ext(filename))

	var (
		headers []string
		rows    [][]string
		err     error
		coercer = r.coercer
	)
	switch ext {
	case ".csv":
		headers, rows, err = r.readCSV(content)
	case ".xlsx":
		headers, rows, err = r.readXLSX(content)
		// spreadsheet cells carry explicit date formats
		coercer = NewCoercer(true)
	default:
		return nil, errors.InvalidInput(MsgUnsupportedType)
	}
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 || len(rows) == 0 {
		return nil, errors.InvalidInput(MsgEmptyFile)
	}

	ds, err := buildDataset(filename, headers, rows, coercer)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(MsgMalformedFile), err.Error())
	}
	r.logger.Info("%s loaded (%d rows, %d columns) in %.2fms",
		filename, ds.Rows(), ds.NumColumns(), float64(time.Since(start).Nanoseconds())/1e6)
	return ds, nil
}

// readCSV decodes UTF-8, falling back to ISO-8859-1 for invalid input
func (r *Reader) readCSV(content []byte) ([]string, [][]string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil, errors.InvalidInput(MsgEmptyFile)
	}

	var src io.Reader = bytes.NewReader(content)
	if !utf8.Valid(content) {
		r.logger.Debug("content is not valid UTF-8, decoding as latin1")
		src = transform.NewReader(src, charmap.ISO8859_1.NewDecoder())
	}
	decoded, err := io.ReadAll(src)
	if err != nil {
		return nil, nil, errors.Wrap(errors.InvalidInput(MsgMalformedFile), err.Error())
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = sniffDelimiter(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(errors.InvalidInput(MsgMalformedFile), err.Error())
	}
	if len(records) == 0 {
		return nil, nil, errors.InvalidInput(MsgEmptyFile)
	}
	return records[0], records[1:], nil
}

// readXLSX reads the first worksheet of the workbook
func (r *Reader) readXLSX(content []byte) ([]string, [][]string, error) {
	if mt := mimetype.Detect(content); !mt.Is(xlsxMIME) && !mt.Is("application/zip") {
		r.logger.Warn("upload with .xlsx extension detected as %s", mt.String())
		return nil, nil, errors.InvalidInput(MsgUnsupportedType)
	}

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, errors.Wrap(errors.InvalidInput(MsgMalformedFile), err.Error())
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.InvalidInput(MsgEmptyFile)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, errors.Wrapf(errors.InvalidInput(MsgMalformedFile), "sheet %s: %v", sheets[0], err)
	}
	if len(rows) == 0 || isBlank(rows[0]) {
		return nil, nil, errors.InvalidInput(MsgEmptyFile)
	}
	return rows[0], rows[1:], nil
}

// buildDataset aligns every row to the header width and coerces columns
func buildDataset(name string, headers []string, rows [][]string, coercer *Coercer) (*dataset.Dataset, error) {
	names := uniqueHeaders(headers)
	width := len(names)

	cells := make([][]string, width)
	for j := range cells {
		cells[j] = make([]string, len(rows))
	}
	for i, row := range rows {
		if len(row) > width {
			for _, extra := range row[width:] {
				if strings.TrimSpace(extra) != "" {
					return nil, fmt.Errorf("row %d has %d fields, header has %d", i+2, len(row), width)
				}
			}
		}
		for j := 0; j < width && j < len(row); j++ {
			cells[j][i] = row[j]
		}
	}

	columns := make([]*dataset.Column, width)
	for j, col := range names {
		columns[j] = coercer.Coerce(col, cells[j])
	}
	return dataset.New(name, columns...)
}

// uniqueHeaders names blank headers "Unnamed: i" and suffixes repeats
// with .1, .2, ...
func uniqueHeaders(headers []string) []string {
	out := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := h
		for k := 1; used[candidate]; k++ {
			candidate = fmt.Sprintf("%s.%d", h, k)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// sniffDelimiter picks the candidate occurring most often in the header line
func sniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
