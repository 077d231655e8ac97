package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"csvinsight/domain/dataset"
)

// naTokens are the cell values read as missing, matching the defaults of
// common dataframe readers.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// timestampLayouts are tried in order before falling back to dateparse
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02-Jan-2006",
}

// IsMissing reports whether a raw cell counts as absent
func IsMissing(raw string) bool {
	_, ok := naTokens[strings.TrimSpace(raw)]
	return ok
}

// Coercer resolves the kind of a raw text column. Resolution is all or
// nothing: a column is numeric only if every present cell is a number.
type Coercer struct {
	ParseDates bool
}

// NewCoercer creates a coercer; parseDates enables datetime detection
func NewCoercer(parseDates bool) *Coercer {
	return &Coercer{ParseDates: parseDates}
}

// Coerce builds a typed column from raw cells. Text columns keep their
// cells verbatim; surrounding blanks only matter for type detection.
func (c *Coercer) Coerce(name string, raw []string) *dataset.Column {
	n := len(raw)
	missing := make([]bool, n)
	values := make([]string, n)
	present := 0
	for i, cell := range raw {
		if IsMissing(cell) {
			missing[i] = true
			continue
		}
		values[i] = cell
		present++
	}

	if numbers, ok := c.asNumbers(values, missing); ok {
		return dataset.NewNumericColumn(name, numbers, missing)
	}
	if present == n {
		if bools, ok := c.asBools(values); ok {
			return dataset.NewBooleanColumn(name, bools, missing)
		}
	}
	if c.ParseDates {
		if times, ok := c.asTimes(values, missing); ok {
			return dataset.NewDatetimeColumn(name, times, missing)
		}
	}
	return dataset.NewCategoricalColumn(name, values, missing)
}

func (c *Coercer) asNumbers(values []string, missing []bool) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		if missing[i] {
			continue
		}
		f, ok := parseNumber(strings.TrimSpace(v))
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func (c *Coercer) asBools(values []string) ([]bool, bool) {
	out := make([]bool, len(values))
	for i, v := range values {
		b, ok := parseBool(strings.TrimSpace(v))
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

func (c *Coercer) asTimes(values []string, missing []bool) ([]time.Time, bool) {
	out := make([]time.Time, len(values))
	found := false
	for i, v := range values {
		if missing[i] {
			continue
		}
		t, ok := parseTimestamp(strings.TrimSpace(v))
		if !ok {
			return nil, false
		}
		out[i] = t
		found = true
	}
	return out, found
}

// parseNumber accepts plain decimal or scientific notation. Infinities,
// NaN and hexadecimal forms are rejected.
func parseNumber(s string) (float64, bool) {
	unsigned := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X") || strings.Contains(s, "_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := dateparse.ParseStrict(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
