package dataset

import (
	"fmt"
	"strconv"
	"time"
)

// ColumnKind is the semantic type a column was resolved to at load time
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
	KindDatetime    ColumnKind = "datetime"
	KindBoolean     ColumnKind = "boolean"
	KindOther       ColumnKind = "other"
)

// missingKey is the cell identity shared by every missing value, so two
// rows with gaps in the same places still compare equal.
const missingKey = "\x00<missing>"

// Column is a named, typed vector. Exactly one payload slice is populated,
// selected by Kind; Missing marks absent cells in any kind.
type Column struct {
	Name    string
	Kind    ColumnKind
	Numbers []float64
	Texts   []string
	Times   []time.Time
	Bools   []bool
	Missing []bool
}

// NewNumericColumn builds a numeric column. A nil mask means nothing is missing.
func NewNumericColumn(name string, values []float64, missing []bool) *Column {
	return &Column{Name: name, Kind: KindNumeric, Numbers: values, Missing: normalizeMask(missing, len(values))}
}

// NewCategoricalColumn builds a text column.
func NewCategoricalColumn(name string, values []string, missing []bool) *Column {
	return &Column{Name: name, Kind: KindCategorical, Texts: values, Missing: normalizeMask(missing, len(values))}
}

// NewDatetimeColumn builds a timestamp column.
func NewDatetimeColumn(name string, values []time.Time, missing []bool) *Column {
	return &Column{Name: name, Kind: KindDatetime, Times: values, Missing: normalizeMask(missing, len(values))}
}

// NewBooleanColumn builds a boolean column.
func NewBooleanColumn(name string, values []bool, missing []bool) *Column {
	return &Column{Name: name, Kind: KindBoolean, Bools: values, Missing: normalizeMask(missing, len(values))}
}

// NewOtherColumn keeps raw text for columns that fit no profiled kind.
func NewOtherColumn(name string, values []string, missing []bool) *Column {
	return &Column{Name: name, Kind: KindOther, Texts: values, Missing: normalizeMask(missing, len(values))}
}

func normalizeMask(missing []bool, n int) []bool {
	if len(missing) == n {
		return missing
	}
	mask := make([]bool, n)
	copy(mask, missing)
	return mask
}

// Len returns the number of cells in the column
func (c *Column) Len() int {
	switch c.Kind {
	case KindNumeric:
		return len(c.Numbers)
	case KindDatetime:
		return len(c.Times)
	case KindBoolean:
		return len(c.Bools)
	default:
		return len(c.Texts)
	}
}

// IsMissing reports whether cell i is absent
func (c *Column) IsMissing(i int) bool {
	return c.Missing[i]
}

// MissingCount returns the number of absent cells
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// PresentNumbers returns the non-missing numeric values in row order.
func (c *Column) PresentNumbers() []float64 {
	out := make([]float64, 0, len(c.Numbers))
	for i, v := range c.Numbers {
		if !c.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// PresentTexts returns the non-missing text values in row order.
func (c *Column) PresentTexts() []string {
	out := make([]string, 0, len(c.Texts))
	for i, v := range c.Texts {
		if !c.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// CellKey returns a canonical string identity for cell i.
func (c *Column) CellKey(i int) string {
	if c.Missing[i] {
		return missingKey
	}
	switch c.Kind {
	case KindNumeric:
		v := c.Numbers[i]
		if v == 0 {
			v = 0 // folds -0 into 0
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case KindDatetime:
		return c.Times[i].UTC().Format(time.RFC3339Nano)
	case KindBoolean:
		return strconv.FormatBool(c.Bools[i])
	default:
		return c.Texts[i]
	}
}

// Display renders cell i for humans; missing cells render empty
func (c *Column) Display(i int) string {
	if c.Missing[i] {
		return ""
	}
	switch c.Kind {
	case KindNumeric:
		return strconv.FormatFloat(c.Numbers[i], 'f', -1, 64)
	case KindDatetime:
		t := c.Times[i]
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	default:
		return c.CellKey(i)
	}
}

// Dataset is an ordered collection of equally long columns
type Dataset struct {
	Name    string
	Columns []*Column
}

// New validates the columns and builds a dataset
func New(name string, columns ...*Column) (*Dataset, error) {
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		if col == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		seen[col.Name] = true
		if col.Len() != columns[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), columns[0].Len())
		}
		if len(col.Missing) != col.Len() {
			return nil, fmt.Errorf("column %q missing mask has %d entries, expected %d", col.Name, len(col.Missing), col.Len())
		}
	}
	return &Dataset{Name: name, Columns: columns}, nil
}

// Rows returns the row count (0 when there are no columns)
func (d *Dataset) Rows() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return d.Columns[0].Len()
}

// NumColumns returns the column count
func (d *Dataset) NumColumns() int {
	return len(d.Columns)
}

// Column looks up a column by name
func (d *Dataset) Column(name string) (*Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
