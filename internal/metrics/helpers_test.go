package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"csvinsight/domain/dataset"
)

// num builds a numeric column; NaN entries are treated as missing
func num(name string, values ...float64) *dataset.Column {
	missing := make([]bool, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			missing[i] = true
			values[i] = 0
		}
	}
	return dataset.NewNumericColumn(name, values, missing)
}

// cat builds a categorical column; empty strings are treated as missing
func cat(name string, values ...string) *dataset.Column {
	missing := make([]bool, len(values))
	for i, v := range values {
		missing[i] = v == ""
	}
	return dataset.NewCategoricalColumn(name, values, missing)
}

func newDataset(t *testing.T, cols ...*dataset.Column) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New("test", cols...)
	require.NoError(t, err)
	return ds
}

var nan = math.NaN()
