package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellKeyFoldsNegativeZero(t *testing.T) {
	col := NewNumericColumn("x", []float64{0, math.Copysign(0, -1), 1}, nil)

	assert.Equal(t, col.CellKey(0), col.CellKey(1))
	assert.NotEqual(t, col.CellKey(0), col.CellKey(2))
}

func TestCellKeyMissingCellsShareIdentity(t *testing.T) {
	col := NewCategoricalColumn("c", []string{"", "", "x"}, []bool{true, true, false})

	assert.Equal(t, col.CellKey(0), col.CellKey(1))
	assert.NotEqual(t, col.CellKey(0), col.CellKey(2))
}
