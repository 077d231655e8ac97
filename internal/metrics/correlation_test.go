package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvinsight/domain/metrics"
)

// correlatedPair returns two series whose Pearson coefficient is r
func correlatedPair(r float64) ([]float64, []float64) {
	x := []float64{1, 2, 3, 4}
	centered := []float64{-1.5, -0.5, 0.5, 1.5}
	orthogonal := []float64{1, -1, -1, 1}
	sign := 1.0
	if r < 0 {
		sign = -1
	}
	beta := math.Sqrt((5/(r*r) - 5) / 4)
	y := make([]float64, len(x))
	for i := range x {
		y[i] = sign*centered[i] + beta*orthogonal[i]
	}
	return x, y
}

func TestAnalyzeCorrelationsThreshold(t *testing.T) {
	tests := []struct {
		name     string
		r        float64
		wantKind metrics.CorrelationType
		want     bool
	}{
		{"moderate positive is ignored", 0.65, "", false},
		{"strong positive", 0.75, metrics.CorrelationPositive, true},
		{"strong negative", -0.9, metrics.CorrelationNegative, true},
		{"moderate negative is ignored", -0.6, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := correlatedPair(tt.r)
			ds := newDataset(t, num("x", x...), num("y", y...))

			got, err := AnalyzeCorrelations(ds, Partition(ds))
			require.NoError(t, err)

			if !tt.want {
				assert.Empty(t, got.Strong)
				assert.Equal(t, 0, got.Total)
				return
			}
			require.Len(t, got.Strong, 1)
			assert.Equal(t, [2]string{"x", "y"}, got.Strong[0].Variables)
			assert.Equal(t, tt.r, got.Strong[0].Coefficient)
			assert.Equal(t, tt.wantKind, got.Strong[0].Type)
			assert.Equal(t, 1, got.Total)
		})
	}
}

func TestAnalyzeCorrelationsRoundsToThreeDecimals(t *testing.T) {
	x, y := correlatedPair(0.87654)
	ds := newDataset(t, num("x", x...), num("y", y...))

	got, err := AnalyzeCorrelations(ds, Partition(ds))
	require.NoError(t, err)

	require.Len(t, got.Strong, 1)
	assert.Equal(t, 0.877, got.Strong[0].Coefficient)
}

func TestAnalyzeCorrelationsSkipsDegeneratePairs(t *testing.T) {
	ds := newDataset(t,
		num("a", 1, 2, 3, 4),
		num("constant", 5, 5, 5, 5),
		num("sparse", nan, nan, nan, 8),
	)

	got, err := AnalyzeCorrelations(ds, Partition(ds))
	require.NoError(t, err)

	assert.NotNil(t, got.Strong)
	assert.Empty(t, got.Strong)
}

func TestAnalyzeCorrelationsUsesPairwiseCompleteRows(t *testing.T) {
	ds := newDataset(t,
		num("a", 1, 2, nan, 4, 5),
		num("b", 2, 4, 100, 8, nan),
	)

	got, err := AnalyzeCorrelations(ds, Partition(ds))
	require.NoError(t, err)

	require.Len(t, got.Strong, 1)
	assert.Equal(t, 1.0, got.Strong[0].Coefficient)
}

func TestAnalyzeCorrelationsNeedsTwoNumericColumns(t *testing.T) {
	ds := newDataset(t, num("only", 1, 2, 3), cat("c", "a", "b", "c"))

	got, err := AnalyzeCorrelations(ds, Partition(ds))
	require.NoError(t, err)

	assert.Equal(t, []metrics.StrongCorrelation{}, got.Strong)
	assert.Equal(t, 0, got.Total)
}
