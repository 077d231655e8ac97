package metrics

import (
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"csvinsight/domain/dataset"
	"csvinsight/domain/metrics"
)

// TopValuesLimit caps the number of entries in a frequency distribution
const TopValuesLimit = 5

type valueCount struct {
	value string
	count int
}

// ProfileCategorical computes frequency statistics for every categorical
// column with at least one present value, keyed in column order.
func ProfileCategorical(ds *dataset.Dataset, cls Classification) (*orderedmap.OrderedMap[string, metrics.CategoricalStats], error) {
	out := orderedmap.New[string, metrics.CategoricalStats]()
	for _, name := range cls.Categorical {
		col, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("categorical column %q not found", name)
		}
		values := col.PresentTexts()
		if len(values) == 0 {
			continue
		}
		counts := valueCounts(values)

		top := orderedmap.New[string, int]()
		for i := 0; i < len(counts) && i < TopValuesLimit; i++ {
			top.Set(counts[i].value, counts[i].count)
		}
		out.Set(name, metrics.CategoricalStats{
			UniqueValues: len(counts),
			MostFrequent: counts[0].value,
			MaxFrequency: counts[0].count,
			TopValues:    top,
		})
	}
	return out, nil
}

// valueCounts returns distinct values by descending count. Ties keep the
// order in which values first appear.
func valueCounts(values []string) []valueCount {
	index := make(map[string]int)
	var counts []valueCount
	for _, v := range values {
		if i, ok := index[v]; ok {
			counts[i].count++
			continue
		}
		index[v] = len(counts)
		counts = append(counts, valueCount{value: v, count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].count > counts[j].count
	})
	return counts
}
