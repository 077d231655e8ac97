package metrics

import (
	"csvinsight/domain/dataset"
)

// Classification groups column names by profiled kind, in dataset order.
// Boolean and other columns belong to none of the groups.
type Classification struct {
	Numeric     []string
	Categorical []string
	Datetime    []string
}

// Partition classifies every column of ds by its resolved kind
func Partition(ds *dataset.Dataset) Classification {
	cls := Classification{
		Numeric:     []string{},
		Categorical: []string{},
		Datetime:    []string{},
	}
	for _, col := range ds.Columns {
		switch col.Kind {
		case dataset.KindNumeric:
			cls.Numeric = append(cls.Numeric, col.Name)
		case dataset.KindCategorical:
			cls.Categorical = append(cls.Categorical, col.Name)
		case dataset.KindDatetime:
			cls.Datetime = append(cls.Datetime, col.Name)
		}
	}
	return cls
}
