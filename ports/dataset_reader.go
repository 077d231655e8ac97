package ports

import (
	"csvinsight/domain/dataset"
)

// DatasetReader decodes an uploaded file into a typed dataset
type DatasetReader interface {
	Read(filename string, content []byte) (*dataset.Dataset, error)
}
