package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRows is returned when the input matrix has no rows.
	ErrNoRows = errors.New("dataset: input has no rows")
	// ErrNoFeatures is returned when the input matrix has no feature columns.
	ErrNoFeatures = errors.New("dataset: input has no feature columns")
	// ErrCostMatrixShape is returned when the cost matrix is not square.
	ErrCostMatrixShape = errors.New("dataset: cost matrix must be square")
	// ErrReferenceShape is returned when the reference matrix shape does not
	// match the dataset.
	ErrReferenceShape = errors.New("dataset: reference matrix shape mismatch")
	// ErrRowWithoutTarget is returned when a row has no target bit set.
	ErrRowWithoutTarget = errors.New("dataset: row has no target value")
)

// ErrFeatureNotMapped indicates a binarized feature index with no entry in
// the feature map.
type ErrFeatureNotMapped struct {
	Feature int
}

func (e *ErrFeatureNotMapped) Error() string {
	return fmt.Sprintf("dataset: binarized feature %d has no original feature in the feature map", e.Feature)
}
