package optree

import (
	"errors"
	"fmt"

	"github.com/hupe1980/optree/engine"
)

var (
	// ErrNoDataset is returned when Fit is called without a dataset.
	ErrNoDataset = errors.New("optree: dataset must not be nil")
)

// ErrWorkerAborted indicates that a worker stopped on a fatal integrity
// violation; the run is reported as non-convergent.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrWorkerAborted struct {
	Worker int
	cause  error
}

func (e *ErrWorkerAborted) Error() string {
	return fmt.Sprintf("optree: worker %d aborted: %v", e.Worker, e.cause)
}

func (e *ErrWorkerAborted) Unwrap() error { return e.cause }

// IsIntegrityViolation reports whether an error originated from a fatal
// optimizer inconsistency.
func IsIntegrityViolation(err error) bool {
	var iv *engine.IntegrityViolation
	return errors.As(err, &iv)
}
