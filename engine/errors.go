package engine

import "fmt"

// IntegrityViolation is a fatal inconsistency detected during optimization,
// such as a lower bound exceeding its upper bound after initialization. A
// worker that hits one records the non-convergent status and stops; the
// remaining workers observe the flag at their next iterate boundary.
type IntegrityViolation struct {
	Op     string
	Reason string
}

func (e *IntegrityViolation) Error() string {
	return fmt.Sprintf("engine: integrity violation in %s: %s", e.Op, e.Reason)
}
