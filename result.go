package optree

import "github.com/hupe1980/optree/engine"

// Status re-exports the engine's terminal classification.
type Status = engine.Status

// Terminal status values.
const (
	StatusUninitialized    = engine.StatusUninitialized
	StatusConverged        = engine.StatusConverged
	StatusTimeout          = engine.StatusTimeout
	StatusNonConvergence   = engine.StatusNonConvergence
	StatusFalseConvergence = engine.StatusFalseConvergence
)

// Result is the outcome of an optimization run.
type Result struct {
	// Model is a JSON array of the extracted optimal trees, empty when no
	// model could be extracted.
	Model string `json:"model"`
	// GraphSize is the number of vertices in the dependency graph.
	GraphSize uint64 `json:"graph_size"`
	// NIterations is the total number of worker iterations.
	NIterations uint64 `json:"n_iterations"`
	// LowerBound and UpperBound are the certified objective bounds.
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	// ModelLoss is the training loss of the first extracted model.
	ModelLoss float64 `json:"model_loss"`
	// TimeElapsed is the wall time of the run in seconds.
	TimeElapsed float64 `json:"time_elapsed"`
	// Status classifies how the run terminated.
	Status Status `json:"status"`
}
