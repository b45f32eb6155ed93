package engine

import (
	"fmt"
	"math"

	"github.com/hupe1980/optree/config"
	"github.com/hupe1980/optree/dataset"
	"github.com/hupe1980/optree/internal/bitvec"
)

// epsilon is the tolerance used for all bound comparisons.
const epsilon = 1e-9

// Task is a subproblem of the optimization: the rows it captures, the
// features still live for splitting, and the objective bounds proven so far.
// A Task stored in the graph is mutated only while its vertex entry is held.
type Task struct {
	Capture  *bitvec.Vector
	Features *bitvec.Vector

	Support       float64
	Information   float64
	BaseObjective float64

	Lower float64
	Upper float64

	// GuaranteedLower tracks a provable lower bound when the reference
	// lower bound (which may overestimate) feeds Lower.
	GuaranteedLower float64

	LowerScope float64
	UpperScope float64
	Coverage   float64

	OptimalFeature int

	// Order records a feature reordering applied to this subproblem,
	// reserved for feature transforms. Empty means identity.
	Order []int
}

// NewTask initializes a subproblem from its capture and feature sets,
// classifying it as dead, leaf-only or splittable, and seeding the bounds
// from the capture set's summary statistics. The task takes ownership of
// both vectors; the work buffer is clobbered.
func NewTask(capture, features *bitvec.Vector, ds *dataset.Dataset, cfg *config.Config, work *bitvec.Vector) (Task, error) {
	t := Task{
		Capture:        capture,
		Features:       features,
		Support:        float64(capture.Count()) / float64(ds.NumRows()),
		LowerScope:     math.Inf(-1),
		UpperScope:     math.Inf(1),
		Coverage:       math.Inf(-1),
		OptimalFeature: -1,
	}

	terminal := capture.Count() <= 1 || features.Empty()

	stats := ds.SummaryStatistics(capture, work)
	t.Information = stats.Info

	lambda := cfg.Regularization
	// The base objective is the cost of the best single-leaf labeling. Any
	// improvement over it needs at least two leaves, hence the 2*lambda in
	// the provisional lower bound.
	t.BaseObjective = stats.MaxLoss + lambda
	lower := math.Min(t.BaseObjective, stats.MinLoss+2*lambda)
	t.GuaranteedLower = math.Min(t.BaseObjective, stats.GuaranteedMinLoss+2*lambda)

	switch {
	case 1.0-stats.MinLoss < lambda ||
		(stats.Potential < 2*lambda && 1.0-stats.MaxLoss < lambda):
		// Provably not part of any optimal tree.
		t.Lower = t.BaseObjective
		t.Upper = t.BaseObjective
		t.Features.Clear()
	case stats.MaxLoss-stats.MinLoss < lambda ||
		stats.Potential < 2*lambda ||
		terminal ||
		(cfg.DepthBudget != 0 && capture.DepthBudget() == 1):
		// Provably never an internal node of an optimal tree.
		t.Lower = t.BaseObjective
		t.Upper = t.BaseObjective
		t.Features.Clear()
	default:
		t.Lower = lower
		t.Upper = t.BaseObjective
	}

	if t.Lower > t.Upper {
		return Task{}, &IntegrityViolation{
			Op:     "Task",
			Reason: fmt.Sprintf("invalid lowerbound (%v) or upperbound (%v)", t.Lower, t.Upper),
		}
	}
	return t, nil
}

// Uncertainty returns the optimality gap of the subproblem.
func (t *Task) Uncertainty() float64 {
	return math.Max(0, t.Upper-t.Lower)
}

// GuaranteedLowerbound returns the provable lower bound: the tracked
// guaranteed value under the reference lower bound, Lower otherwise.
func (t *Task) GuaranteedLowerbound(cfg *config.Config) float64 {
	if cfg.ReferenceLB {
		return t.GuaranteedLower
	}
	return t.Lower
}

// ScopeTo grows the recorded scope window to include s. Zero is the unset
// sentinel and is ignored; negative scopes clamp to zero.
func (t *Task) ScopeTo(s float64) {
	if s == 0 {
		return
	}
	s = math.Max(0, s)
	if math.IsInf(t.UpperScope, 1) {
		t.UpperScope = s
	} else {
		t.UpperScope = math.Max(t.UpperScope, s)
	}
	if math.IsInf(t.LowerScope, -1) {
		t.LowerScope = s
	} else {
		t.LowerScope = math.Min(t.LowerScope, s)
	}
}

// PruneFeature removes a feature from the live set.
func (t *Task) PruneFeature(j int) {
	t.Features.Set(j, false)
}

// Update tightens the bounds and records the optimal feature, clamping the
// lower bound to never exceed the upper bound. With cancellation enabled a
// provably dead task collapses immediately, as does a gap within epsilon.
// It reports whether either bound moved.
func (t *Task) Update(cfg *config.Config, lower, upper float64, optimalFeature int) bool {
	prevLower, prevUpper := t.Lower, t.Upper
	t.Lower = math.Max(t.Lower, lower)
	t.Upper = math.Min(t.Upper, upper)
	t.Lower = math.Min(t.Lower, t.Upper)

	t.OptimalFeature = optimalFeature

	if (cfg.Cancellation && 1.0-t.Lower < 0) || t.Upper-t.Lower <= epsilon {
		t.Lower = t.Upper
	}
	return t.Lower != prevLower || t.Upper != prevUpper
}

// CreateChildren constructs the child subproblem for each live feature and
// sign into the neighbourhood slice at index 2*j (negative) and 2*j+1
// (positive). Features whose split leaves a side empty, or changes nothing,
// are pruned in place. The buffer must be row-sized scratch.
func (t *Task) CreateChildren(ds *dataset.Dataset, cfg *config.Config, neighbourhood []Task, buffer *bitvec.Vector) error {
	usingDepthBudget := t.Capture.DepthBudget() != 0
	work := bitvec.New(t.Capture.Size())

	for b, e := t.Features.NextRun(0, true); b < t.Features.Size(); b, e = t.Features.NextRun(e, true) {
		for j := b; j < e; j++ {
			skip := false
			for k := 0; k < 2; k++ {
				buffer.CopyFrom(t.Capture)
				ds.Subset(buffer, j, k == 1)
				if usingDepthBudget {
					buffer.SetDepthBudget(buffer.DepthBudget() - 1)
				}
				if buffer.Empty() || buffer.Equal(t.Capture) {
					skip = true
					continue
				}
				child, err := NewTask(buffer.Clone(), t.Features.Clone(), ds, cfg, work)
				if err != nil {
					return err
				}
				neighbourhood[2*j+k] = child
			}
			if skip {
				t.PruneFeature(j)
			}
		}
	}
	return nil
}
