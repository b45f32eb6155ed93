package dataset

import (
	"math"

	"github.com/hupe1980/optree/internal/bitvec"
)

// SummaryStatistics describes a capture set: the class distribution folded
// into the loss bounds that seed a subproblem.
type SummaryStatistics struct {
	// Info is the information content of the captured class distribution.
	Info float64
	// Potential is the maximum cost reduction attainable across predictions.
	Potential float64
	// MaxLoss is the loss of the best single-leaf classification.
	MaxLoss float64
	// GuaranteedMinLoss is the equivalent-points lower bound.
	GuaranteedMinLoss float64
	// MinLoss is the reference lower bound when a reference model is
	// attached; otherwise it equals GuaranteedMinLoss.
	MinLoss float64
	// Optimal is the cost-minimizing prediction, lowest index on ties.
	Optimal int
}

// SummaryStatistics computes the statistics of a capture set. The work
// buffer is clobbered; callers reuse a per-worker buffer sized to the row
// count.
func (ds *Dataset) SummaryStatistics(capture *bitvec.Vector, work *bitvec.Vector) SummaryStatistics {
	support := float64(capture.Count()) / float64(ds.nRows)

	distribution := make([]int, ds.nTargets)
	for t := 0; t < ds.nTargets; t++ {
		work.CopyFrom(capture)
		work.And(ds.colTargets[t])
		distribution[t] = work.Count()
	}

	maxLoss := math.Inf(1)
	optimal := 0
	for i := 0; i < ds.nTargets; i++ {
		cost := 0.0
		for j := 0; j < ds.nTargets; j++ {
			cost += ds.costs.At(i, j) * float64(distribution[j])
		}
		if cost < maxLoss {
			maxLoss = cost
			optimal = i
		}
	}

	guaranteedMinLoss := 0.0
	potential := 0.0
	info := 0.0
	for t := 0; t < ds.nTargets; t++ {
		potential += ds.diffCosts[t] * float64(distribution[t])

		// Captured majority points with label t keep their match cost.
		work.CopyFrom(capture)
		work.And(ds.majority)
		work.And(ds.colTargets[t])
		if n := work.Count(); n > 0 {
			guaranteedMinLoss += ds.matchCosts[t] * float64(n)
		}

		// Captured minority points with label t pay at least the cheapest
		// wrong prediction.
		work.CopyFrom(capture)
		work.AndNot(ds.majority)
		work.And(ds.colTargets[t])
		if n := work.Count(); n > 0 {
			guaranteedMinLoss += ds.mismatchCosts[t] * float64(n)
		}

		if distribution[t] > 0 {
			info += support * float64(distribution[t]) * (math.Log(float64(distribution[t])) - math.Log(support))
		}
	}

	// Floating point may push the equivalent-points bound slightly past the
	// single-leaf loss; clip to keep guaranteedMinLoss <= maxLoss.
	guaranteedMinLoss = math.Min(guaranteedMinLoss, maxLoss)

	minLoss := guaranteedMinLoss
	if ds.reference != nil {
		minLoss = 0
		for t := 0; t < ds.nTargets; t++ {
			work.CopyFrom(capture)
			work.And(ds.colTargets[t])
			work.And(ds.reference[t])
			if n := work.Count(); n > 0 {
				minLoss += ds.matchCosts[t] * float64(n)
			}

			work.CopyFrom(capture)
			work.And(ds.colTargets[t])
			work.AndNot(ds.reference[t])
			if n := work.Count(); n > 0 {
				minLoss += ds.mismatchCosts[t] * float64(n)
			}
		}
	}

	return SummaryStatistics{
		Info:              info,
		Potential:         potential,
		MaxLoss:           maxLoss,
		GuaranteedMinLoss: guaranteedMinLoss,
		MinLoss:           minLoss,
		Optimal:           optimal,
	}
}
