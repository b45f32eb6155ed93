package engine

import (
	"github.com/hupe1980/optree/config"
	"github.com/hupe1980/optree/dataset"
	"github.com/hupe1980/optree/internal/bitvec"
)

// Greedy estimates the objective of a greedy information-gain tree over the
// whole dataset. The estimate is an upper bound on the optimal objective
// and can seed the upperbound guess.
func Greedy(ds *dataset.Dataset, cfg *config.Config) float64 {
	capture := bitvec.Full(ds.NumRows())
	features := bitvec.Full(ds.NumFeatures())
	work := bitvec.New(ds.NumRows())
	return greedyRisk(ds, cfg, capture, features, work)
}

func greedyRisk(ds *dataset.Dataset, cfg *config.Config, capture, features, work *bitvec.Vector) float64 {
	stats := ds.SummaryStatistics(capture, work)
	baseRisk := stats.MaxLoss + cfg.Regularization
	baseInfo := stats.Info

	lambda := cfg.Regularization
	if stats.MaxLoss-stats.MinLoss < lambda ||
		1.0-stats.MinLoss < lambda ||
		(stats.Potential < 2*lambda && 1.0-stats.MaxLoss < lambda) ||
		features.Empty() {
		return baseRisk
	}

	maximizer := -1
	gain := 0.0
	for b, e := features.NextRun(0, true); b < features.Size(); b, e = features.NextRun(e, true) {
		for j := b; j < e; j++ {
			left := capture.Clone()
			right := capture.Clone()
			ds.Subset(left, j, false)
			ds.Subset(right, j, true)
			if left.Empty() || right.Empty() {
				continue
			}

			leftInfo := ds.SummaryStatistics(left, work).Info
			rightInfo := ds.SummaryStatistics(right, work).Info
			if g := leftInfo + rightInfo - baseInfo; g > gain {
				maximizer = j
				gain = g
			}
		}
	}

	if maximizer == -1 {
		return baseRisk
	}

	left := capture.Clone()
	right := capture.Clone()
	ds.Subset(left, maximizer, false)
	ds.Subset(right, maximizer, true)
	risk := greedyRisk(ds, cfg, left, features, work) + greedyRisk(ds, cfg, right, features, work)
	if risk < baseRisk {
		return risk
	}
	return baseRisk
}
