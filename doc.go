// Package optree computes provably optimal sparse decision trees for
// binary-featured, multi-class classification under a regularized
// objective: the normalized misclassification cost plus a per-leaf
// penalty. A run returns the optimal trees together with a certified
// lower/upper bound pair on the objective.
//
// The search is a concurrent branch-and-bound over a dependency graph of
// subproblems keyed by row sets, driven by a priority queue of messages:
//
//	ds, _ := dataset.New(input, dataset.UnitCosts(2, rows), featureMap)
//	res, _ := optree.Fit(ctx, ds,
//		optree.WithRegularization(0.01),
//		optree.WithWorkerLimit(4),
//	)
//	fmt.Println(res.Status, res.Model)
package optree
