package engine

import (
	"sort"

	"github.com/hupe1980/optree/internal/bitvec"
	"github.com/hupe1980/optree/model"
)

// modelSet accumulates extracted models, deduplicated by their induced leaf
// partition and capped at the configured model limit.
type modelSet struct {
	limit  int
	seen   map[string]struct{}
	models []*model.Model
}

func newModelSet(limit int) *modelSet {
	return &modelSet{limit: limit, seen: make(map[string]struct{})}
}

func (s *modelSet) full() bool {
	return s.limit > 0 && len(s.models) >= s.limit
}

func (s *modelSet) add(m *model.Model) {
	if s.full() {
		return
	}
	sig := m.Signature()
	if _, ok := s.seen[sig]; ok {
		return
	}
	s.seen[sig] = struct{}{}
	s.models = append(s.models, m)
}

// Models reconstructs all optimal trees from the converged graph, starting
// at the root vertex. With a non-zero optimality gap the result contains
// only models within the gap, and may miss the optimum. A model limit of
// zero extracts nothing.
func (o *Optimizer) Models() []*model.Model {
	if o.cfg.ModelLimit == 0 {
		return nil
	}
	rootPtr := o.rootKey.Load()
	if rootPtr == nil {
		return nil
	}

	out := newModelSet(int(o.cfg.ModelLimit))
	o.extract(*rootPtr, out)

	sort.SliceStable(out.models, func(i, j int) bool {
		return out.models[i].Objective() < out.models[j].Objective()
	})
	return out.models
}

func (o *Optimizer) extract(key string, out *modelSet) {
	entry, ok := o.graph.vertices.Acquire(key)
	if !ok {
		return
	}
	defer entry.Release()
	task := entry.Value

	work := o.locals[0].ColumnBuffer

	// A vertex whose single-leaf labeling meets its upper bound is itself
	// an optimal leaf.
	if task.BaseObjective <= task.Upper+epsilon {
		out.add(model.NewLeaf(task.Capture, o.ds, work, o.cfg.Regularization))
	}

	boundsEntry, ok := o.graph.bounds.Acquire(key)
	if !ok {
		return
	}
	defer boundsEntry.Release()

	for _, sb := range boundsEntry.Value {
		if sb.Upper > task.Upper+epsilon {
			continue
		}
		feature := sb.Feature

		negatives := o.extractSide(key, task, feature, false, out.limit)
		positives := o.extractSide(key, task, feature, true, out.limit)
		if len(negatives.models) == 0 || len(positives.models) == 0 {
			continue
		}

		if o.cfg.RuleList {
			o.combineRuleList(task, feature, negatives, positives, out)
		} else {
			for _, neg := range negatives.models {
				for _, pos := range positives.models {
					out.add(model.NewSplit(feature, neg, pos, o.ds))
				}
			}
		}
	}
}

// extractSide collects the candidate models of one side of a split: the
// recursively extracted models of the stored child vertex when it exists,
// or a leaf materialized directly from the subset when it does not.
func (o *Optimizer) extractSide(parentKey string, task *Task, feature int, positive bool, limit int) *modelSet {
	signed := feature + 1
	if !positive {
		signed = -(feature + 1)
	}

	side := newModelSet(limit)
	if ck, ok := o.graph.children.Acquire(childKey(parentKey, signed)); ok {
		childK := ck.Value
		ck.Release()
		o.extract(childK, side)
		return side
	}

	side.add(model.NewLeaf(o.splitSubset(task, feature, positive), o.ds, o.locals[0].ColumnBuffer, o.cfg.Regularization))
	return side
}

// splitSubset materializes a child capture set, applying the depth budget
// decrement when budgets are in use.
func (o *Optimizer) splitSubset(task *Task, feature int, positive bool) *bitvec.Vector {
	subset := task.Capture.Clone()
	o.ds.Subset(subset, feature, positive)
	if o.cfg.DepthBudget != 0 {
		subset.SetDepthBudget(subset.DepthBudget() - 1)
	}
	return subset
}

// combineRuleList emits the rule-list combinations of a split: one side is
// a freshly materialized leaf and the other a recursive result, admitted
// when the leaf risk plus the recursive objective meets the upper bound.
func (o *Optimizer) combineRuleList(task *Task, feature int, negatives, positives, out *modelSet) {
	work := o.locals[0].ColumnBuffer

	negativeSubset := o.splitSubset(task, feature, false)
	leftStats := o.ds.SummaryStatistics(negativeSubset, work)
	leftLeafRisk := leftStats.MaxLoss + o.cfg.Regularization

	positiveSubset := o.splitSubset(task, feature, true)
	rightStats := o.ds.SummaryStatistics(positiveSubset, work)
	rightLeafRisk := rightStats.MaxLoss + o.cfg.Regularization

	for _, neg := range negatives.models {
		risk := rightLeafRisk + neg.Loss() + neg.Complexity()
		if risk <= task.Upper+epsilon {
			pos := model.NewLeaf(positiveSubset, o.ds, work, o.cfg.Regularization)
			out.add(model.NewSplit(feature, neg, pos, o.ds))
		}
	}
	for _, pos := range positives.models {
		risk := leftLeafRisk + pos.Loss() + pos.Complexity()
		if risk <= task.Upper+epsilon {
			neg := model.NewLeaf(negativeSubset, o.ds, work, o.cfg.Regularization)
			out.add(model.NewSplit(feature, neg, pos, o.ds))
		}
	}
}
