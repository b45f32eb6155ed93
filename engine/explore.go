package engine

import (
	"math"

	"github.com/hupe1980/optree/internal/bitvec"
)

// sendExplorers fans out exploration messages for every live feature of a
// freshly scoped parent. Children whose split cannot beat the exploration
// boundary are skipped, as are splits already covered by an earlier, wider
// exploration of this vertex.
func (o *Optimizer) sendExplorers(parent *Task, parentKey string, newScope float64, id int) {
	if parent.Uncertainty() == 0 {
		return
	}
	parent.ScopeTo(newScope)

	explorationBoundary := parent.Upper
	if o.cfg.LookAhead {
		explorationBoundary = math.Min(explorationBoundary, parent.UpperScope)
	}

	ls := &o.locals[id]
	features := parent.Features
	for b, e := features.NextRun(0, true); b < features.Size(); b, e = features.NextRun(e, true) {
		for j := b; j < e; j++ {
			left := &ls.Neighbourhood[2*j]
			right := &ls.Neighbourhood[2*j+1]
			lower, upper := o.splitBounds(left, right)

			if lower > explorationBoundary {
				continue // out of scope
			}
			if upper <= parent.Coverage {
				continue // already explored
			}

			if o.cfg.RuleList {
				o.sendExplorer(parent, parentKey, left, explorationBoundary-right.BaseObjective, -(j + 1), id)
				o.sendExplorer(parent, parentKey, right, explorationBoundary-left.BaseObjective, j+1, id)
			} else {
				o.sendExplorer(parent, parentKey, left, explorationBoundary-right.GuaranteedLowerbound(o.cfg), -(j + 1), id)
				o.sendExplorer(parent, parentKey, right, explorationBoundary-left.GuaranteedLowerbound(o.cfg), j+1, id)
			}
		}
	}

	parent.Coverage = parent.UpperScope
}

// sendExplorer emits one exploration message for a child, unless the child
// already exists in the graph with a wider scope; in that case the edge is
// grafted directly and the existing vertex is rescoped instead.
func (o *Optimizer) sendExplorer(parent *Task, parentKey string, child *Task, scope float64, signedFeature int, id int) {
	send := true

	if ck, ok := o.graph.children.Acquire(childKey(parentKey, signedFeature)); ok {
		existingKey := ck.Value
		ck.Release()

		if vertex, ok := o.graph.vertices.Acquire(existingKey); ok {
			if scope < vertex.Value.UpperScope {
				parents, _ := o.graph.edges.Insert(existingKey, nil)
				if parents.Value == nil {
					parents.Value = make(map[string]*edgeAnnotation)
				}
				feature := signedFeature
				if feature < 0 {
					feature = -feature
				}
				ann := parents.Value[parentKey]
				if ann == nil {
					ann = &edgeAnnotation{
						Pending: bitvec.New(o.ds.NumFeatures()),
						Scope:   scope,
					}
					parents.Value[parentKey] = ann
				}
				ann.Pending.Set(feature-1, true)
				ann.Scope = math.Min(ann.Scope, scope)
				parents.Release()

				vertex.Value.ScopeTo(scope)
				send = false
			}
			vertex.Release()
		}
	}

	if send {
		msg := newExploration(parentKey, child.Capture.Clone(), parent.Features.Clone(),
			signedFeature, scope, parent.Support-parent.Lower, o.ds.NumFeatures())
		o.queue.Push(msg, msg.Priority)
	}
}
