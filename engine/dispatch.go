package engine

import (
	"math"

	"github.com/hupe1980/optree/internal/bitvec"
)

// dispatch routes one message. It returns whether the global objective
// boundary changed.
func (o *Optimizer) dispatch(m *Message, id int) (bool, error) {
	switch m.Code {
	case explorationMessage:
		return o.exploration(m, id)
	case exploitationMessage:
		return o.exploitation(m, id)
	default:
		return false, &IntegrityViolation{Op: "dispatch", Reason: "unsupported message code"}
	}
}

// exploration handles a message travelling downward: construct the
// subproblem, store it and its split bounds, connect it to its parent, and
// fan out explorers to its own children.
func (o *Optimizer) exploration(m *Message, id int) (bool, error) {
	ls := &o.locals[id]

	task, err := NewTask(m.RecipientCapture.Clone(), m.RecipientFeature.Clone(), o.ds, o.cfg, ls.ColumnBuffer)
	if err != nil {
		return false, err
	}
	task.ScopeTo(m.Scope)
	if err := task.CreateChildren(o.ds, o.cfg, ls.Neighbourhood, ls.ColumnBuffer); err != nil {
		return false, err
	}

	key := task.Capture.Key()
	entry, _ := o.graph.vertices.Insert(key, &task)
	defer entry.Release()
	v := entry.Value

	o.storeChildren(v, key, id)

	isRoot := v.Capture.Count() == v.Capture.Size()
	update := false
	if isRoot {
		rootUpper := 1.0
		if o.cfg.UpperboundGuess > 0 {
			rootUpper = math.Min(rootUpper, o.cfg.UpperboundGuess)
		}
		v.Update(o.cfg, v.Lower, rootUpper, -1)
		o.rootKey.Store(&key)
		update = o.updateRoot(v.Lower, v.Upper)
	} else {
		o.linkToParent(m, key, v)
	}

	if o.cfg.ReferenceLB || m.Scope >= v.UpperScope {
		o.sendExplorers(v, key, m.Scope, id)
	}
	return update, nil
}

// exploitation handles a message travelling upward: refresh the vertex's
// split bounds from the signalled children and propagate the tightened
// bounds to its own parents.
func (o *Optimizer) exploitation(m *Message, id int) (bool, error) {
	entry, ok := o.graph.vertices.Acquire(m.RecipientTile)
	if !ok {
		return false, nil
	}
	defer entry.Release()
	v := entry.Value

	if v.Uncertainty() == 0 ||
		(!o.cfg.ReferenceLB && v.Lower >= v.UpperScope-epsilon) {
		return false, nil
	}

	key := m.RecipientTile
	o.loadChildren(v, key, m.Features, id)

	isRoot := v.Capture.Count() == v.Capture.Size()
	if isRoot {
		return o.updateRoot(v.Lower, v.Upper), nil
	}

	if parents, ok := o.graph.edges.Acquire(key); ok {
		o.signalExploiters(v, key, parents.Value)
		parents.Release()
	}
	return false, nil
}

// splitBounds combines the bounds of the two children of a feature split.
// In rule-list mode one side of the split must remain a leaf, so each
// bound is the cheaper of leaving either side at its base objective.
func (o *Optimizer) splitBounds(left, right *Task) (lower, upper float64) {
	if o.cfg.RuleList {
		lower = math.Min(left.Lower+right.BaseObjective, left.BaseObjective+right.Lower)
		upper = math.Min(left.Upper+right.BaseObjective, left.BaseObjective+right.Upper)
		return lower, upper
	}
	return left.Lower + right.Lower, left.Upper + right.Upper
}

// storeChildren records the initial per-feature split bounds of a freshly
// explored vertex, in feature order, and applies the aggregate to the task.
// A vertex that already has bounds is left untouched.
func (o *Optimizer) storeChildren(task *Task, key string, id int) {
	entry, inserted := o.graph.bounds.Insert(key, nil)
	defer entry.Release()
	if !inserted {
		return
	}

	ls := &o.locals[id]
	optimalFeature := -1
	lower, upper := task.BaseObjective, task.BaseObjective

	features := task.Features
	for b, e := features.NextRun(0, true); b < features.Size(); b, e = features.NextRun(e, true) {
		for j := b; j < e; j++ {
			if !o.cfg.FeatureTransform {
				// Without feature transforms, equivalent subproblems found
				// under other parents still share a vertex; refresh the
				// local copies from the graph when present.
				for k := 0; k < 2; k++ {
					childK := ls.Neighbourhood[2*j+k].Capture.Key()
					if child, ok := o.graph.vertices.Acquire(childK); ok {
						ls.Neighbourhood[2*j+k] = *child.Value
						child.Release()
					}
				}
			}

			left := &ls.Neighbourhood[2*j]
			right := &ls.Neighbourhood[2*j+1]
			splitLower, splitUpper := o.splitBounds(left, right)

			entry.Value = append(entry.Value, SplitBound{Feature: j, Lower: splitLower, Upper: splitUpper})
			if splitLower > task.UpperScope {
				continue
			}
			if splitUpper < upper {
				optimalFeature = j
			}
			lower = math.Min(lower, splitLower)
			upper = math.Min(upper, splitUpper)
		}
	}

	task.Update(o.cfg, lower, upper, optimalFeature)
}

// loadChildren refreshes the split bounds of the signalled features from
// the stored child vertices, tightens neighbouring features through the
// similar-support bound, and applies the aggregate to the task. It reports
// whether the task's bounds moved.
func (o *Optimizer) loadChildren(task *Task, key string, signals *bitvec.Vector, id int) bool {
	entry, ok := o.graph.bounds.Acquire(key)
	if !ok {
		return false
	}
	defer entry.Release()

	ls := &o.locals[id]
	lower, upper := task.BaseObjective, task.BaseObjective
	optimalFeature := -1

	bounds := entry.Value
	for i := range bounds {
		feature := bounds[i].Feature

		if signals.Get(feature) {
			ready := true
			for k := 0; k < 2; k++ {
				signed := feature + 1
				if k == 0 {
					signed = -(feature + 1)
				}
				ready = ready && o.loadChild(key, signed, &ls.Neighbourhood[2*feature+k])
			}
			if ready {
				splitLower, splitUpper := o.splitBounds(&ls.Neighbourhood[2*feature], &ls.Neighbourhood[2*feature+1])
				bounds[i].Lower = splitLower
				bounds[i].Upper = splitUpper
			}
		}

		if o.cfg.SimilarSupport {
			if i > 0 {
				prev := bounds[i-1]
				d := o.ds.Distance(task.Capture, feature, prev.Feature, ls.ColumnBuffer)
				bounds[i].Lower = math.Max(bounds[i].Lower, prev.Lower-d)
				bounds[i].Upper = math.Min(bounds[i].Upper, prev.Upper+d)
			}
			if i+1 < len(bounds) {
				next := bounds[i+1]
				d := o.ds.Distance(task.Capture, feature, next.Feature, ls.ColumnBuffer)
				bounds[i].Lower = math.Max(bounds[i].Lower, next.Lower-d)
				bounds[i].Upper = math.Min(bounds[i].Upper, next.Upper+d)
			}
		}

		if bounds[i].Lower > task.UpperScope {
			continue
		}
		if bounds[i].Upper < upper {
			optimalFeature = feature
		}
		lower = math.Min(lower, bounds[i].Lower)
		upper = math.Min(upper, bounds[i].Upper)
	}

	return task.Update(o.cfg, lower, upper, optimalFeature)
}

// loadChild copies the stored child vertex for a signed feature into the
// neighbourhood slot, reporting whether both look-ups succeeded.
func (o *Optimizer) loadChild(parentKey string, signed int, slot *Task) bool {
	ck, ok := o.graph.children.Acquire(childKey(parentKey, signed))
	if !ok {
		return false
	}
	childK := ck.Value
	ck.Release()

	child, ok := o.graph.vertices.Acquire(childK)
	if !ok {
		return false
	}
	*slot = *child.Value
	child.Release()
	return true
}

// linkToParent records the child's graph connections for every feature the
// message concerns: the forward child look-up, the reorder translation,
// and the backward edge carrying the pending-signal mask and scope. It then
// signals the parents that are already waiting on this vertex.
func (o *Optimizer) linkToParent(m *Message, selfKey string, self *Task) {
	features := m.Features
	parents, _ := o.graph.edges.Insert(selfKey, nil)
	defer parents.Release()
	if parents.Value == nil {
		parents.Value = make(map[string]*edgeAnnotation)
	}

	for b, e := features.NextRun(0, true); b < features.Size(); b, e = features.NextRun(e, true) {
		for j := b; j < e; j++ {
			signed := j + 1
			if !m.Signs.Get(j) {
				signed = -(j + 1)
			}

			t, _ := o.graph.translations.Insert(childKey(m.SenderTile, signed), self.Order)
			t.Release()

			c, _ := o.graph.children.Insert(childKey(m.SenderTile, signed), selfKey)
			c.Release()

			ann := parents.Value[m.SenderTile]
			if ann == nil {
				ann = &edgeAnnotation{
					Pending: bitvec.New(o.ds.NumFeatures()),
					Scope:   m.Scope,
				}
				parents.Value[m.SenderTile] = ann
			}
			ann.Pending.Set(j, true)
			ann.Scope = math.Min(ann.Scope, m.Scope)
		}
	}

	o.signalExploiters(self, selfKey, parents.Value)
}

// signalExploiters emits exploitation messages to every parent whose edge
// has pending signals, once this vertex has become informative: its gap is
// closed or its lower bound reached the tightest scope asked of it.
func (o *Optimizer) signalExploiters(self *Task, selfKey string, parents map[string]*edgeAnnotation) {
	if self.Uncertainty() != 0 && self.Lower < self.LowerScope-epsilon {
		return
	}
	for parentKey, ann := range parents {
		if ann.Pending.Count() == 0 {
			continue
		}
		if self.Lower < ann.Scope-epsilon && self.Uncertainty() > 0 {
			continue
		}
		msg := newExploitation(selfKey, parentKey, ann.Pending.Clone(), self.Support-self.Lower)
		o.queue.Push(msg, msg.Priority)
	}
}
