// Package model holds classification trees extracted from the dependency
// graph. Sibling trees may share subtrees, so nodes are immutable after
// construction and referenced freely.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/optree/dataset"
	"github.com/hupe1980/optree/internal/bitvec"
)

// Model is a node of an extracted decision tree: either a leaf predicting a
// target class over its captured rows, or a binary split on a feature.
type Model struct {
	terminal bool

	// Split members.
	feature         int
	originalFeature int
	negative        *Model
	positive        *Model

	// Leaf members.
	prediction int
	rows       *roaring.Bitmap

	loss       float64
	complexity float64
}

// NewLeaf builds a terminal node over the captured rows. The work buffer is
// clobbered.
func NewLeaf(capture *bitvec.Vector, ds *dataset.Dataset, work *bitvec.Vector, regularization float64) *Model {
	stats := ds.SummaryStatistics(capture, work)

	rows := roaring.New()
	for i := capture.Scan(0, true); i < capture.Size(); i = capture.Scan(i+1, true) {
		rows.Add(uint32(i))
	}

	return &Model{
		terminal:   true,
		prediction: stats.Optimal,
		rows:       rows,
		loss:       stats.MaxLoss,
		complexity: regularization,
	}
}

// NewSplit builds an internal node splitting on the given binarized feature,
// with negative as the false branch and positive as the true branch.
func NewSplit(feature int, negative, positive *Model, ds *dataset.Dataset) *Model {
	original := feature
	if o, err := ds.OriginalFeature(feature); err == nil {
		original = o
	}
	return &Model{
		feature:         feature,
		originalFeature: original,
		negative:        negative,
		positive:        positive,
		loss:            negative.loss + positive.loss,
		complexity:      negative.complexity + positive.complexity,
	}
}

// Terminal reports whether the node is a leaf.
func (m *Model) Terminal() bool { return m.terminal }

// Feature returns the binarized split feature of an internal node.
func (m *Model) Feature() int { return m.feature }

// Prediction returns the predicted class of a leaf.
func (m *Model) Prediction() int { return m.prediction }

// Negative returns the false branch of an internal node.
func (m *Model) Negative() *Model { return m.negative }

// Positive returns the true branch of an internal node.
func (m *Model) Positive() *Model { return m.positive }

// Loss returns the training loss incurred by the subtree.
func (m *Model) Loss() float64 { return m.loss }

// Complexity returns the leaf penalty incurred by the subtree.
func (m *Model) Complexity() float64 { return m.complexity }

// Objective returns loss plus complexity.
func (m *Model) Objective() float64 { return m.loss + m.complexity }

// Leaves returns the number of leaves in the subtree.
func (m *Model) Leaves() int {
	if m.terminal {
		return 1
	}
	return m.negative.Leaves() + m.positive.Leaves()
}

// Captures returns the union of the rows captured by the subtree's leaves.
func (m *Model) Captures() *roaring.Bitmap {
	if m.terminal {
		return m.rows.Clone()
	}
	out := m.negative.Captures()
	out.Or(m.positive.Captures())
	return out
}

// Predict classifies a sample of binarized features.
func (m *Model) Predict(sample *bitvec.Vector) int {
	node := m
	for !node.terminal {
		if sample.Get(node.feature) {
			node = node.positive
		} else {
			node = node.negative
		}
	}
	return node.prediction
}

// Signature returns a canonical identity for the model derived from its
// leaf partition: two trees inducing the same labeled partition of the rows
// compare equal regardless of split order.
func (m *Model) Signature() string {
	var leaves []string
	m.walkLeaves(func(leaf *Model) {
		leaves = append(leaves, fmt.Sprintf("%d:%s", leaf.prediction, leaf.rows.String()))
	})
	sort.Strings(leaves)
	return strings.Join(leaves, "|")
}

func (m *Model) walkLeaves(fn func(leaf *Model)) {
	if m.terminal {
		fn(m)
		return
	}
	m.negative.walkLeaves(fn)
	m.positive.walkLeaves(fn)
}

// Equal reports whether two models induce the same labeled partition.
func (m *Model) Equal(other *Model) bool {
	return m.Signature() == other.Signature()
}
