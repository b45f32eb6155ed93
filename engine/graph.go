package engine

import (
	"strconv"

	"github.com/hupe1980/optree/internal/bitvec"
	"github.com/hupe1980/optree/internal/cmap"
)

// SplitBound is the pair of objective bounds induced by splitting a
// subproblem on a feature: the sums of the child bounds, or in rule-list
// mode the cheaper of keeping either child a leaf.
type SplitBound struct {
	Feature int
	Lower   float64
	Upper   float64
}

// edgeAnnotation marks, per parent, the features on whose child updates the
// edge must signal upward, and the tightest scope the parent asked for.
type edgeAnnotation struct {
	Pending *bitvec.Vector
	Scope   float64
}

// Graph is the concurrent dependency graph of subproblems. All maps are
// keyed by capture-set identity; parent/child cycles are represented by key
// lookups rather than pointers, so no owning edges exist.
type Graph struct {
	// vertices maps capture set -> subproblem state.
	vertices *cmap.Map[*Task]
	// bounds maps capture set -> per-feature split bounds, in feature order.
	bounds *cmap.Map[[]SplitBound]
	// children maps (capture set, signed feature) -> child capture set.
	children *cmap.Map[string]
	// edges maps child capture set -> annotations per parent capture set.
	edges *cmap.Map[map[string]*edgeAnnotation]
	// translations maps (capture set, signed feature) -> feature reorder.
	translations *cmap.Map[[]int]
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		vertices:     cmap.New[*Task](),
		bounds:       cmap.New[[]SplitBound](),
		children:     cmap.New[string](),
		edges:        cmap.New[map[string]*edgeAnnotation](),
		translations: cmap.New[[]int](),
	}
}

// Size returns the number of vertices.
func (g *Graph) Size() int { return g.vertices.Len() }

// childKey builds the forward look-up key for a signed feature under a
// parent. Signed features are 1-based: -(j+1) for the false side, +(j+1)
// for the true side.
func childKey(parent string, signedFeature int) string {
	return parent + "#" + strconv.Itoa(signedFeature)
}
