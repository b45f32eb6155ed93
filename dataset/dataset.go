// Package dataset holds the immutable training data shared by all optimizer
// workers: row and column bit-vector views of features and targets, the cost
// vectors derived from the cost matrix, and the majority bitmask backing the
// equivalent-points bound.
package dataset

import (
	"math"

	"github.com/hupe1980/optree/internal/bitvec"
)

// Dataset is immutable after construction and safe to share by reference.
type Dataset struct {
	nRows     int
	nFeatures int
	nTargets  int

	rowFeatures []*bitvec.Vector // one per row, nFeatures bits
	rowTargets  []*bitvec.Vector // one per row, nTargets bits
	colFeatures []*bitvec.Vector // one per feature, nRows bits
	colTargets  []*bitvec.Vector // one per target, nRows bits

	costs         *FloatMatrix // costs.At(i, j): cost of predicting i when truth is j
	diffCosts     []float64    // per target: max prediction cost - min prediction cost
	matchCosts    []float64    // per target: cost of the correct prediction
	mismatchCosts []float64    // per target: cheapest wrong prediction

	majority *bitvec.Vector

	reference []*bitvec.Vector // per target, nil when no reference model was given

	featureMap [][]int
}

type options struct {
	reference *BoolMatrix
}

// Option configures dataset construction.
type Option func(*options)

// WithReference attaches reference-model predictions (rows x targets) used
// by the reference lower bound.
func WithReference(ref *BoolMatrix) Option {
	return func(o *options) {
		o.reference = ref
	}
}

// New constructs a dataset from a binarized input matrix whose first
// columns are features and last Targets columns are target one-hots, a
// square cost matrix over targets, and the original-feature map.
func New(input *BoolMatrix, costs *FloatMatrix, featureMap [][]int, optFns ...Option) (*Dataset, error) {
	var opts options
	for _, fn := range optFns {
		fn(&opts)
	}

	if costs.Rows() != costs.Cols() || costs.Rows() == 0 {
		return nil, ErrCostMatrixShape
	}
	if input.Rows() == 0 {
		return nil, ErrNoRows
	}
	if input.Cols() <= costs.Rows() {
		return nil, ErrNoFeatures
	}

	ds := &Dataset{
		nRows:      input.Rows(),
		nTargets:   costs.Rows(),
		nFeatures:  input.Cols() - costs.Rows(),
		costs:      costs,
		featureMap: featureMap,
	}

	if opts.reference != nil {
		if opts.reference.Rows() != ds.nRows || opts.reference.Cols() != ds.nTargets {
			return nil, ErrReferenceShape
		}
	}

	ds.constructBitmasks(input)
	ds.constructCostVectors()
	if err := ds.constructMajority(); err != nil {
		return nil, err
	}
	if opts.reference != nil {
		ds.constructReference(opts.reference)
	}
	return ds, nil
}

func (ds *Dataset) constructBitmasks(input *BoolMatrix) {
	ds.rowFeatures = make([]*bitvec.Vector, ds.nRows)
	ds.rowTargets = make([]*bitvec.Vector, ds.nRows)
	for i := range ds.rowFeatures {
		ds.rowFeatures[i] = bitvec.New(ds.nFeatures)
		ds.rowTargets[i] = bitvec.New(ds.nTargets)
	}
	ds.colFeatures = make([]*bitvec.Vector, ds.nFeatures)
	for j := range ds.colFeatures {
		ds.colFeatures[j] = bitvec.New(ds.nRows)
	}
	ds.colTargets = make([]*bitvec.Vector, ds.nTargets)
	for t := range ds.colTargets {
		ds.colTargets[t] = bitvec.New(ds.nRows)
	}

	for i := 0; i < ds.nRows; i++ {
		for j := 0; j < ds.nFeatures; j++ {
			if input.At(i, j) {
				ds.rowFeatures[i].Set(j, true)
				ds.colFeatures[j].Set(i, true)
			}
		}
		for t := 0; t < ds.nTargets; t++ {
			if input.At(i, ds.nFeatures+t) {
				ds.rowTargets[i].Set(t, true)
				ds.colTargets[t].Set(i, true)
			}
		}
	}
}

func (ds *Dataset) constructCostVectors() {
	ds.diffCosts = make([]float64, ds.nTargets)
	ds.matchCosts = make([]float64, ds.nTargets)
	ds.mismatchCosts = make([]float64, ds.nTargets)

	for t := 0; t < ds.nTargets; t++ {
		maxCost := math.Inf(-1)
		minCost := math.Inf(1)
		mismatch := math.Inf(1)
		for i := 0; i < ds.nTargets; i++ {
			c := ds.costs.At(i, t)
			maxCost = math.Max(maxCost, c)
			minCost = math.Min(minCost, c)
			if i == t {
				ds.matchCosts[t] = c
			} else {
				mismatch = math.Min(mismatch, c)
			}
		}
		ds.diffCosts[t] = maxCost - minCost
		ds.mismatchCosts[t] = mismatch
	}
}

// constructMajority marks each row whose target equals the cost-minimizing
// label of its feature-equivalence class. Rows with identical feature
// patterns form one class; the class label minimizes total cost over the
// class distribution, ties broken by the lowest label index.
func (ds *Dataset) constructMajority() error {
	distributions := make(map[string][]int)
	for i := 0; i < ds.nRows; i++ {
		key := ds.rowFeatures[i].Key()
		dist := distributions[key]
		if dist == nil {
			dist = make([]int, ds.nTargets)
			distributions[key] = dist
		}
		for t := 0; t < ds.nTargets; t++ {
			if ds.rowTargets[i].Get(t) {
				dist[t]++
			}
		}
	}

	minimizers := make(map[string]int, len(distributions))
	for key, dist := range distributions {
		best := math.Inf(1)
		minimizer := 0
		for i := 0; i < ds.nTargets; i++ {
			cost := 0.0
			for j := 0; j < ds.nTargets; j++ {
				cost += ds.costs.At(i, j) * float64(dist[j])
			}
			if cost < best {
				best = cost
				minimizer = i
			}
		}
		minimizers[key] = minimizer
	}

	ds.majority = bitvec.New(ds.nRows)
	for i := 0; i < ds.nRows; i++ {
		target := ds.rowTargets[i].Scan(0, true)
		if target >= ds.nTargets {
			return ErrRowWithoutTarget
		}
		ds.majority.Set(i, minimizers[ds.rowFeatures[i].Key()] == target)
	}
	return nil
}

func (ds *Dataset) constructReference(ref *BoolMatrix) {
	ds.reference = make([]*bitvec.Vector, ds.nTargets)
	for t := 0; t < ds.nTargets; t++ {
		ds.reference[t] = bitvec.New(ds.nRows)
		for i := 0; i < ds.nRows; i++ {
			ds.reference[t].Set(i, ref.At(i, t))
		}
	}
}

// NumRows returns the number of training rows.
func (ds *Dataset) NumRows() int { return ds.nRows }

// NumFeatures returns the number of binarized features.
func (ds *Dataset) NumFeatures() int { return ds.nFeatures }

// NumTargets returns the number of target classes.
func (ds *Dataset) NumTargets() int { return ds.nTargets }

// HasReference reports whether reference-model predictions are attached.
func (ds *Dataset) HasReference() bool { return ds.reference != nil }

// RowFeatures returns the feature row-view for a row.
func (ds *Dataset) RowFeatures(i int) *bitvec.Vector { return ds.rowFeatures[i] }

// FeatureMap returns the original-feature map.
func (ds *Dataset) FeatureMap() [][]int { return ds.featureMap }

// OriginalFeature maps a binarized feature index to its original feature.
func (ds *Dataset) OriginalFeature(binarized int) (int, error) {
	for i, set := range ds.featureMap {
		for _, f := range set {
			if f == binarized {
				return i, nil
			}
		}
	}
	return 0, &ErrFeatureNotMapped{Feature: binarized}
}

// Subset restricts capture to the rows where feature j has the given value.
func (ds *Dataset) Subset(capture *bitvec.Vector, j int, positive bool) {
	if positive {
		capture.And(ds.colFeatures[j])
	} else {
		capture.AndNot(ds.colFeatures[j])
	}
}

// Distance returns the similar-support distance between features i and j on
// the captured rows: the cheaper of relabeling the rows where the two
// features agree or the rows where they disagree.
func (ds *Dataset) Distance(capture *bitvec.Vector, i, j int, work *bitvec.Vector) float64 {
	positive, negative := 0.0, 0.0
	for t := 0; t < ds.nTargets; t++ {
		work.CopyFrom(ds.colFeatures[i])
		work.Xor(ds.colFeatures[j])
		work.And(capture)
		work.And(ds.colTargets[t])
		positive += ds.diffCosts[t] * float64(work.Count())

		work.CopyFrom(ds.colFeatures[i])
		work.Xnor(ds.colFeatures[j])
		work.And(capture)
		work.And(ds.colTargets[t])
		negative += ds.diffCosts[t] * float64(work.Count())
	}
	return math.Min(positive, negative)
}
