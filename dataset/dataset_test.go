package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/optree/internal/bitvec"
)

// xorData builds the 4-row XOR dataset over 2 features and 2 classes with
// unit costs.
func xorData(t *testing.T) *Dataset {
	t.Helper()
	input := BoolMatrixFrom([][]bool{
		{false, false, true, false},
		{false, true, false, true},
		{true, false, false, true},
		{true, true, true, false},
	})
	ds, err := New(input, UnitCosts(2, 4), [][]int{{0}, {1}})
	require.NoError(t, err)
	return ds
}

func TestNewValidation(t *testing.T) {
	costs := UnitCosts(2, 2)

	_, err := New(NewBoolMatrix(0, 3), costs, nil)
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = New(NewBoolMatrix(2, 2), costs, nil)
	assert.ErrorIs(t, err, ErrNoFeatures)

	_, err = New(NewBoolMatrix(2, 3), NewFloatMatrix(2, 3), nil)
	assert.ErrorIs(t, err, ErrCostMatrixShape)

	// Rows without any target bit are rejected.
	input := NewBoolMatrix(1, 3)
	input.Set(0, 0, true)
	_, err = New(input, costs, nil)
	assert.ErrorIs(t, err, ErrRowWithoutTarget)

	// Reference matrix shape must match rows x targets.
	input = BoolMatrixFrom([][]bool{{true, true, false}})
	_, err = New(input, costs, nil, WithReference(NewBoolMatrix(2, 2)))
	assert.ErrorIs(t, err, ErrReferenceShape)
}

func TestShape(t *testing.T) {
	ds := xorData(t)
	assert.Equal(t, 4, ds.NumRows())
	assert.Equal(t, 2, ds.NumFeatures())
	assert.Equal(t, 2, ds.NumTargets())
	assert.False(t, ds.HasReference())
}

func TestCostVectors(t *testing.T) {
	ds := xorData(t)
	for t2 := 0; t2 < 2; t2++ {
		assert.Equal(t, 0.25, ds.diffCosts[t2])
		assert.Equal(t, 0.0, ds.matchCosts[t2])
		assert.Equal(t, 0.25, ds.mismatchCosts[t2])
	}
}

func TestMajorityDistinctRows(t *testing.T) {
	// All XOR rows have distinct features, so every row is its own
	// equivalence class and matches its own majority.
	ds := xorData(t)
	assert.Equal(t, 4, ds.majority.Count())
}

func TestMajorityConflictingRows(t *testing.T) {
	// Two rows with identical features but different labels: the majority
	// label is the cost minimizer with the lowest index on ties.
	input := BoolMatrixFrom([][]bool{
		{true, true, false},
		{true, false, true},
	})
	ds, err := New(input, UnitCosts(2, 2), [][]int{{0}})
	require.NoError(t, err)

	assert.True(t, ds.majority.Get(0))
	assert.False(t, ds.majority.Get(1))
}

func TestSummaryStatisticsXOR(t *testing.T) {
	ds := xorData(t)
	work := bitvec.New(4)

	stats := ds.SummaryStatistics(bitvec.Full(4), work)
	assert.InDelta(t, 0.5, stats.MaxLoss, 1e-9)
	assert.InDelta(t, 0.0, stats.GuaranteedMinLoss, 1e-9)
	assert.InDelta(t, 0.0, stats.MinLoss, 1e-9)
	assert.InDelta(t, 1.0, stats.Potential, 1e-9)
	assert.Equal(t, 0, stats.Optimal)
}

func TestSummaryStatisticsSubset(t *testing.T) {
	ds := xorData(t)
	work := bitvec.New(4)

	// Rows where feature 0 is true: rows 2 and 3, one of each class.
	capture := bitvec.Full(4)
	ds.Subset(capture, 0, true)
	assert.Equal(t, 2, capture.Count())

	stats := ds.SummaryStatistics(capture, work)
	assert.InDelta(t, 0.25, stats.MaxLoss, 1e-9)
	assert.InDelta(t, 0.0, stats.GuaranteedMinLoss, 1e-9)
}

func TestSummaryStatisticsReference(t *testing.T) {
	// A perfect reference drives MinLoss to zero while GuaranteedMinLoss
	// reflects the equivalence-class bound.
	input := BoolMatrixFrom([][]bool{
		{true, true, false},
		{true, false, true},
	})
	ref := BoolMatrixFrom([][]bool{
		{true, false},
		{false, true},
	})
	ds, err := New(input, UnitCosts(2, 2), [][]int{{0}}, WithReference(ref))
	require.NoError(t, err)
	require.True(t, ds.HasReference())

	work := bitvec.New(2)
	stats := ds.SummaryStatistics(bitvec.Full(2), work)
	assert.InDelta(t, 0.5, stats.GuaranteedMinLoss, 1e-9)
	assert.InDelta(t, 0.0, stats.MinLoss, 1e-9)
}

func TestSubset(t *testing.T) {
	ds := xorData(t)

	capture := bitvec.Full(4)
	ds.Subset(capture, 1, false)
	assert.True(t, capture.Get(0))
	assert.False(t, capture.Get(1))
	assert.True(t, capture.Get(2))
	assert.False(t, capture.Get(3))
}

func TestDistance(t *testing.T) {
	ds := xorData(t)
	work := bitvec.New(4)

	// Features 0 and 1 disagree on rows 1 and 2 (classes 1 and 1) and agree
	// on rows 0 and 3 (classes 0 and 0): both relabel costs are 0.5.
	d := ds.Distance(bitvec.Full(4), 0, 1, work)
	assert.InDelta(t, 0.5, d, 1e-9)

	// Distance of a feature to itself relabels only the disagreement side,
	// which is empty.
	d = ds.Distance(bitvec.Full(4), 0, 0, work)
	assert.InDelta(t, 0.0, d, 1e-9)
}

func TestOriginalFeature(t *testing.T) {
	input := BoolMatrixFrom([][]bool{{true, false, true, true, false}})
	ds, err := New(input, UnitCosts(2, 1), [][]int{{0, 1}, {2}})
	require.NoError(t, err)

	orig, err := ds.OriginalFeature(1)
	require.NoError(t, err)
	assert.Equal(t, 0, orig)

	orig, err = ds.OriginalFeature(2)
	require.NoError(t, err)
	assert.Equal(t, 1, orig)

	_, err = ds.OriginalFeature(9)
	var notMapped *ErrFeatureNotMapped
	assert.ErrorAs(t, err, &notMapped)
}

func TestPersistRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecRaw, CodecZstd, CodecLZ4} {
		ds := xorData(t)

		var buf bytes.Buffer
		require.NoError(t, ds.Save(&buf, codec))

		loaded, err := Load(&buf)
		require.NoError(t, err, "codec %d", codec)

		assert.Equal(t, ds.NumRows(), loaded.NumRows())
		assert.Equal(t, ds.NumFeatures(), loaded.NumFeatures())
		assert.Equal(t, ds.NumTargets(), loaded.NumTargets())
		assert.Equal(t, ds.FeatureMap(), loaded.FeatureMap())

		// Summary statistics must survive the round trip bitwise.
		work := bitvec.New(4)
		capture := bitvec.Full(4)
		before := ds.SummaryStatistics(capture, work)
		after := loaded.SummaryStatistics(capture, work)
		assert.Equal(t, before, after)
	}
}

func TestPersistReferenceRoundTrip(t *testing.T) {
	input := BoolMatrixFrom([][]bool{
		{true, true, false},
		{false, false, true},
	})
	ref := BoolMatrixFrom([][]bool{
		{true, false},
		{false, true},
	})
	ds, err := New(input, UnitCosts(2, 2), [][]int{{0}}, WithReference(ref))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ds.Save(&buf, CodecZstd))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.True(t, loaded.HasReference())

	work := bitvec.New(2)
	assert.Equal(t,
		ds.SummaryStatistics(bitvec.Full(2), work),
		loaded.SummaryStatistics(bitvec.Full(2), work))
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not a dataset")))
	assert.ErrorIs(t, err, ErrBadFormat)
}
