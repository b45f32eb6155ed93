package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/optree/dataset"
	"github.com/hupe1980/optree/internal/cmap"
)

// runToCompletion drives a single worker until the active flag clears.
func runToCompletion(t *testing.T, o *Optimizer) uint64 {
	t.Helper()
	require.NoError(t, o.Initialize())
	var n uint64
	for o.Iterate(0) {
		n++
		require.Less(t, n, uint64(1_000_000), "optimizer failed to terminate")
	}
	return n
}

func singleRowData(t *testing.T) *dataset.Dataset {
	t.Helper()
	input := dataset.BoolMatrixFrom([][]bool{{true, true}})
	ds, err := dataset.New(input, dataset.NewFloatMatrix(1, 1), [][]int{{0}})
	require.NoError(t, err)
	return ds
}

func conflictData(t *testing.T) *dataset.Dataset {
	t.Helper()
	input := dataset.BoolMatrixFrom([][]bool{
		{true, true, false},
		{true, false, true},
	})
	ds, err := dataset.New(input, dataset.UnitCosts(2, 2), [][]int{{0}})
	require.NoError(t, err)
	return ds
}

func randomData(t *testing.T, rows, features int) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	input := dataset.NewBoolMatrix(rows, features+2)
	for i := 0; i < rows; i++ {
		for j := 0; j < features; j++ {
			input.Set(i, j, rng.Intn(2) == 1)
		}
		class := rng.Intn(2)
		input.Set(i, features+class, true)
	}
	featureMap := make([][]int, features)
	for j := range featureMap {
		featureMap[j] = []int{j}
	}
	ds, err := dataset.New(input, dataset.UnitCosts(2, rows), featureMap)
	require.NoError(t, err)
	return ds
}

// Single row, single feature, single target with an all-zero cost matrix:
// the optimum is one leaf costing exactly the penalty.
func TestConvergeSingleRow(t *testing.T) {
	ds := singleRowData(t)
	cfg := newCfg(0.05)

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)

	require.True(t, o.Complete())
	lower, upper := o.ObjectiveBoundary()
	assert.InDelta(t, 0.05, lower, 1e-9)
	assert.InDelta(t, 0.05, upper, 1e-9)

	models := o.Models()
	require.Len(t, models, 1)
	assert.True(t, models[0].Terminal())
	assert.InDelta(t, 0.0, models[0].Loss(), 1e-9)
	assert.Equal(t, 1, models[0].Leaves())
}

// Two rows with identical features and different labels: the feature is
// useless, the optimum is a leaf misclassifying one of the two rows.
func TestConvergeUselessFeature(t *testing.T) {
	ds := conflictData(t)
	cfg := newCfg(0.05)

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)

	require.True(t, o.Complete())
	lower, upper := o.ObjectiveBoundary()
	assert.InDelta(t, 0.55, lower, 1e-9)
	assert.InDelta(t, 0.55, upper, 1e-9)

	models := o.Models()
	require.Len(t, models, 1)
	assert.True(t, models[0].Terminal())
	assert.InDelta(t, 0.5, models[0].Loss(), 1e-9)
}

// Perfect XOR needs both features: the optimal tree has four leaves and
// zero loss.
func TestConvergeXOR(t *testing.T) {
	ds := xorData(t)
	cfg := newCfg(0.01)

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)

	require.True(t, o.Complete())
	lower, upper := o.ObjectiveBoundary()
	assert.InDelta(t, 0.04, lower, 1e-9)
	assert.InDelta(t, 0.04, upper, 1e-9)

	models := o.Models()
	require.NotEmpty(t, models)
	best := models[0]
	assert.InDelta(t, 0.0, best.Loss(), 1e-9)
	assert.InDelta(t, 0.04, best.Objective(), 1e-9)
	assert.Equal(t, 4, best.Leaves())

	// The tree must classify all four rows correctly.
	for i, want := range []int{0, 1, 1, 0} {
		assert.Equal(t, want, best.Predict(ds.RowFeatures(i)), "row %d", i)
	}
}

// With a depth budget of 2 every split produces leaf-only children, and on
// XOR data any single split is useless: the optimum degenerates to a single
// leaf costing max loss plus one penalty.
func TestConvergeXORDepthBudget(t *testing.T) {
	ds := xorData(t)
	cfg := newCfg(0.01)
	cfg.DepthBudget = 2

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)

	require.True(t, o.Complete())
	lower, upper := o.ObjectiveBoundary()
	assert.InDelta(t, 0.51, lower, 1e-9)
	assert.InDelta(t, 0.51, upper, 1e-9)

	models := o.Models()
	require.Len(t, models, 1)
	assert.True(t, models[0].Terminal())
	assert.InDelta(t, 0.5, models[0].Loss(), 1e-9)
}

// A reference model equal to the true labels only tightens the lower
// bound; the optimum cannot change.
func TestReferenceLBEquivalence(t *testing.T) {
	input := dataset.BoolMatrixFrom([][]bool{
		{false, false, true, false},
		{false, true, false, true},
		{true, false, false, true},
		{true, true, true, false},
	})
	ref := dataset.BoolMatrixFrom([][]bool{
		{true, false},
		{false, true},
		{false, true},
		{true, false},
	})

	plainDS, err := dataset.New(input, dataset.UnitCosts(2, 4), [][]int{{0}, {1}})
	require.NoError(t, err)
	refDS, err := dataset.New(input, dataset.UnitCosts(2, 4), [][]int{{0}, {1}}, dataset.WithReference(ref))
	require.NoError(t, err)

	plainCfg := newCfg(0.01)
	plain := NewOptimizer(plainCfg, plainDS)
	runToCompletion(t, plain)

	refCfg := newCfg(0.01)
	refCfg.ReferenceLB = true
	withRef := NewOptimizer(refCfg, refDS)
	runToCompletion(t, withRef)

	require.True(t, plain.Complete())
	require.True(t, withRef.Complete())

	plainLower, plainUpper := plain.ObjectiveBoundary()
	refLower, refUpper := withRef.ObjectiveBoundary()
	assert.InDelta(t, plainLower, refLower, 1e-9)
	assert.InDelta(t, plainUpper, refUpper, 1e-9)

	plainModels := plain.Models()
	refModels := withRef.Models()
	require.NotEmpty(t, plainModels)
	require.NotEmpty(t, refModels)
	assert.True(t, plainModels[0].Equal(refModels[0]))
}

// Rule-list mode restricts one side of every split to a leaf. On XOR data
// no rule list can reach zero loss; the optimum is a single leaf when the
// penalty dominates the attainable gain.
func TestConvergeXORRuleList(t *testing.T) {
	ds := xorData(t)
	cfg := newCfg(0.01)
	cfg.RuleList = true

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)

	require.True(t, o.Complete())
	lower, upper := o.ObjectiveBoundary()
	assert.InDelta(t, lower, upper, 1e-9)

	models := o.Models()
	require.NotEmpty(t, models)
	assert.InDelta(t, upper, models[0].Objective(), 1e-6)
}

func TestWorkerLimitZeroFallsBackToSingle(t *testing.T) {
	cfg := newCfg(0.01)
	cfg.WorkerLimit = 0
	o := NewOptimizer(cfg, xorData(t))
	assert.Len(t, o.locals, 1)
}

func TestMultiWorkerConvergesXOR(t *testing.T) {
	ds := xorData(t)
	cfg := newCfg(0.01)
	cfg.WorkerLimit = 4

	o := NewOptimizer(cfg, ds)
	require.NoError(t, o.Initialize())

	done := make(chan struct{})
	for w := 0; w < 4; w++ {
		go func(id int) {
			for o.Iterate(id) {
			}
			done <- struct{}{}
		}(w)
	}
	for w := 0; w < 4; w++ {
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			t.Fatal("workers did not terminate")
		}
	}

	require.True(t, o.Complete())
	lower, upper := o.ObjectiveBoundary()
	assert.InDelta(t, 0.04, lower, 1e-9)
	assert.InDelta(t, 0.04, upper, 1e-9)
}

// Invariants over the whole graph after a run: for every vertex
// lower <= upper <= base objective, and every stored split bound is
// consistent.
func TestGraphInvariantsAfterRun(t *testing.T) {
	ds := randomData(t, 16, 4)
	cfg := newCfg(0.02)

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)

	lower, upper := o.ObjectiveBoundary()
	assert.LessOrEqual(t, lower, upper+1e-9)

	o.graph.vertices.Range(func(key string, e *cmap.Entry[*Task]) bool {
		v := e.Value
		assert.LessOrEqual(t, v.Lower, v.Upper+1e-9, "vertex lower > upper")
		assert.LessOrEqual(t, v.Upper, v.BaseObjective+1e-9, "vertex upper > base")
		return true
	})

	o.graph.bounds.Range(func(key string, e *cmap.Entry[[]SplitBound]) bool {
		for _, sb := range e.Value {
			assert.LessOrEqual(t, sb.Lower, sb.Upper+1e-9, "split lower > upper")
			assert.GreaterOrEqual(t, sb.Lower, -1e-9, "split lower negative")
		}
		return true
	})
}

// Duplicate messages must not change the graph: dispatching the root
// exploration twice yields the same vertex count and bounds as once.
func TestDispatchIdempotence(t *testing.T) {
	runOnce := func(duplicateRoot bool) (int, float64, float64) {
		ds := xorData(t)
		cfg := newCfg(0.01)
		o := NewOptimizer(cfg, ds)
		require.NoError(t, o.Initialize())
		if duplicateRoot {
			// Clone the pending root message back onto the queue.
			msg, ok := o.queue.Pop()
			require.True(t, ok)
			o.queue.Push(msg, msg.Priority)
			o.queue.Push(msg, msg.Priority)
		}
		for o.Iterate(0) {
		}
		lower, upper := o.ObjectiveBoundary()
		return o.Size(), lower, upper
	}

	size1, lower1, upper1 := runOnce(false)
	size2, lower2, upper2 := runOnce(true)
	assert.Equal(t, size1, size2)
	assert.InDelta(t, lower1, lower2, 1e-9)
	assert.InDelta(t, upper1, upper2, 1e-9)
}

func TestGraphSizeMonotonic(t *testing.T) {
	ds := xorData(t)
	cfg := newCfg(0.01)
	o := NewOptimizer(cfg, ds)
	require.NoError(t, o.Initialize())

	prev := 0
	for o.Iterate(0) {
		size := o.Size()
		require.GreaterOrEqual(t, size, prev)
		prev = size
	}
}

// With a time limit and artificially slowed iterations, a hard problem
// must stop in the TIMEOUT condition: bounds apart, work still queued.
func TestTimeout(t *testing.T) {
	ds := randomData(t, 32, 12)
	cfg := newCfg(0.001)
	cfg.TimeLimit = 1

	o := NewOptimizer(cfg, ds)
	o.tickDuration = 10
	testIterateDelay = 2 * time.Millisecond
	defer func() { testIterateDelay = 0 }()

	require.NoError(t, o.Initialize())
	start := time.Now()
	for o.Iterate(0) {
		require.Less(t, time.Since(start), 30*time.Second)
	}

	assert.True(t, o.Timeout())
	assert.False(t, o.Complete())
	lower, upper := o.ObjectiveBoundary()
	assert.Less(t, lower, upper)
	assert.Greater(t, o.QueueLen(), 0)
}

func TestModelLimitZeroExtractsNothing(t *testing.T) {
	ds := xorData(t)
	cfg := newCfg(0.01)
	cfg.ModelLimit = 0

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)
	require.True(t, o.Complete())

	assert.Empty(t, o.Models())
}

func TestModelLimitCapsResults(t *testing.T) {
	// Two interchangeable features produce multiple optimal trees; the
	// limit caps how many are returned.
	input := dataset.BoolMatrixFrom([][]bool{
		{false, false, true, false},
		{true, true, false, true},
	})
	ds, err := dataset.New(input, dataset.UnitCosts(2, 2), [][]int{{0}, {1}})
	require.NoError(t, err)

	cfg := newCfg(0.01)
	cfg.ModelLimit = 10

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)
	require.True(t, o.Complete())

	models := o.Models()
	require.NotEmpty(t, models)
	assert.LessOrEqual(t, len(models), 10)
	for _, m := range models {
		assert.InDelta(t, models[0].Objective(), m.Objective(), 1e-6)
	}
}

func TestGreedyUpperBounds(t *testing.T) {
	ds := xorData(t)
	cfg := newCfg(0.01)

	greedy := Greedy(ds, cfg)

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)
	_, upper := o.ObjectiveBoundary()

	assert.GreaterOrEqual(t, greedy+1e-9, upper, "greedy risk must upper bound the optimum")
}

func TestUpperboundGuessStillConverges(t *testing.T) {
	ds := xorData(t)
	cfg := newCfg(0.01)
	cfg.UpperboundGuess = Greedy(ds, cfg)

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)

	require.True(t, o.Complete())
	_, upper := o.ObjectiveBoundary()
	assert.InDelta(t, 0.04, upper, 1e-9)
}

func TestModelsAreDeduplicated(t *testing.T) {
	ds := xorData(t)
	cfg := newCfg(0.01)
	cfg.ModelLimit = 100

	o := NewOptimizer(cfg, ds)
	runToCompletion(t, o)

	models := o.Models()
	seen := map[string]bool{}
	for _, m := range models {
		sig := m.Signature()
		assert.False(t, seen[sig], "duplicate model extracted")
		seen[sig] = true
	}
}
