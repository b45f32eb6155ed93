// Package engine implements the concurrent branch-and-bound optimizer: a
// dependency graph of subproblems keyed by capture sets, driven by a
// priority queue of exploration and exploitation messages.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/optree/config"
	"github.com/hupe1980/optree/dataset"
	"github.com/hupe1980/optree/internal/bitvec"
	"github.com/hupe1980/optree/internal/pqueue"
)

// defaultTickDuration is the number of iterations between periodic
// completion and timeout checks on worker 0.
const defaultTickDuration = 10000

// Optimizer owns the dependency graph, the message queue, the per-worker
// scratch and the global objective boundary.
type Optimizer struct {
	cfg *config.Config
	ds  *dataset.Dataset
	log *slog.Logger

	graph  *Graph
	queue  *pqueue.Queue[Message]
	locals []LocalState

	startTime    time.Time
	ticks        uint64
	tickDuration uint64

	active  atomic.Bool
	stopped atomic.Bool
	failed  atomic.Bool

	// rootKey is written once by the worker that dispatches the root
	// exploration, under the root vertex lock.
	rootKey atomic.Pointer[string]

	// Global objective boundary. Written only while holding the root
	// vertex entry; read without locking.
	globalLower atomic.Uint64
	globalUpper atomic.Uint64

	explore atomic.Uint64
	exploit atomic.Uint64

	profileFile  *os.File
	printLimiter *rate.Limiter
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the structured logger used for progress and diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(o *Optimizer) {
		if log != nil {
			o.log = log
		}
	}
}

// NewOptimizer creates an optimizer over an immutable dataset and
// configuration.
func NewOptimizer(cfg *config.Config, ds *dataset.Dataset, optFns ...Option) *Optimizer {
	o := &Optimizer{
		cfg:          cfg,
		ds:           ds,
		log:          slog.Default(),
		graph:        NewGraph(),
		queue:        pqueue.New[Message](),
		locals:       make([]LocalState, cfg.Workers()),
		tickDuration: defaultTickDuration,
		printLimiter: rate.NewLimiter(rate.Limit(4), 1),
	}
	for i := range o.locals {
		o.locals[i] = newLocalState(ds.NumRows(), ds.NumFeatures())
	}
	o.active.Store(true)
	storeFloat(&o.globalLower, math.Inf(-1))
	storeFloat(&o.globalUpper, math.Inf(1))
	for _, fn := range optFns {
		fn(o)
	}
	return o
}

// Initialize seeds the queue with the root exploration message and starts
// the clock.
func (o *Optimizer) Initialize() error {
	if o.cfg.Profile != "" {
		f, err := os.Create(o.cfg.Profile)
		if err != nil {
			return fmt.Errorf("engine: create profile %s: %w", o.cfg.Profile, err)
		}
		if _, err := fmt.Fprintln(f, "iterations,time,lower_bound,upper_bound,graph_size,queue_size,explore,exploit"); err != nil {
			f.Close()
			return err
		}
		o.profileFile = f
	}

	capture := bitvec.Full(o.ds.NumRows())
	capture.SetDepthBudget(o.cfg.DepthBudget)
	features := bitvec.Full(o.ds.NumFeatures())

	msg := newExploration("", capture, features, 0, math.Inf(1), 0, o.ds.NumFeatures())
	o.queue.Push(msg, msg.Priority)

	o.startTime = time.Now()
	return nil
}

// Close releases the profile log, if any.
func (o *Optimizer) Close() error {
	if o.profileFile != nil {
		return o.profileFile.Close()
	}
	return nil
}

// Iterate pops and dispatches one message for the given worker. Worker 0
// additionally maintains ticks, re-evaluates the shared active flag and
// emits progress. It returns whether the optimization is still active.
func (o *Optimizer) Iterate(id int) bool {
	update := false
	if msg, ok := o.queue.Pop(); ok {
		var err error
		update, err = o.dispatch(&msg, id)
		if err != nil {
			o.fail(err)
			return false
		}
		switch msg.Code {
		case explorationMessage:
			o.explore.Add(1)
		case exploitationMessage:
			o.exploit.Add(1)
		}
	}

	if testIterateDelay > 0 {
		time.Sleep(testIterateDelay)
	}

	if id == 0 {
		o.ticks++
		if update || o.Complete() || o.ticks%o.tickDuration == 0 {
			o.active.Store(!o.Complete() && !o.Timeout() && !o.stopped.Load() &&
				(o.cfg.Workers() > 1 || o.queue.Len() > 0))
			o.progress()
			o.profileTick()
		}
	}
	return o.active.Load()
}

// Stop cooperatively halts the optimization: it clears the active flag at
// once, and each worker stops at its next iterate boundary.
func (o *Optimizer) Stop() {
	o.stopped.Store(true)
	o.active.Store(false)
}

// fail records a fatal worker error; the remaining workers observe the
// cleared active flag at their next iterate boundary.
func (o *Optimizer) fail(err error) {
	o.failed.Store(true)
	o.active.Store(false)
	o.log.Error("optimizer worker failed", "error", err)
}

// Failed reports whether a worker aborted on an integrity violation.
func (o *Optimizer) Failed() bool { return o.failed.Load() }

// ObjectiveBoundary returns the certified global bounds.
func (o *Optimizer) ObjectiveBoundary() (lower, upper float64) {
	return loadFloat(&o.globalLower), loadFloat(&o.globalUpper)
}

// Uncertainty returns the global optimality gap, zero when within epsilon.
func (o *Optimizer) Uncertainty() float64 {
	lower, upper := o.ObjectiveBoundary()
	if gap := upper - lower; gap >= epsilon {
		return gap
	}
	return 0
}

// Complete reports whether the global bounds have met.
func (o *Optimizer) Complete() bool { return o.Uncertainty() == 0 }

// TimeElapsed returns the wall time spent in the optimization, in seconds.
func (o *Optimizer) TimeElapsed() float64 {
	return time.Since(o.startTime).Seconds()
}

// Timeout reports whether the configured time limit has elapsed.
func (o *Optimizer) Timeout() bool {
	return o.cfg.TimeLimit > 0 && o.TimeElapsed() > float64(o.cfg.TimeLimit)
}

// Size returns the number of vertices in the dependency graph.
func (o *Optimizer) Size() int { return o.graph.Size() }

// QueueLen returns the number of pending messages.
func (o *Optimizer) QueueLen() int { return o.queue.Len() }

// updateRoot publishes the root bounds as the global objective boundary.
// Called only while holding the root vertex entry.
func (o *Optimizer) updateRoot(lower, upper float64) bool {
	prevLower, prevUpper := o.ObjectiveBoundary()
	changed := lower != prevLower || upper != prevUpper
	lower = math.Min(lower, upper)
	storeFloat(&o.globalLower, lower)
	storeFloat(&o.globalUpper, upper)
	return changed
}

func (o *Optimizer) progress() {
	if !o.cfg.Verbose || !o.printLimiter.Allow() {
		return
	}
	lower, upper := o.ObjectiveBoundary()
	o.log.Info("optimizing",
		"time", o.TimeElapsed(),
		"lower_bound", lower,
		"upper_bound", upper,
		"boundary", upper-lower,
		"graph_size", o.graph.Size(),
		"queue_size", o.queue.Len(),
	)
}

func (o *Optimizer) profileTick() {
	if o.profileFile == nil {
		return
	}
	lower, upper := o.ObjectiveBoundary()
	fmt.Fprintf(o.profileFile, "%d,%f,%f,%f,%d,%d,%d,%d\n",
		o.ticks, o.TimeElapsed(), lower, upper,
		o.graph.Size(), o.queue.Len(),
		o.explore.Swap(0), o.exploit.Swap(0))
}

// Explored and Exploited return the message counters accumulated since the
// last profile flush.
func (o *Optimizer) Explored() uint64  { return o.explore.Load() }
func (o *Optimizer) Exploited() uint64 { return o.exploit.Load() }

func storeFloat(a *atomic.Uint64, f float64) { a.Store(math.Float64bits(f)) }

func loadFloat(a *atomic.Uint64) float64 { return math.Float64frombits(a.Load()) }

// testIterateDelay slows each iteration; set only from tests to exercise
// timeout handling deterministically.
var testIterateDelay time.Duration
