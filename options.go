package optree

import (
	"github.com/hupe1980/optree/config"
)

type options struct {
	cfg    config.Config
	logger *Logger
}

// Option configures a Fit call.
//
// Options exist to avoid exploding the API surface; FitConfig accepts a
// fully built configuration instead.
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithRegularization sets the per-leaf penalty.
func WithRegularization(lambda float64) Option {
	return func(o *options) {
		o.cfg.Regularization = lambda
	}
}

// WithUpperboundGuess caps the root upper bound, typically with a greedy
// estimate. Zero disables the cap.
func WithUpperboundGuess(guess float64) Option {
	return func(o *options) {
		o.cfg.UpperboundGuess = guess
	}
}

// WithTimeLimit bounds the runtime in seconds. Zero means unlimited.
func WithTimeLimit(seconds uint) Option {
	return func(o *options) {
		o.cfg.TimeLimit = seconds
	}
}

// WithWorkerLimit sets the number of worker goroutines. Zero falls back to
// a single worker.
func WithWorkerLimit(workers uint) Option {
	return func(o *options) {
		o.cfg.WorkerLimit = workers
	}
}

// WithModelLimit caps the number of extracted models. Zero extracts
// nothing.
func WithModelLimit(limit uint) Option {
	return func(o *options) {
		o.cfg.ModelLimit = limit
	}
}

// WithDepthBudget bounds tree depth, counting a lone root as depth 1. Zero
// means unlimited.
func WithDepthBudget(depth uint8) Option {
	return func(o *options) {
		o.cfg.DepthBudget = depth
	}
}

// WithReferenceLB enables the reference-prediction lower bound. The dataset
// must carry reference predictions.
func WithReferenceLB(enabled bool) Option {
	return func(o *options) {
		o.cfg.ReferenceLB = enabled
	}
}

// WithLookAhead toggles the one-step look-ahead bound.
func WithLookAhead(enabled bool) Option {
	return func(o *options) {
		o.cfg.LookAhead = enabled
	}
}

// WithSimilarSupport toggles the similar-support bound.
func WithSimilarSupport(enabled bool) Option {
	return func(o *options) {
		o.cfg.SimilarSupport = enabled
	}
}

// WithCancellation toggles collapsing provably dead subproblems.
func WithCancellation(enabled bool) Option {
	return func(o *options) {
		o.cfg.Cancellation = enabled
	}
}

// WithRuleList restricts models to rule-list topology.
func WithRuleList(enabled bool) Option {
	return func(o *options) {
		o.cfg.RuleList = enabled
	}
}

// WithVerbose enables progress reporting.
func WithVerbose(enabled bool) Option {
	return func(o *options) {
		o.cfg.Verbose = enabled
	}
}

// WithDiagnostics enables non-convergence dumps.
func WithDiagnostics(enabled bool) Option {
	return func(o *options) {
		o.cfg.Diagnostics = enabled
	}
}

// WithProfile writes per-tick runtime statistics to a CSV file.
func WithProfile(path string) Option {
	return func(o *options) {
		o.cfg.Profile = path
	}
}

// WithLogger sets the logger used for progress and diagnostics. Pass
// NoopLogger() to silence the run.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
