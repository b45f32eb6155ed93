package optree

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/optree/config"
	"github.com/hupe1980/optree/dataset"
	"github.com/hupe1980/optree/engine"
	"github.com/hupe1980/optree/model"
)

// Fit searches for the provably optimal sparse decision trees of a dataset.
// The run terminates when the certified bounds meet, the time limit
// elapses, or the context is cancelled.
func Fit(ctx context.Context, ds *dataset.Dataset, optFns ...Option) (*Result, error) {
	opts := options{
		cfg:    config.Default(),
		logger: NewLogger(nil),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return FitConfig(ctx, ds, opts.cfg, opts.logger)
}

// FitConfig is Fit with a fully built configuration.
func FitConfig(ctx context.Context, ds *dataset.Dataset, cfg config.Config, logger *Logger) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewLogger(nil)
	}

	opt := engine.NewOptimizer(&cfg, ds, engine.WithLogger(logger.Logger))
	defer opt.Close()
	if err := opt.Initialize(); err != nil {
		return nil, err
	}

	// Translate context cancellation into a cooperative stop; workers
	// observe the cleared active flag at their next iterate boundary.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			opt.Stop()
		case <-watchDone:
		}
	}()

	workers := cfg.Workers()
	iterations := make([]uint64, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					opt.Stop()
					cause, ok := r.(error)
					if !ok {
						cause = fmt.Errorf("%v", r)
					}
					err = &ErrWorkerAborted{Worker: id, cause: cause}
				}
			}()
			for opt.Iterate(id) {
				iterations[id]++
			}
			return nil
		})
	}
	workerErr := g.Wait()
	close(watchDone)

	lower, upper := opt.ObjectiveBoundary()
	res := &Result{
		GraphSize:   uint64(opt.Size()),
		LowerBound:  lower,
		UpperBound:  upper,
		TimeElapsed: opt.TimeElapsed(),
		Status:      StatusConverged,
	}
	for _, n := range iterations {
		res.NIterations += n
	}

	if workerErr != nil || opt.Failed() {
		if workerErr != nil {
			logger.Error("optimization aborted", "error", workerErr)
		}
		res.Status = StatusNonConvergence
		logger.LogFit(ctx, res, nil)
		return res, nil
	}

	if !opt.Complete() {
		if opt.Timeout() || opt.QueueLen() > 0 || ctx.Err() != nil {
			res.Status = StatusTimeout
		} else {
			res.Status = StatusNonConvergence
		}
		if cfg.Diagnostics {
			logger.Info("non-convergence detected, beginning diagnosis")
			opt.DiagnoseNonConvergence()
		}
	}

	models := opt.Models()
	if len(models) > 0 {
		res.ModelLoss = models[0].Loss()
		serialized, err := model.Serialize(models)
		if err != nil {
			return nil, fmt.Errorf("optree: serialize models: %w", err)
		}
		res.Model = serialized
		logger.LogExtraction(ctx, len(models), res.ModelLoss)
	} else if opt.Complete() && cfg.ModelLimit > 0 {
		// The bounds met but the graph yields no model: premature
		// termination.
		res.Status = StatusFalseConvergence
		if cfg.Diagnostics {
			logger.Info("false convergence detected, beginning diagnosis")
			opt.DiagnoseNonConvergence()
		}
	}

	logger.LogFit(ctx, res, nil)
	return res, nil
}

// GreedyGuess estimates an upper bound on the optimal objective with a
// greedy information-gain tree, suitable for WithUpperboundGuess.
func GreedyGuess(ds *dataset.Dataset, lambda float64) float64 {
	cfg := config.Default()
	cfg.Regularization = lambda
	return engine.Greedy(ds, &cfg)
}
