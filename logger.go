package optree

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with optree-specific context. This provides
// structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler. If handler is nil,
// uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithWorkers adds a worker-count field to the logger.
func (l *Logger) WithWorkers(n int) *Logger {
	return &Logger{Logger: l.Logger.With("workers", n)}
}

// WithRegularization adds the leaf penalty field to the logger.
func (l *Logger) WithRegularization(lambda float64) *Logger {
	return &Logger{Logger: l.Logger.With("regularization", lambda)}
}

// LogFit logs the outcome of an optimization run.
func (l *Logger) LogFit(ctx context.Context, res *Result, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fit failed", "error", err)
		return
	}
	l.InfoContext(ctx, "fit completed",
		"status", res.Status.String(),
		"lower_bound", res.LowerBound,
		"upper_bound", res.UpperBound,
		"graph_size", res.GraphSize,
		"iterations", res.NIterations,
		"time_elapsed", res.TimeElapsed,
	)
}

// LogExtraction logs the model-extraction pass.
func (l *Logger) LogExtraction(ctx context.Context, count int, loss float64) {
	l.DebugContext(ctx, "models extracted",
		"count", count,
		"model_loss", loss,
	)
}
