// Package logging builds the process logger.
package logging

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/storyorder/internal/ctxutil"
)

// New builds a production JSON logger. level is a zap level name ("debug",
// "info", "warn", "error"); verbose forces debug.
func New(level string, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// NewWriter builds a JSON logger writing to w at the given level.
// Used by tests and by commands that capture logs.
func NewWriter(w io.Writer, level zapcore.Level) *zap.Logger {
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core)
}

// WithRun returns a logger tagged with the run ID carried by ctx, if any.
func WithRun(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if runID := ctxutil.RunIDFromContext(ctx); runID != "" {
		return logger.With(zap.String("run_id", runID))
	}
	return logger
}
