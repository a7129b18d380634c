// Package logger wraps slog with the console/JSON handler split and
// contextual field helpers the rest of the engine uses to attribute log
// lines to a specific execution and node.
package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with execution-scoped contextual fields.
type Logger struct {
	*slog.Logger
}

// New creates a Logger. format "json" uses slog's JSON handler (production);
// anything else uses tint for colored console output (local development).
func New(level, format string) *Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
			AddSource:  false,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithContext attaches trace_id from ctx, if present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if traceID := ctx.Value(traceIDKey{}); traceID != nil {
		return &Logger{Logger: l.With("trace_id", traceID)}
	}
	return l
}

type traceIDKey struct{}

// WithFields returns a logger with additional static fields attached.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// WithExecutionID scopes subsequent log lines to one workflow execution.
func (l *Logger) WithExecutionID(executionID string) *Logger {
	return &Logger{Logger: l.With("execution_id", executionID)}
}

// WithNodeID scopes subsequent log lines to one node within an execution.
func (l *Logger) WithNodeID(nodeID string) *Logger {
	return &Logger{Logger: l.With("node_id", nodeID)}
}

// Error logs an error with a stack trace attached, for failures that should
// be diagnosable after the fact without reproducing them.
func (l *Logger) Error(msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.Error(msg, args...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
