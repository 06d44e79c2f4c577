// Package log provides structured logging for neurogo's machine learning and
// federation operations.
//
// It defines a minimal, slog-compatible Logger interface so implementations
// can be swapped freely, together with standard attribute keys for ML
// workloads (operation types, data shapes, metrics) and neuron federation
// context (neuron id, command type, health score). The default provider is
// backed by zerolog and knows how to surface cockroachdb/errors stack traces
// as a structured attribute.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("ensemble.random_forest").With(
//	    log.ModelNameKey, "RandomForestClassifier",
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1000,
//	    log.FeaturesKey, 5,
//	)
package log

import (
	"context"
)

// Logger is a structured logging interface compatible with Go's log/slog
// conventions. Fields are alternating key-value pairs; a trailing key with no
// value is dropped. Passing an error value attaches it under its key and, when
// the error carries a cockroachdb/errors stack trace, a stacktrace attribute.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// An error value among the fields is rendered with its stack trace when
	// one is available.
	Error(msg string, fields ...any)

	// With returns a new Logger that includes the given fields in every
	// subsequent record.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip expensive attribute construction:
	//
	//	if logger.Enabled(ctx, log.LevelDebug) {
	//	    logger.Debug("fold detail", "indices", expensiveDump())
	//	}
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, value-compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers. It exists so components can
// receive their logging dependency explicitly and tests can substitute a
// capturing implementation.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum level for loggers created by this provider.
	SetLevel(level Level)
}
