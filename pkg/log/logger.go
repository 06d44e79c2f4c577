package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	neuroerrors "github.com/YuminosukeSato/neurogo/pkg/errors"
)

// ParseLevel converts a level name ("debug", "info", "warn", "error") into a
// Level. Unknown names return an error so bad configuration fails loudly.
func ParseLevel(level string) (Level, error) {
	switch level {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func fromZerologLevel(level zerolog.Level) Level {
	switch level {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return LevelDebug
	case zerolog.InfoLevel:
		return LevelInfo
	case zerolog.WarnLevel:
		return LevelWarn
	default:
		return LevelError
	}
}

// zerologLogger implements Logger on top of a zerolog.Logger.
type zerologLogger struct {
	zl zerolog.Logger
}

// Debug implements Logger.Debug.
func (l *zerologLogger) Debug(msg string, fields ...any) {
	emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *zerologLogger) Info(msg string, fields ...any) {
	emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *zerologLogger) Warn(msg string, fields ...any) {
	emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (l *zerologLogger) Error(msg string, fields ...any) {
	emit(l.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (l *zerologLogger) With(fields ...any) Logger {
	zctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			zctx = zctx.Object(key, v)
		case error:
			zctx = zctx.AnErr(key, v)
		default:
			zctx = zctx.Interface(key, v)
		}
	}
	return &zerologLogger{zl: zctx.Logger()}
}

// Enabled implements Logger.Enabled.
func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return fromZerologLevel(l.zl.GetLevel()) <= level
}

func emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			ev.Object(key, v)
		case error:
			ev.AnErr(key, v)
			if st := extractStacktrace(v); st != "" {
				ev.Str(StacktraceAttrKey, st)
			}
		default:
			ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

// ZerologProvider is the default LoggerProvider, writing JSON records through
// zerolog.
type ZerologProvider struct {
	mu    sync.RWMutex
	out   io.Writer
	level Level
	root  zerolog.Logger
}

// NewZerologProvider creates a provider writing to w at the given level.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	p := &ZerologProvider{out: w, level: level}
	p.root = zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return p
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.root}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.root.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	p.root = p.root.Level(toZerologLevel(level))
}

var (
	providerMu      sync.RWMutex
	defaultProvider LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo)
)

// SetProvider replaces the process-wide provider. Components that received a
// logger at construction are unaffected.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	defaultProvider = p
}

// GetLogger returns the default logger from the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns a component-tagged logger from the current provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLoggerWithName(name)
}

// SetLevel adjusts the current provider's minimum level.
func SetLevel(level Level) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	defaultProvider.SetLevel(level)
}

// SetupLogger configures the default provider to write JSON records to stderr
// at the named level and routes pkg/errors warnings through it. Stderr keeps
// stdout free for the CLI's JSON output.
func SetupLogger(level string) error {
	lv, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetProvider(NewZerologProvider(os.Stderr, lv))
	installWarningBridge()
	return nil
}

// FileConfig describes rotating file output for long-running daemons.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SetupFileLogger configures the default provider to write to both stderr and
// a lumberjack-rotated file. Used by the neuron daemon.
func SetupFileLogger(level string, file FileConfig) error {
	lv, err := ParseLevel(level)
	if err != nil {
		return err
	}
	lj := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
	}
	w := zerolog.MultiLevelWriter(os.Stderr, lj)
	SetProvider(NewZerologProvider(w, lv))
	installWarningBridge()
	return nil
}

// installWarningBridge routes estimator warnings (convergence, data
// conversion, undefined metrics) into the structured log stream.
func installWarningBridge() {
	neuroerrors.SetZerologWarnFunc(func(warning error) {
		logger := GetLoggerWithName("warnings")
		if lom, ok := warning.(zerolog.LogObjectMarshaler); ok {
			logger.Warn(warning.Error(), "warning", lom)
			return
		}
		logger.Warn(warning.Error())
	})
}
