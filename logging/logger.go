// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer RunLogger with contextual helpers
// (run tag, task id, workflow node) used by agents and workflow executors.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the minimal logging interface for AgentRun.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// LoggerConfig configures construction of a RunLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// RunLogger wraps slog.Logger adding contextual cloning helpers. It is cheap
// to copy via the With* methods so every agent and workflow node can carry its
// own tagged logger.
type RunLogger struct {
	logger *slog.Logger
	level  LogLevel
}

// NewLogger builds a RunLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *RunLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &RunLogger{logger: slog.New(handler), level: cfg.Level}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTag returns a logger annotated with an agent run tag.
func (l *RunLogger) WithTag(tag string) *RunLogger {
	return &RunLogger{logger: l.logger.With("tag", tag), level: l.level}
}

// WithTask returns a logger annotated with a task id.
func (l *RunLogger) WithTask(taskID string) *RunLogger {
	return &RunLogger{logger: l.logger.With("task_id", taskID), level: l.level}
}

// WithNode returns a logger annotated with a workflow node name.
func (l *RunLogger) WithNode(node string) *RunLogger {
	return &RunLogger{logger: l.logger.With("node", node), level: l.level}
}

// Debug logs a debug message.
func (l *RunLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info logs an informational message.
func (l *RunLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn logs a warning message.
func (l *RunLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error logs an error message.
func (l *RunLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// ForTag annotates l with an agent run tag when l is a RunLogger; any other
// Logger passes through unchanged.
func ForTag(l Logger, tag string) Logger {
	if rl, ok := l.(*RunLogger); ok {
		return rl.WithTag(tag)
	}
	return l
}

// ForTask annotates l with a task id when l is a RunLogger.
func ForTask(l Logger, taskID string) Logger {
	if rl, ok := l.(*RunLogger); ok {
		return rl.WithTask(taskID)
	}
	return l
}

// ForNode annotates l with a workflow node name when l is a RunLogger.
func ForNode(l Logger, node string) Logger {
	if rl, ok := l.(*RunLogger); ok {
		return rl.WithNode(node)
	}
	return l
}

// NoOpLogger discards all log output. Useful as a default and in tests.
type NoOpLogger struct{}

// Debug does nothing.
func (NoOpLogger) Debug(msg string, args ...any) {}

// Info does nothing.
func (NoOpLogger) Info(msg string, args ...any) {}

// Warn does nothing.
func (NoOpLogger) Warn(msg string, args ...any) {}

// Error does nothing.
func (NoOpLogger) Error(msg string, args ...any) {}

// NewNoOpLogger creates a logger that discards everything.
func NewNoOpLogger() Logger {
	return NoOpLogger{}
}
