package windowpool

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with windowpool-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithStore adds the store name to the logger.
func (l *Logger) WithStore(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("store", name),
	}
}

// WithBrick adds a brick index field to the logger.
func (l *Logger) WithBrick(index int) *Logger {
	return &Logger{
		Logger: l.Logger.With("brick", index),
	}
}

// LogSetup logs the outcome of brick sizing at construction.
func (l *Logger) LogSetup(brickCount, brickSize int, availableMem, fileSize int64) {
	l.Info("window pool configured",
		"brick_count", brickCount,
		"brick_size", brickSize,
		"available_mem", availableMem,
		"file_size", fileSize,
	)
}

// LogMappingDisabled logs that memory mapping was turned off at setup.
func (l *Logger) LogMappingDisabled(availableMem, wantedMem int64) {
	l.Warn("memory mapped windows turned off",
		"available_mem", availableMem,
		"wanted_mem", wantedMem,
	)
}

// LogRefresh logs the outcome of a refresh pass.
func (l *Logger) LogRefresh(switches int64, memUsed int64, took time.Duration) {
	l.Debug("brick refresh completed",
		"switches", switches,
		"mem_used", memUsed,
		"took", took,
	)
}

// LogAllocationError logs a window allocation failure.
func (l *Logger) LogAllocationError(brick int, description string, err error) {
	l.Warn("window allocation failed",
		"brick", brick,
		"description", description,
		"error", err,
	)
}

// LogClose logs the final counters at close.
func (l *Logger) LogClose(hit, miss, switches, ooe int64) {
	l.Info("window pool closed",
		"hit", hit,
		"miss", miss,
		"switches", switches,
		"ooe", ooe,
	)
}
