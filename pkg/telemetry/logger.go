// Copyright 2025 BPI Labs
//
// Package telemetry provides structured, per-component logging and a
// Prometheus metrics registry, the two ambient pieces every RP/CE/LA/
// EE/BM/PC component wires into rather than writing to stdout
// directly.

package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Field is a single structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// LogConfig selects the logger's output shape.
type LogConfig struct {
	Level     slog.Level
	Format    string // "json" or "text"
	AddSource bool
}

// DefaultLogConfig returns info-level JSON logging, the production
// default for every long-running node process.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: slog.LevelInfo, Format: "json"}
}

// Logger wraps slog.Logger with the component/field conveniences the
// rest of the module threads through its operations.
type Logger struct {
	*slog.Logger
}

// NewLogger builds a Logger writing to stderr per cfg.
func NewLogger(cfg LogConfig) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// WithComponent tags every subsequent line with the owning subsystem,
// e.g. "receipt", "consensus", "bankmesh".
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields(Field{Key: "component", Value: component})
}

// WithFields returns a derived logger carrying the given fields on
// every subsequent line.
func (l *Logger) WithFields(fields ...Field) *Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithError returns a derived logger carrying the error's message as
// a field; nil is a no-op so call sites don't need to branch.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields(Field{Key: "error", Value: err.Error()})
}

// WithContext pulls the request-scoped trace id out of ctx, if one was
// set via ContextWithTraceID, and attaches it as a field.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	traceID, ok := ctx.Value(traceIDKey{}).(string)
	if !ok || traceID == "" {
		return l
	}
	return l.WithFields(Field{Key: "trace_id", Value: traceID})
}

type traceIDKey struct{}

// ContextWithTraceID attaches a trace id to ctx for later retrieval by
// Logger.WithContext.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// Timed logs msg at info level with an elapsed_ms field measuring how
// long fn took to run, and returns fn's error unchanged.
func (l *Logger) Timed(msg string, fn func() error) error {
	start := time.Now()
	err := fn()
	l.WithFields(
		Field{Key: "elapsed_ms", Value: time.Since(start).Milliseconds()},
	).WithError(err).Info(msg)
	return err
}
