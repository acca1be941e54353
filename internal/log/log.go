// Package log configures the process-wide slog logger. Records fan out to
// a stderr handler for the operator and, when a debug directory is set, a
// JSON file handler that always records at debug level.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

var logger = slog.Default()
var fileSink *FileSink

// Options configures the logger.
type Options struct {
	// Verbose lowers the stderr threshold from Warn to Debug.
	Verbose bool
	// JSONFormat switches stderr output from text to JSON.
	JSONFormat bool
	// Quiet suppresses debug/info on stderr even when Verbose is set,
	// used while the progress bar owns the terminal.
	Quiet bool
	// DebugDir enables file logging when non-empty.
	DebugDir string
	// RetentionDays removes debug files older than this many days at
	// startup. Zero keeps everything.
	RetentionDays int
	// Stderr overrides the stderr writer (for testing).
	Stderr io.Writer
}

// Init installs the global logger. It is called once from the CLI before
// any engine work starts.
func Init(opts Options) error {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	level := slog.LevelWarn
	if opts.Verbose && !opts.Quiet {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if opts.JSONFormat {
		handlers = append(handlers, slog.NewJSONHandler(stderr, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(stderr, handlerOpts))
	}

	if opts.DebugDir != "" {
		if opts.RetentionDays > 0 {
			Cleanup(opts.DebugDir, opts.RetentionDays)
		}
		sink, err := NewFileSink(opts.DebugDir)
		if err != nil {
			return err
		}
		fileSink = sink
		handlers = append(handlers, slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	logger = slog.New(&teeHandler{handlers: handlers})
	slog.SetDefault(logger)
	return nil
}

// Close flushes and closes the debug file, if one is open.
func Close() {
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
}

// WithRun tags all subsequent records with the run identifier.
func WithRun(runID string) {
	logger = slog.New(logger.Handler().WithAttrs([]slog.Attr{slog.String("run_id", runID)}))
	slog.SetDefault(logger)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { logger.Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { logger.Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { logger.Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { logger.Error(msg, args...) }

// With returns a child logger carrying extra attributes.
func With(args ...any) *slog.Logger { return logger.With(args...) }

// SetOutput points the logger at a plain text writer (for testing).
func SetOutput(w io.Writer) {
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// teeHandler duplicates records across handlers. A record is handled by
// every handler whose level admits it.
type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: next}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: next}
}
