package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	verboseMode atomic.Bool
	level       = new(slog.LevelVar)
	base        atomic.Pointer[slog.Logger]
)

func init() {
	// Logs go to stderr so reports written to stdout stay parseable.
	Configure(os.Stderr, false)
}

// Configure replaces the output sink. jsonFormat switches from the text
// handler to one JSON object per line.
func Configure(w io.Writer, jsonFormat bool) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if jsonFormat {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	base.Store(slog.New(h))
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(verbose bool) {
	verboseMode.Store(verbose)
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	return verboseMode.Load()
}

// With returns a structured logger carrying the given attributes, for callers
// that want key/value context (run IDs, package names) on every line.
func With(args ...any) *slog.Logger {
	return base.Load().With(args...)
}

// Debugf logs a formatted debug message if verbose mode is enabled.
func Debugf(format string, v ...interface{}) {
	if verboseMode.Load() {
		base.Load().Debug(fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted informational message.
func Infof(format string, v ...interface{}) {
	base.Load().Info(fmt.Sprintf(format, v...))
}

// Errorf logs a formatted error message.
func Errorf(format string, v ...interface{}) {
	base.Load().Error(fmt.Sprintf(format, v...))
}
