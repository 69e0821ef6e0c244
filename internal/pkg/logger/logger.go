package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
)

// Level represents the severity of a log entry.
type Level = slog.Level

const (
	DEBUG = slog.LevelDebug
	INFO  = slog.LevelInfo
	WARN  = slog.LevelWarn
	ERROR = slog.LevelError
)

// Options configures the process-wide logger.
type Options struct {
	Level Level
	// Pretty switches to colored human-readable output for local runs.
	Pretty    bool
	RedactPII bool
	Output    io.Writer
}

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	Init(Options{Level: INFO, RedactPII: true})
}

// Init replaces the default logger. It is meant to be called once from main.
func Init(opts Options) {
	defaultLogger.Store(New(opts))
}

// New builds a structured logger. Production output is JSON; Pretty output
// goes through tint.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var replace func([]string, slog.Attr) slog.Attr
	if opts.RedactPII {
		replace = redactAttr
	}

	var h slog.Handler
	if opts.Pretty {
		h = tint.NewHandler(out, &tint.Options{
			Level:       opts.Level,
			TimeFormat:  time.Kitchen,
			ReplaceAttr: replace,
		})
	} else {
		h = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       opts.Level,
			ReplaceAttr: replace,
		})
	}
	return slog.New(h)
}

// ParseLevel maps a config string to a Level. Unknown values yield INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Default returns the process-wide logger.
func Default() *slog.Logger { return defaultLogger.Load() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...any) { Default().Debug(msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...any) { Default().Info(msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...any) { Default().Warn(msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...any) { Default().Error(msg, fields...) }
