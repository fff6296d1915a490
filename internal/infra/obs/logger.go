package obs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions tunes NewLogger. File, when set, receives a rotated JSON copy of every record.
type LoggerOptions struct {
	Env   string
	Level string
	File  string
}

// NewLogger configures slog logger with colorful dev output and JSON for production-like envs.
func NewLogger(opts LoggerOptions) *slog.Logger {
	return newLogger(opts, os.Stdout)
}

func newLogger(opts LoggerOptions, stdout io.Writer) *slog.Logger {
	level := ParseLevel(opts.Level)
	var console slog.Handler
	if opts.Env == "dev" || opts.Env == "local" {
		console = tint.NewHandler(stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			AddSource:  true,
		})
	} else {
		console = slog.NewJSONHandler(stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
	}
	if opts.File == "" {
		return slog.New(console)
	}
	rotated := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10,
		MaxBackups: 7,
		MaxAge:     28,
		Compress:   true,
	}
	file := slog.NewJSONHandler(rotated, &slog.HandlerOptions{Level: level})
	return slog.New(fanout{console, file})
}

// ParseLevel maps LOG_LEVEL values onto slog levels, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
