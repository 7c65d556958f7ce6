// Package logger provides structured logging functionality for hoyolab-auto.
// It uses Go's slog package with configurable levels and formats, and can
// tee output into a rotated log file.
package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cfd24/hoyolab-auto/internal/config"
)

// NewLogger creates a new slog Logger from the logger configuration section.
// The returned closer releases the log file, if one was configured.
func NewLogger(cfg config.LoggerConfig) (*slog.Logger, io.Closer) {
	out, closer := output(cfg.File)

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closer
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func output(cfg config.FileConfig) (io.Writer, io.Closer) {
	if cfg.Path == "" {
		return os.Stdout, nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(os.Stdout, file), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
