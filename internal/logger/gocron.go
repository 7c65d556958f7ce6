package logger

import (
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// gocronLogAdapter forwards gocron's internal logging to slog.
type gocronLogAdapter struct {
	log *slog.Logger
}

// NewGocronLogger returns a gocron.Logger writing to log under the
// "gocron" component.
//
//nolint:ireturn // Interface return is required by gocron's API contract
func NewGocronLogger(log *slog.Logger) gocron.Logger {
	if log == nil {
		log = slog.Default()
	}
	return &gocronLogAdapter{log: log.With("component", "gocron")}
}

func (l *gocronLogAdapter) Debug(msg string, args ...any) {
	l.log.Debug(msg, toSlogArgs(args)...)
}

func (l *gocronLogAdapter) Info(msg string, args ...any) {
	l.log.Info(msg, toSlogArgs(args)...)
}

func (l *gocronLogAdapter) Warn(msg string, args ...any) {
	l.log.Warn(msg, toSlogArgs(args)...)
}

func (l *gocronLogAdapter) Error(msg string, args ...any) {
	l.log.Error(msg, toSlogArgs(args)...)
}

func toSlogArgs(args []any) []any {
	slogArgs := make([]any, 0, len(args))

	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			key, ok := args[i].(string)
			if !ok {
				key = fmt.Sprintf("%v", args[i])
			}

			slogArgs = append(slogArgs, key, args[i+1])
		} else {
			slogArgs = append(slogArgs, "value", args[i])
		}
	}

	return slogArgs
}
