// Package main contains the entrypoint for the hoyolab-auto daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cfd24/hoyolab-auto/internal/app"
	"github.com/cfd24/hoyolab-auto/internal/config"
	apperrors "github.com/cfd24/hoyolab-auto/internal/errors"
	"github.com/cfd24/hoyolab-auto/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run loads the configuration, starts the application and returns the
// process exit code once it stops.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	watch := flag.Bool("watch", true, "Reload schedules when the configuration file changes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log, closer := logger.NewLogger(cfg.Logger)
	defer closer.Close()
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	opts := []app.Option{}
	if *watch {
		opts = append(opts, app.WithConfigPath(*configPath))
	}

	log.Info("Starting hoyolab-auto...")
	runErr := app.New(cfg, log, opts...).Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Stopped due to error",
			"code", apperrors.Code(runErr),
			"fatal", apperrors.IsFatal(runErr),
			"error", runErr)
		// let the log sinks flush
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Stopped gracefully")
	return 0
}
