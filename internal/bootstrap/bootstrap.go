// Package bootstrap establishes independent external sessions (game
// accounts, notification platforms) concurrently before scheduling starts.
// Unlike task runs, a single failed session fails the whole bootstrap.
package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/cfd24/hoyolab-auto/internal/errors"
)

// Session is anything that must connect before the scheduler starts.
type Session interface {
	// ID identifies the session in logs and errors.
	ID() string
	// Connect establishes the session. It must return an error on any
	// unrecoverable failure.
	Connect(ctx context.Context) error
}

// Connect starts every session's Connect at once and waits for all of them.
// If any fails, the context passed to the others is cancelled and the first
// failure is returned as a *errors.BootstrapError.
func Connect[S Session](ctx context.Context, logger *slog.Logger, kind string, sessions []S) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "bootstrap", "kind", kind)

	if len(sessions) == 0 {
		log.Warn("No sessions to connect")
		return nil
	}

	start := time.Now()
	log.Info("Connecting sessions", "count", len(sessions))

	g, gCtx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		g.Go(func() error {
			if err := s.Connect(gCtx); err != nil {
				log.Error("Failed to connect session", "session", s.ID(), "error", err)
				return apperrors.NewBootstrapError(s.ID(), err)
			}
			log.Debug("Session connected", "session", s.ID())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("All sessions connected", "count", len(sessions), "duration", time.Since(start))
	return nil
}
