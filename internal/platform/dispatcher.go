package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/cfd24/hoyolab-auto/internal/config"
)

// Dispatcher fans notifications out to every connected platform behind a
// shared token bucket.
type Dispatcher struct {
	platforms []Platform
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewDispatcher returns a dispatcher over platforms. Burst equals the
// per-second rate.
func NewDispatcher(platforms []Platform, cfg config.NotificationConfig, logger *slog.Logger) *Dispatcher {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = config.DefaultNotifyRatePerSec
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		platforms: platforms,
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
		logger:    logger.With("component", "dispatcher"),
	}
}

// Platforms returns the number of platforms messages are sent to.
func (d *Dispatcher) Platforms() int { return len(d.platforms) }

// Notify sends msg to every platform. A failing platform does not stop the
// others; all failures are joined into the returned error.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	if len(d.platforms) == 0 {
		d.logger.DebugContext(ctx, "No platforms configured, dropping notification", "title", msg.Title)
		return nil
	}

	var errs []error
	for _, p := range d.platforms {
		if err := d.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notification to %s not sent: %w", p.ID(), err))
			break
		}
		if err := p.Send(ctx, msg); err != nil {
			d.logger.WarnContext(ctx, "Failed to send notification", "platform", p.ID(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.ID(), err))
		}
	}

	return errors.Join(errs...)
}
