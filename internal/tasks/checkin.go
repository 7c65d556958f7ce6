package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/cfd24/hoyolab-auto/internal/hoyolab"
	"github.com/cfd24/hoyolab-auto/internal/platform"
)

func (d Deps) checkIn(ctx context.Context) error {
	return d.forEachAccount(ctx, CheckIn, supports(hoyolab.CapCheckIn), func(ctx context.Context, a Account) error {
		res, err := a.CheckIn(ctx)
		if err != nil {
			return err
		}
		if res.AlreadySigned {
			d.Logger.DebugContext(ctx, "Already checked in", "account", a.ID(), "total_days", res.TotalDays)
			return nil
		}

		d.Logger.InfoContext(ctx, "Checked in", "account", a.ID(), "total_days", res.TotalDays)
		return d.notify(ctx, a, "", 0, platform.Message{
			Title: a.Game().Name + " Check-in",
			Body:  fmt.Sprintf("%s checked in. Total check-ins this month: %d.", who(a), res.TotalDays),
		})
	})
}

// missedCheckIn catches accounts the midnight check-in did not cover and
// signs them in before the day ends.
func (d Deps) missedCheckIn(ctx context.Context) error {
	return d.forEachAccount(ctx, MissedCheckIn, supports(hoyolab.CapCheckIn), func(ctx context.Context, a Account) error {
		info, err := a.SignInfo(ctx)
		if err != nil {
			return err
		}
		if info.IsSigned {
			return nil
		}

		d.Logger.WarnContext(ctx, "Check-in missed, signing now", "account", a.ID())
		res, err := a.CheckIn(ctx)
		if err != nil {
			notifyErr := d.notify(ctx, a, d.dailyKey(MissedCheckIn, a), 24*time.Hour, platform.Message{
				Title: a.Game().Name + " Missed Check-in",
				Body:  fmt.Sprintf("%s has not checked in today and the retry failed: %v", who(a), err),
			})
			return joinNotifyErr(err, notifyErr)
		}

		return d.notify(ctx, a, "", 0, platform.Message{
			Title: a.Game().Name + " Missed Check-in",
			Body:  fmt.Sprintf("%s missed today's check-in and was signed in late. Total check-ins this month: %d.", who(a), res.TotalDays),
		})
	})
}

func joinNotifyErr(err, notifyErr error) error {
	if notifyErr == nil {
		return err
	}
	return fmt.Errorf("%w (notification failed: %v)", err, notifyErr)
}
