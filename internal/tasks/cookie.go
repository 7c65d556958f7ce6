package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cfd24/hoyolab-auto/internal/hoyolab"
	"github.com/cfd24/hoyolab-auto/internal/platform"
)

// updateCookie checks that every account's cookie is still accepted and
// warns once a day about the ones that expired.
func (d Deps) updateCookie(ctx context.Context) error {
	return d.forEachAccount(ctx, UpdateCookie, nil, func(ctx context.Context, a Account) error {
		err := a.Verify(ctx)
		if err == nil {
			d.Logger.DebugContext(ctx, "Cookie valid", "account", a.ID())
			return nil
		}
		if !errors.Is(err, hoyolab.ErrCookieExpired) {
			return err
		}

		notifyErr := d.notify(ctx, a, d.dailyKey(UpdateCookie, a), 24*time.Hour, platform.Message{
			Title: a.Game().Name + " Cookie Expired",
			Body:  fmt.Sprintf("The cookie for %s is no longer accepted. Log in to HoYoLAB and update the configuration.", who(a)),
		})
		return joinNotifyErr(err, notifyErr)
	})
}
