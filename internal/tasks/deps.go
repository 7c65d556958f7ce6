// Package tasks implements the scheduled HoYoLAB jobs: check-ins, gift code
// redemption, resource reminders and cookie checks.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cfd24/hoyolab-auto/internal/config"
	"github.com/cfd24/hoyolab-auto/internal/hoyolab"
	"github.com/cfd24/hoyolab-auto/internal/platform"
)

// Account is the part of hoyolab.Account the tasks use.
type Account interface {
	ID() string
	Game() hoyolab.Game
	Role() hoyolab.Role
	NotifyEnabled() bool
	CheckIn(ctx context.Context) (hoyolab.CheckInResult, error)
	SignInfo(ctx context.Context) (hoyolab.SignInfo, error)
	Notes(ctx context.Context) (hoyolab.Notes, error)
	Redeem(ctx context.Context, code string) error
	Verify(ctx context.Context) error
}

// Notifier delivers messages to the connected platforms.
type Notifier interface {
	Notify(ctx context.Context, msg platform.Message) error
}

// Store keeps notification and redemption state between runs.
type Store interface {
	ShouldNotify(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsCodeRedeemed(ctx context.Context, accountID, code string) (bool, error)
	MarkCodeRedeemed(ctx context.Context, accountID, code string) error
	ReleaseNotification(ctx context.Context, key string) error
}

// Deps is everything task bodies may touch. It is passed explicitly to
// Definitions instead of living in package state.
type Deps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Accounts []Account
	Notifier Notifier
	Store    Store
	// RedeemCooldown separates consecutive gift code redemptions.
	RedeemCooldown time.Duration
	Now            func() time.Time
}

// DefaultRedeemCooldown is the pause between gift code redemptions HoYoLAB tolerates.
const DefaultRedeemCooldown = 5 * time.Second

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Config == nil {
		d.Config = &config.Config{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.RedeemCooldown < 0 {
		d.RedeemCooldown = 0
	}
	return d
}

// forEachAccount calls fn for every account accepted by filter. Errors are
// collected per account so one broken account does not hide the others;
// ErrUnsupported is skipped silently.
func (d Deps) forEachAccount(ctx context.Context, task string, filter func(Account) bool, fn func(context.Context, Account) error) error {
	log := d.Logger.With("task_name", task)

	var errs []error
	for _, a := range d.Accounts {
		if filter != nil && !filter(a) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		err := fn(ctx, a)
		switch {
		case err == nil:
		case errors.Is(err, hoyolab.ErrUnsupported):
			log.DebugContext(ctx, "Capability not supported", "account", a.ID())
		default:
			log.WarnContext(ctx, "Account failed", "account", a.ID(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.ID(), err))
		}
	}

	return errors.Join(errs...)
}

// notify sends msg for account unless the account opted out or, when key is
// set, the same notification was already sent within ttl.
func (d Deps) notify(ctx context.Context, a Account, key string, ttl time.Duration, msg platform.Message) error {
	if d.Notifier == nil || !a.NotifyEnabled() {
		return nil
	}

	claimed := false
	if key != "" && d.Store != nil {
		ok, err := d.Store.ShouldNotify(ctx, key, ttl)
		if err != nil {
			return fmt.Errorf("failed to check notification state: %w", err)
		}
		if !ok {
			d.Logger.DebugContext(ctx, "Notification suppressed", "key", key)
			return nil
		}
		claimed = true
	}

	err := d.Notifier.Notify(ctx, msg)
	if err != nil && claimed {
		// a failed send must not hold the key
		if releaseErr := d.Store.ReleaseNotification(context.WithoutCancel(ctx), key); releaseErr != nil {
			d.Logger.WarnContext(ctx, "Failed to release notification key", "key", key, "error", releaseErr)
		}
	}
	return err
}

// dedupTTL is the suppression window for recurring reminders.
func (d Deps) dedupTTL() time.Duration {
	if ttl := d.Config.Notifications.DedupTTL; ttl > 0 {
		return ttl
	}
	return config.DefaultNotifyDedupTTL
}

// dailyKey scopes a notification key to the current day.
func (d Deps) dailyKey(task string, a Account) string {
	return task + ":" + a.ID() + ":" + d.Now().Format(time.DateOnly)
}

func supports(c hoyolab.Capability) func(Account) bool {
	return func(a Account) bool { return a.Game().Supports(c) }
}

// who names the account's role in messages.
func who(a Account) string {
	role := a.Role()
	switch {
	case role.Nickname != "" && role.UID != "":
		return fmt.Sprintf("%s (%s)", role.Nickname, role.UID)
	case role.UID != "":
		return role.UID
	default:
		return a.ID()
	}
}
