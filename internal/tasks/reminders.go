package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/cfd24/hoyolab-auto/internal/config"
	"github.com/cfd24/hoyolab-auto/internal/hoyolab"
	"github.com/cfd24/hoyolab-auto/internal/platform"
)

// reminder inspects notes and returns the message to send, or nil.
type reminder func(a Account, n hoyolab.Notes) *platform.Message

// notesTask fetches notes for every account that has them and sends the
// reminder's message, de-duplicated by key within ttl.
func (d Deps) notesTask(ctx context.Context, task string, ttl time.Duration, key func(Account) string, check reminder) error {
	return d.forEachAccount(ctx, task, supports(hoyolab.CapNotes), func(ctx context.Context, a Account) error {
		notes, err := a.Notes(ctx)
		if err != nil {
			return err
		}

		msg := check(a, notes)
		if msg == nil {
			return nil
		}
		return d.notify(ctx, a, key(a), ttl, *msg)
	})
}

// rollingKey de-duplicates a reminder per account until the ttl expires.
func rollingKey(task string) func(Account) string {
	return func(a Account) string { return task + ":" + a.ID() }
}

func (d Deps) daily(task string) func(Account) string {
	return func(a Account) string { return d.dailyKey(task, a) }
}

func (d Deps) stamina(ctx context.Context) error {
	threshold := d.Config.Reminders.StaminaThreshold
	if threshold <= 0 {
		threshold = config.DefaultStaminaThreshold
	}

	return d.notesTask(ctx, Stamina, d.dedupTTL(), rollingKey(Stamina), func(a Account, n hoyolab.Notes) *platform.Message {
		if n.Stamina.Max == 0 || n.Stamina.Ratio() < threshold {
			return nil
		}
		return &platform.Message{
			Title: a.Game().Name + " " + a.Game().StaminaName,
			Body: fmt.Sprintf("%s: %s is at %d/%d%s.",
				who(a), a.Game().StaminaName, n.Stamina.Current, n.Stamina.Max, fullIn(n.Stamina)),
		}
	})
}

func (d Deps) realmCurrency(ctx context.Context) error {
	threshold := d.Config.Reminders.RealmCurrencyThreshold
	if threshold <= 0 {
		threshold = config.DefaultRealmCurrencyThreshold
	}

	return d.notesTask(ctx, RealmCurrency, d.dedupTTL(), rollingKey(RealmCurrency), func(a Account, n hoyolab.Notes) *platform.Message {
		rc := n.RealmCurrency
		if rc == nil || rc.Max == 0 || rc.Ratio() < threshold {
			return nil
		}
		return &platform.Message{
			Title: a.Game().Name + " Realm Currency",
			Body:  fmt.Sprintf("%s: Realm Currency is at %d/%d%s.", who(a), rc.Current, rc.Max, fullIn(*rc)),
		}
	})
}

func (d Deps) expedition(ctx context.Context) error {
	return d.notesTask(ctx, Expedition, d.dedupTTL(), rollingKey(Expedition), func(a Account, n hoyolab.Notes) *platform.Message {
		if !n.AllExpeditionsDone() {
			return nil
		}
		return &platform.Message{
			Title: a.Game().Name + " Expeditions",
			Body:  fmt.Sprintf("%s: all %d expeditions are complete.", who(a), len(n.Expeditions)),
		}
	})
}

func (d Deps) dailiesReminder(ctx context.Context) error {
	return d.notesTask(ctx, DailiesReminder, 24*time.Hour, d.daily(DailiesReminder), func(a Account, n hoyolab.Notes) *platform.Message {
		name := a.Game().DailiesName
		switch {
		case n.Dailies.Total == 0:
			return nil
		case !n.Dailies.Done():
			return &platform.Message{
				Title: a.Game().Name + " " + name,
				Body:  fmt.Sprintf("%s: %s not finished (%d/%d).", who(a), name, n.Dailies.Completed, n.Dailies.Total),
			}
		case a.Game().Tag == hoyolab.Genshin && !n.Dailies.RewardClaimed:
			return &platform.Message{
				Title: a.Game().Name + " " + name,
				Body:  fmt.Sprintf("%s: %s done but the bonus reward is unclaimed.", who(a), name),
			}
		default:
			return nil
		}
	})
}

func (d Deps) weekliesReminder(ctx context.Context) error {
	return d.notesTask(ctx, WeekliesReminder, 24*time.Hour, d.daily(WeekliesReminder), func(a Account, n hoyolab.Notes) *platform.Message {
		w := n.Weeklies
		if w == nil || w.Total == 0 || w.Done() {
			return nil
		}
		name := a.Game().WeekliesName
		return &platform.Message{
			Title: a.Game().Name + " " + name,
			Body:  fmt.Sprintf("%s: %s at %d/%d this week.", who(a), name, w.Completed, w.Total),
		}
	})
}

func (d Deps) howlScratchCard(ctx context.Context) error {
	return d.notesTask(ctx, HowlScratchCard, 24*time.Hour, d.daily(HowlScratchCard), func(a Account, n hoyolab.Notes) *platform.Message {
		if n.ScratchCardDone == nil || *n.ScratchCardDone {
			return nil
		}
		return &platform.Message{
			Title: a.Game().Name + " Scratch Card",
			Body:  fmt.Sprintf("%s: today's scratch card has not been scratched.", who(a)),
		}
	})
}

func (d Deps) shopStatus(ctx context.Context) error {
	return d.notesTask(ctx, ShopStatus, d.dedupTTL(), rollingKey(ShopStatus), func(a Account, n hoyolab.Notes) *platform.Message {
		if n.Shop == nil || *n.Shop != hoyolab.ShopFinished {
			return nil
		}
		return &platform.Message{
			Title: a.Game().Name + " Video Store",
			Body:  fmt.Sprintf("%s: the video store finished selling, revenue is ready to collect.", who(a)),
		}
	})
}

func fullIn(c hoyolab.Capacity) string {
	if c.Full() || c.RecoverIn <= 0 {
		return ""
	}
	return ", full in " + c.RecoverIn.Round(time.Minute).String()
}
