package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cfd24/hoyolab-auto/internal/hoyolab"
	"github.com/cfd24/hoyolab-auto/internal/platform"
)

// codeRedeem tries every configured gift code on every account that has
// not consumed it yet. Codes rejected as used or invalid are remembered so
// they are not sent again.
func (d Deps) codeRedeem(ctx context.Context) error {
	codes := normalizeCodes(d.Config.Redeem.Codes)
	if len(codes) == 0 {
		return nil
	}

	first := true
	return d.forEachAccount(ctx, CodeRedeem, supports(hoyolab.CapRedeem), func(ctx context.Context, a Account) error {
		var (
			redeemed []string
			errs     []error
		)
		for _, code := range codes {
			if d.Store != nil {
				done, err := d.Store.IsCodeRedeemed(ctx, a.ID(), code)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if done {
					continue
				}
			}

			if !first {
				if err := sleep(ctx, d.RedeemCooldown); err != nil {
					return errors.Join(append(errs, err)...)
				}
			}
			first = false

			err := a.Redeem(ctx, code)
			switch {
			case err == nil:
				redeemed = append(redeemed, code)
			case errors.Is(err, hoyolab.ErrAlreadyRedeemed), errors.Is(err, hoyolab.ErrInvalidCode):
				d.Logger.InfoContext(ctx, "Gift code rejected", "account", a.ID(), "code", code, "error", err)
			default:
				errs = append(errs, err)
				continue
			}

			if d.Store != nil {
				if err := d.Store.MarkCodeRedeemed(ctx, a.ID(), code); err != nil {
					errs = append(errs, err)
				}
			}
		}

		if len(redeemed) > 0 {
			d.Logger.InfoContext(ctx, "Gift codes redeemed", "account", a.ID(), "codes", redeemed)
			if err := d.notify(ctx, a, "", 0, platform.Message{
				Title: a.Game().Name + " Code Redeem",
				Body:  fmt.Sprintf("Redeemed for %s: %s", who(a), strings.Join(redeemed, ", ")),
			}); err != nil {
				errs = append(errs, err)
			}
		}

		return errors.Join(errs...)
	})
}

func normalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
