package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cfd24/hoyolab-auto/internal/hoyolab"
	"github.com/cfd24/hoyolab-auto/internal/platform"
)

// Commands returns the chat commands served by listening platforms. They
// act on the same accounts as the scheduled tasks.
func Commands(deps Deps) []platform.Command {
	d := deps.withDefaults()

	return []platform.Command{
		{Name: "notes", Description: "Show stamina, expeditions and dailies", Run: d.notesCommand},
		{Name: "checkin", Description: "Check in every account now", Run: d.checkInCommand},
		{Name: "redeem", Usage: "<code> [code...]", Description: "Redeem gift codes on every account", Run: d.redeemCommand},
	}
}

func (d Deps) notesCommand(ctx context.Context, _ []string) (string, error) {
	var lines []string
	for _, a := range d.Accounts {
		if !a.Game().Supports(hoyolab.CapNotes) {
			continue
		}
		n, err := a.Notes(ctx)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s: %v", who(a), err))
			continue
		}
		lines = append(lines, summarizeNotes(a, n))
	}

	if len(lines) == 0 {
		return "No account reports real-time notes.", nil
	}
	return strings.Join(lines, "\n\n"), nil
}

func summarizeNotes(a Account, n hoyolab.Notes) string {
	g := a.Game()
	parts := []string{
		fmt.Sprintf("%s %s", g.Name, who(a)),
		fmt.Sprintf("%s: %d/%d%s", g.StaminaName, n.Stamina.Current, n.Stamina.Max, fullIn(n.Stamina)),
	}
	if len(n.Expeditions) > 0 {
		done := 0
		for _, e := range n.Expeditions {
			if e.Done {
				done++
			}
		}
		parts = append(parts, fmt.Sprintf("Expeditions: %d/%d done", done, len(n.Expeditions)))
	}
	if rc := n.RealmCurrency; rc != nil && rc.Max > 0 {
		parts = append(parts, fmt.Sprintf("Realm Currency: %d/%d", rc.Current, rc.Max))
	}
	if n.Dailies.Total > 0 {
		parts = append(parts, fmt.Sprintf("%s: %d/%d", g.DailiesName, n.Dailies.Completed, n.Dailies.Total))
	}
	if w := n.Weeklies; w != nil && w.Total > 0 {
		parts = append(parts, fmt.Sprintf("%s: %d/%d", g.WeekliesName, w.Completed, w.Total))
	}
	return strings.Join(parts, "\n")
}

func (d Deps) checkInCommand(ctx context.Context, _ []string) (string, error) {
	var lines []string
	for _, a := range d.Accounts {
		if !a.Game().Supports(hoyolab.CapCheckIn) {
			continue
		}
		res, err := a.CheckIn(ctx)
		switch {
		case err != nil:
			lines = append(lines, fmt.Sprintf("%s %s: failed: %v", a.Game().Name, who(a), err))
		case res.AlreadySigned:
			lines = append(lines, fmt.Sprintf("%s %s: already checked in (%d days)", a.Game().Name, who(a), res.TotalDays))
		default:
			lines = append(lines, fmt.Sprintf("%s %s: checked in (%d days)", a.Game().Name, who(a), res.TotalDays))
		}
	}

	if len(lines) == 0 {
		return "No account supports check-in.", nil
	}
	return strings.Join(lines, "\n"), nil
}

func (d Deps) redeemCommand(ctx context.Context, args []string) (string, error) {
	codes := normalizeCodes(args)
	if len(codes) == 0 {
		return "Usage: /redeem <code> [code...]", nil
	}

	var lines []string
	first := true
	for _, a := range d.Accounts {
		if !a.Game().Supports(hoyolab.CapRedeem) {
			continue
		}
		for _, code := range codes {
			if !first {
				if err := sleep(ctx, d.RedeemCooldown); err != nil {
					return strings.Join(lines, "\n"), err
				}
			}
			first = false

			err := a.Redeem(ctx, code)
			status := "redeemed"
			switch {
			case err == nil:
			case errors.Is(err, hoyolab.ErrAlreadyRedeemed):
				status = "already redeemed"
			case errors.Is(err, hoyolab.ErrInvalidCode):
				status = "invalid code"
			default:
				lines = append(lines, fmt.Sprintf("%s %s: %s failed: %v", a.Game().Name, who(a), code, err))
				continue
			}
			if d.Store != nil {
				if err := d.Store.MarkCodeRedeemed(ctx, a.ID(), code); err != nil {
					d.Logger.WarnContext(ctx, "Failed to remember redeemed code", "account", a.ID(), "code", code, "error", err)
				}
			}
			lines = append(lines, fmt.Sprintf("%s %s: %s %s", a.Game().Name, who(a), code, status))
		}
	}

	if len(lines) == 0 {
		return "No account supports gift codes.", nil
	}
	return strings.Join(lines, "\n"), nil
}
