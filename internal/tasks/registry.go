package tasks

import (
	"github.com/cfd24/hoyolab-auto/internal/cron"
)

// Task identifiers, in declaration order.
const (
	CheckIn          = "check-in"
	CodeRedeem       = "code-redeem"
	DailiesReminder  = "dailies-reminder"
	Expedition       = "expedition"
	HowlScratchCard  = "howl-scratch-card"
	MissedCheckIn    = "missed-check-in"
	RealmCurrency    = "realm-currency"
	ShopStatus       = "shop-status"
	Stamina          = "stamina"
	UpdateCookie     = "update-cookie"
	WeekliesReminder = "weeklies-reminder"
)

// Definitions returns every task bound to deps. The order is fixed and is
// the order orchestrated runs follow.
func Definitions(deps Deps) []cron.Definition {
	d := deps.withDefaults()

	return []cron.Definition{
		{Identifier: CheckIn, Expression: "0 0 0 * * *", Task: d.checkIn},
		{Identifier: CodeRedeem, Expression: "*/15 * * * *", Task: d.codeRedeem},
		{Identifier: DailiesReminder, Expression: "0 0 21 * * *", Task: d.dailiesReminder},
		{Identifier: Expedition, Expression: "*/30 * * * *", Task: d.expedition},
		{Identifier: HowlScratchCard, Expression: "0 0 20 * * *", Task: d.howlScratchCard},
		{Identifier: MissedCheckIn, Expression: "0 0 23 * * *", Task: d.missedCheckIn},
		{Identifier: RealmCurrency, Expression: "0 */1 * * *", Task: d.realmCurrency},
		{Identifier: ShopStatus, Expression: "0 */1 * * *", Task: d.shopStatus},
		{Identifier: Stamina, Expression: "*/30 * * * *", Task: d.stamina},
		{Identifier: UpdateCookie, Expression: "0 */6 * * *", Task: d.updateCookie},
		{Identifier: WeekliesReminder, Expression: "0 0 * * 1", Task: d.weekliesReminder},
	}
}
