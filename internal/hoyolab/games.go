// Package hoyolab talks to the HoYoLAB web APIs on behalf of configured
// game accounts: daily check-in, real-time notes, gift code redemption and
// cookie verification.
package hoyolab

// Game type tags accepted in the accounts configuration.
const (
	Genshin  = "genshin"
	StarRail = "starrail"
	Honkai   = "honkai"
	Zenless  = "zenless"
)

// Game describes the endpoints and identifiers of one supported title.
// Empty URLs mean the capability does not exist for the game.
type Game struct {
	Tag     string
	Name    string
	GameBiz string
	ActID   string

	SignInfoURL string
	SignURL     string
	// SignGame is sent as x-rpc-signgame where the sign endpoint requires it.
	SignGame string

	NotesURL  string
	RedeemURL string

	// Vocabulary used in notifications.
	StaminaName  string
	DailiesName  string
	WeekliesName string
}

// Supports reports whether the game offers a capability.
func (g Game) Supports(c Capability) bool {
	switch c {
	case CapCheckIn:
		return g.SignURL != ""
	case CapNotes:
		return g.NotesURL != ""
	case CapRedeem:
		return g.RedeemURL != ""
	default:
		return false
	}
}

// Capability is an optional per-game feature.
type Capability string

// Capabilities.
const (
	CapCheckIn Capability = "check-in"
	CapNotes   Capability = "notes"
	CapRedeem  Capability = "redeem"
)

const (
	rolesURL = "https://api-account-os.hoyolab.com/binding/api/getUserGameRolesByCookie"
)

var games = map[string]Game{
	Genshin: {
		Tag:          Genshin,
		Name:         "Genshin Impact",
		GameBiz:      "hk4e_global",
		ActID:        "e202102251931481",
		SignInfoURL:  "https://sg-hk4e-api.hoyolab.com/event/sol/info",
		SignURL:      "https://sg-hk4e-api.hoyolab.com/event/sol/sign",
		NotesURL:     "https://bbs-api-os.hoyolab.com/game_record/genshin/api/dailyNote",
		RedeemURL:    "https://sg-hk4e-api.hoyoverse.com/common/apicdkey/api/webExchangeCdkey",
		StaminaName:  "Original Resin",
		DailiesName:  "Daily Commissions",
		WeekliesName: "Weekly Boss discounts",
	},
	StarRail: {
		Tag:          StarRail,
		Name:         "Honkai: Star Rail",
		GameBiz:      "hkrpg_global",
		ActID:        "e202303301540311",
		SignInfoURL:  "https://sg-public-api.hoyolab.com/event/luna/os/info",
		SignURL:      "https://sg-public-api.hoyolab.com/event/luna/os/sign",
		NotesURL:     "https://bbs-api-os.hoyolab.com/game_record/hkrpg/api/note",
		RedeemURL:    "https://sg-hkrpg-api.hoyoverse.com/common/apicdkey/api/webExchangeCdkey",
		StaminaName:  "Trailblaze Power",
		DailiesName:  "Daily Training",
		WeekliesName: "Simulated Universe",
	},
	Honkai: {
		Tag:         Honkai,
		Name:        "Honkai Impact 3rd",
		GameBiz:     "bh3_global",
		ActID:       "e202110291205111",
		SignInfoURL: "https://sg-public-api.hoyolab.com/event/mani/info",
		SignURL:     "https://sg-public-api.hoyolab.com/event/mani/sign",
	},
	Zenless: {
		Tag:          Zenless,
		Name:         "Zenless Zone Zero",
		GameBiz:      "nap_global",
		ActID:        "e202406031448091",
		SignInfoURL:  "https://sg-act-nap-api.hoyolab.com/event/luna/zzz/os/info",
		SignURL:      "https://sg-act-nap-api.hoyolab.com/event/luna/zzz/os/sign",
		SignGame:     "zzz",
		NotesURL:     "https://sg-act-nap-api.hoyolab.com/event/game_record_zzz/api/zzz/note",
		RedeemURL:    "https://public-operation-nap.hoyoverse.com/common/apicdkey/api/webExchangeCdkey",
		StaminaName:  "Battery Charge",
		DailiesName:  "Engagement",
		WeekliesName: "",
	},
}

// LookupGame returns the game registered under tag.
func LookupGame(tag string) (Game, bool) {
	g, ok := games[tag]
	return g, ok
}

// Tags returns every supported game tag.
func Tags() []string {
	return []string{Genshin, StarRail, Honkai, Zenless}
}
