package hoyolab

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Notes is the real-time note of a role, normalised across games. Fields a
// game does not report are nil.
type Notes struct {
	Stamina       Capacity
	Expeditions   []Expedition
	RealmCurrency *Capacity
	Dailies       Progress
	Weeklies      *Progress
	// ScratchCardDone is the Zenless scratch card state.
	ScratchCardDone *bool
	Shop            *ShopState
}

// Capacity is a recharging resource.
type Capacity struct {
	Current   int
	Max       int
	RecoverIn time.Duration
}

// Ratio returns Current/Max, or 0 when Max is unknown.
func (c Capacity) Ratio() float64 {
	if c.Max <= 0 {
		return 0
	}
	return float64(c.Current) / float64(c.Max)
}

// Full reports whether the resource is capped.
func (c Capacity) Full() bool {
	return c.Max > 0 && c.Current >= c.Max
}

// Expedition is one dispatched expedition or assignment.
type Expedition struct {
	Name      string
	Done      bool
	Remaining time.Duration
}

// Progress counts completed daily or weekly objectives.
type Progress struct {
	Completed     int
	Total         int
	RewardClaimed bool
}

// Done reports whether every objective is complete.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Completed >= p.Total
}

// ShopState is the Zenless video store state.
type ShopState string

// Video store states.
const (
	ShopOpen     ShopState = "SaleStateDoing"
	ShopClosed   ShopState = "SaleStateNo"
	ShopFinished ShopState = "SaleStateDone"
)

// AllExpeditionsDone reports whether at least one expedition was sent and
// every one of them finished.
func (n Notes) AllExpeditionsDone() bool {
	if len(n.Expeditions) == 0 {
		return false
	}
	for _, e := range n.Expeditions {
		if !e.Done {
			return false
		}
	}
	return true
}

func parseNotes(tag string, data json.RawMessage) (Notes, error) {
	switch tag {
	case Genshin:
		return parseGenshinNotes(data)
	case StarRail:
		return parseStarRailNotes(data)
	case Zenless:
		return parseZenlessNotes(data)
	default:
		return Notes{}, ErrUnsupported
	}
}

type genshinNotes struct {
	CurrentResin      int    `json:"current_resin"`
	MaxResin          int    `json:"max_resin"`
	ResinRecoveryTime string `json:"resin_recovery_time"`
	FinishedTaskNum   int    `json:"finished_task_num"`
	TotalTaskNum      int    `json:"total_task_num"`
	ExtraTaskReward   bool   `json:"is_extra_task_reward_received"`
	RemainDiscountNum int    `json:"remain_resin_discount_num"`
	DiscountNumLimit  int    `json:"resin_discount_num_limit"`
	CurrentHomeCoin   int    `json:"current_home_coin"`
	MaxHomeCoin       int    `json:"max_home_coin"`
	HomeCoinRecovery  string `json:"home_coin_recovery_time"`
	Expeditions       []struct {
		AvatarSideIcon string `json:"avatar_side_icon"`
		Status         string `json:"status"`
		RemainedTime   string `json:"remained_time"`
	} `json:"expeditions"`
}

func parseGenshinNotes(data json.RawMessage) (Notes, error) {
	var raw genshinNotes
	if err := json.Unmarshal(data, &raw); err != nil {
		return Notes{}, fmt.Errorf("failed to decode genshin notes: %w", err)
	}

	n := Notes{
		Stamina: Capacity{
			Current:   raw.CurrentResin,
			Max:       raw.MaxResin,
			RecoverIn: seconds(raw.ResinRecoveryTime),
		},
		RealmCurrency: &Capacity{
			Current:   raw.CurrentHomeCoin,
			Max:       raw.MaxHomeCoin,
			RecoverIn: seconds(raw.HomeCoinRecovery),
		},
		Dailies: Progress{
			Completed:     raw.FinishedTaskNum,
			Total:         raw.TotalTaskNum,
			RewardClaimed: raw.ExtraTaskReward,
		},
		Weeklies: &Progress{
			Completed: raw.DiscountNumLimit - raw.RemainDiscountNum,
			Total:     raw.DiscountNumLimit,
		},
	}
	for i, e := range raw.Expeditions {
		n.Expeditions = append(n.Expeditions, Expedition{
			Name:      fmt.Sprintf("Expedition %d", i+1),
			Done:      e.Status == "Finished",
			Remaining: seconds(e.RemainedTime),
		})
	}

	return n, nil
}

type starRailNotes struct {
	CurrentStamina     int `json:"current_stamina"`
	MaxStamina         int `json:"max_stamina"`
	StaminaRecoverTime int `json:"stamina_recover_time"`
	CurrentTrainScore  int `json:"current_train_score"`
	MaxTrainScore      int `json:"max_train_score"`
	CurrentRogueScore  int `json:"current_rogue_score"`
	MaxRogueScore      int `json:"max_rogue_score"`
	Expeditions        []struct {
		Name          string `json:"name"`
		Status        string `json:"status"`
		RemainingTime int    `json:"remaining_time"`
	} `json:"expeditions"`
}

func parseStarRailNotes(data json.RawMessage) (Notes, error) {
	var raw starRailNotes
	if err := json.Unmarshal(data, &raw); err != nil {
		return Notes{}, fmt.Errorf("failed to decode starrail notes: %w", err)
	}

	n := Notes{
		Stamina: Capacity{
			Current:   raw.CurrentStamina,
			Max:       raw.MaxStamina,
			RecoverIn: time.Duration(raw.StaminaRecoverTime) * time.Second,
		},
		Dailies: Progress{
			Completed: raw.CurrentTrainScore,
			Total:     raw.MaxTrainScore,
		},
		Weeklies: &Progress{
			Completed: raw.CurrentRogueScore,
			Total:     raw.MaxRogueScore,
		},
	}
	for _, e := range raw.Expeditions {
		n.Expeditions = append(n.Expeditions, Expedition{
			Name:      e.Name,
			Done:      e.Status == "Finished",
			Remaining: time.Duration(e.RemainingTime) * time.Second,
		})
	}

	return n, nil
}

type zenlessNotes struct {
	Energy struct {
		Progress struct {
			Max     int `json:"max"`
			Current int `json:"current"`
		} `json:"progress"`
		Restore int `json:"restore"`
	} `json:"energy"`
	Vitality struct {
		Max     int `json:"max"`
		Current int `json:"current"`
	} `json:"vitality"`
	VHSSale struct {
		SaleState string `json:"sale_state"`
	} `json:"vhs_sale"`
	CardSign string `json:"card_sign"`
}

func parseZenlessNotes(data json.RawMessage) (Notes, error) {
	var raw zenlessNotes
	if err := json.Unmarshal(data, &raw); err != nil {
		return Notes{}, fmt.Errorf("failed to decode zenless notes: %w", err)
	}

	scratched := raw.CardSign == "CardSignDone"
	shop := ShopState(raw.VHSSale.SaleState)

	return Notes{
		Stamina: Capacity{
			Current:   raw.Energy.Progress.Current,
			Max:       raw.Energy.Progress.Max,
			RecoverIn: time.Duration(raw.Energy.Restore) * time.Second,
		},
		Dailies: Progress{
			Completed: raw.Vitality.Current,
			Total:     raw.Vitality.Max,
		},
		ScratchCardDone: &scratched,
		Shop:            &shop,
	}, nil
}

// seconds parses the string-encoded second counts some endpoints return.
func seconds(s string) time.Duration {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Second
}
