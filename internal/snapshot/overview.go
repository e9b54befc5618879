package snapshot

import (
	"StrappedIndexer/internal/event"
)

// ModifierShopEntry is one modifier offer of the current game. Triggered
// ("unlocked by a matching roll") and Purchased are independent facts set by
// different events, so they are tracked separately.
type ModifierShopEntry struct {
	TriggerRoll event.Roll     `json:"trigger_roll"`
	TargetRoll  event.Roll     `json:"target_roll"`
	Modifier    event.Modifier `json:"modifier"`
	Triggered   bool           `json:"triggered"`
	Purchased   bool           `json:"purchased"`
}

// RollBets aggregates all wagers on a single roll across all players.
type RollBets struct {
	ChipTotal uint64              `json:"chip_total"`
	StrapBets []event.StrapAmount `json:"strap_bets"`
}

// OverviewSnapshot is the materialized state of the game currently in
// progress. One logical row, replaced in full on every applied event.
//
// CurrentBlockHeight always equals the height of the last event applied.
// PotSize persists across games; everything game-scoped is reset by NewGame.
type OverviewSnapshot struct {
	GameID          uint32                          `json:"game_id"`
	Rolls           []event.Roll                    `json:"rolls"`
	PotSize         uint64                          `json:"pot_size"`
	Rewards         []event.StrapReward             `json:"rewards"`
	ModifierShop    []ModifierShopEntry             `json:"modifier_shop"`
	ModifiersActive [event.NumRolls]*event.Modifier `json:"modifiers_active"`
	TotalBets       [event.NumRolls]RollBets        `json:"total_bets"`

	CurrentBlockHeight uint32  `json:"current_block_height"`
	NextRollHeight     *uint32 `json:"next_roll_height"`
	RollFrequency      *uint32 `json:"roll_frequency"`
	FirstRollHeight    *uint32 `json:"first_roll_height"`
}

// NewOverview returns the zero-game overview.
func NewOverview() OverviewSnapshot {
	return OverviewSnapshot{}
}

// Clone returns a deep copy. Query replies must never alias the stored value.
func (o OverviewSnapshot) Clone() OverviewSnapshot {
	out := o
	out.Rolls = append([]event.Roll(nil), o.Rolls...)
	out.Rewards = append([]event.StrapReward(nil), o.Rewards...)
	out.ModifierShop = append([]ModifierShopEntry(nil), o.ModifierShop...)
	for i, m := range o.ModifiersActive {
		if m != nil {
			v := *m
			out.ModifiersActive[i] = &v
		}
	}
	for i, tb := range o.TotalBets {
		out.TotalBets[i].StrapBets = append([]event.StrapAmount(nil), tb.StrapBets...)
	}
	out.NextRollHeight = cloneU32(o.NextRollHeight)
	out.RollFrequency = cloneU32(o.RollFrequency)
	out.FirstRollHeight = cloneU32(o.FirstRollHeight)
	return out
}

// MergeStrapBet accumulates amount onto an existing equal strap or appends
// a new entry. Returns the updated slice.
func MergeStrapBet(bets []event.StrapAmount, strap event.Strap, amount uint64) []event.StrapAmount {
	for i := range bets {
		if bets[i].Strap == strap {
			bets[i].Amount = SatAdd(bets[i].Amount, amount)
			return bets
		}
	}
	return append(bets, event.StrapAmount{Strap: strap, Amount: amount})
}

// SatAdd is saturating uint64 addition.
func SatAdd(a, b uint64) uint64 {
	if a+b < a {
		return ^uint64(0)
	}
	return a + b
}

// SatAdd32 is saturating uint32 addition, for block-height arithmetic.
func SatAdd32(a, b uint32) uint32 {
	if a+b < a {
		return ^uint32(0)
	}
	return a + b
}

// SatSub is saturating uint64 subtraction.
func SatSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func cloneU32(v *uint32) *uint32 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
