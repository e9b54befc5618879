package snapshot

import (
	"StrappedIndexer/internal/event"
)

// BetKind discriminates the two wager kinds inside an account's bet log.
type BetKind string

const (
	BetChip  BetKind = "chip"
	BetStrap BetKind = "strap"
)

// AccountBet is one wager as recorded in a player's per-roll bet log.
// Strap is set only when Kind == BetStrap.
type AccountBet struct {
	Kind         BetKind      `json:"kind"`
	Strap        *event.Strap `json:"strap,omitempty"`
	Amount       uint64       `json:"amount"`
	BetRollIndex uint32       `json:"bet_roll_index"`
}

// AccountRollBets lists a player's wagers on one roll in placement order.
type AccountRollBets struct {
	Roll event.Roll   `json:"roll"`
	Bets []AccountBet `json:"bets"`
}

// ClaimedRewards is a player's settled payout for a game, recorded once
// when the ClaimRewards event is applied.
type ClaimedRewards struct {
	Chips  uint64              `json:"chips"`
	Straps []event.StrapAmount `json:"straps"`
}

// AccountSnapshot is one player's materialized state for one game.
// Exactly one record exists per (identity, game id); events for a key are
// applied in height order, so replacing the whole value is safe.
type AccountSnapshot struct {
	TotalChipBet   uint64              `json:"total_chip_bet"`
	TotalChipWon   uint64              `json:"total_chip_won"`
	StrapBets      []event.StrapAmount `json:"strap_bets"`
	ClaimedRewards *ClaimedRewards     `json:"claimed_rewards,omitempty"`
	PerRollBets    []AccountRollBets   `json:"per_roll_bets"`
}

// NewAccount returns the empty account record.
func NewAccount() AccountSnapshot {
	return AccountSnapshot{}
}

// Clone returns a deep copy.
func (a AccountSnapshot) Clone() AccountSnapshot {
	out := a
	out.StrapBets = append([]event.StrapAmount(nil), a.StrapBets...)
	if a.ClaimedRewards != nil {
		cr := ClaimedRewards{
			Chips:  a.ClaimedRewards.Chips,
			Straps: append([]event.StrapAmount(nil), a.ClaimedRewards.Straps...),
		}
		out.ClaimedRewards = &cr
	}
	out.PerRollBets = make([]AccountRollBets, len(a.PerRollBets))
	for i, rb := range a.PerRollBets {
		bets := make([]AccountBet, len(rb.Bets))
		for j, b := range rb.Bets {
			bets[j] = b
			if b.Strap != nil {
				s := *b.Strap
				bets[j].Strap = &s
			}
		}
		out.PerRollBets[i] = AccountRollBets{Roll: rb.Roll, Bets: bets}
	}
	return out
}

// AppendBet records a wager under its roll, creating the roll's entry on
// first use.
func (a *AccountSnapshot) AppendBet(roll event.Roll, bet AccountBet) {
	for i := range a.PerRollBets {
		if a.PerRollBets[i].Roll == roll {
			a.PerRollBets[i].Bets = append(a.PerRollBets[i].Bets, bet)
			return
		}
	}
	a.PerRollBets = append(a.PerRollBets, AccountRollBets{
		Roll: roll,
		Bets: []AccountBet{bet},
	})
}

// Normalize rebuilds PerRollBets so every roll appears exactly once, in
// ascending order, with empty slots for rolls the player never bet on.
// Query responses always present the full 11-roll grid.
func (a *AccountSnapshot) Normalize() {
	if len(a.PerRollBets) == event.NumRolls {
		return
	}
	existing := a.PerRollBets
	rebuilt := make([]AccountRollBets, 0, event.NumRolls)
	for _, roll := range event.AllRolls() {
		found := false
		for _, rb := range existing {
			if rb.Roll == roll {
				rebuilt = append(rebuilt, rb)
				found = true
				break
			}
		}
		if !found {
			rebuilt = append(rebuilt, AccountRollBets{Roll: roll, Bets: []AccountBet{}})
		}
	}
	a.PerRollBets = rebuilt
}
