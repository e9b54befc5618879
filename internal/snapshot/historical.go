package snapshot

import (
	"StrappedIndexer/internal/event"
)

// TriggeredModifier records a modifier unlock during a game: which roll
// index triggered it, the modifier itself, and the roll it applies to.
type TriggeredModifier struct {
	RollIndex    uint32         `json:"roll_index"`
	Modifier     event.Modifier `json:"modifier"`
	ModifierRoll event.Roll     `json:"modifier_roll"`
}

// HistoricalSnapshot is the immutable archive of a completed game, written
// exactly once when the next game's NewGame event is applied. Rollbacks
// never touch it: archives are scoped to finished games, not to heights.
type HistoricalSnapshot struct {
	GameID       uint32              `json:"game_id"`
	Rolls        []event.Roll        `json:"rolls"`
	Modifiers    []TriggeredModifier `json:"modifiers"`
	StrapRewards []event.StrapReward `json:"strap_rewards"`
}

// NewHistorical builds an archive record from a finished game's final state.
func NewHistorical(gameID uint32, rolls []event.Roll, modifiers []TriggeredModifier, rewards []event.StrapReward) HistoricalSnapshot {
	return HistoricalSnapshot{
		GameID:       gameID,
		Rolls:        rolls,
		Modifiers:    modifiers,
		StrapRewards: rewards,
	}
}

// Clone returns a deep copy.
func (h HistoricalSnapshot) Clone() HistoricalSnapshot {
	out := h
	out.Rolls = append([]event.Roll(nil), h.Rolls...)
	out.Modifiers = append([]TriggeredModifier(nil), h.Modifiers...)
	out.StrapRewards = append([]event.StrapReward(nil), h.StrapRewards...)
	return out
}

// StrapMetadata pairs a derived asset identifier with the strap it mints.
type StrapMetadata struct {
	AssetID event.AssetID `json:"asset_id"`
	Strap   event.Strap   `json:"strap"`
}
