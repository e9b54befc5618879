package event

// Type discriminator for ledger events.
type Type int32

const (
	TypeUnknown Type = iota
	TypeInitialized
	TypeRoll
	TypeNewGame
	TypeModifierTriggered
	TypePlaceChipBet
	TypePlaceStrapBet
	TypeClaimRewards
	TypeFundPot
	TypePurchaseModifier
)

func (t Type) String() string {
	switch t {
	case TypeInitialized:
		return "Initialized"
	case TypeRoll:
		return "Roll"
	case TypeNewGame:
		return "NewGame"
	case TypeModifierTriggered:
		return "ModifierTriggered"
	case TypePlaceChipBet:
		return "PlaceChipBet"
	case TypePlaceStrapBet:
		return "PlaceStrapBet"
	case TypeClaimRewards:
		return "ClaimRewards"
	case TypeFundPot:
		return "FundPot"
	case TypePurchaseModifier:
		return "PurchaseModifier"
	default:
		return "Unknown"
	}
}

// Event is one ledger fact. Events are opaque, already-validated outputs of
// the contract; the indexer mirrors them and never re-validates game rules.
type Event interface {
	EventType() Type
}

// StrapReward is one entry of a game's strap shop: betting on this roll can
// win this strap, purchasable at this chip cost.
type StrapReward struct {
	Roll  Roll   `json:"roll"`
	Strap Strap  `json:"strap"`
	Cost  uint64 `json:"cost"`
}

// ModifierOffer is one entry of a game's modifier shop before any state is
// attached: rolling the trigger unlocks the modifier for the target roll.
type ModifierOffer struct {
	TriggerRoll Roll     `json:"trigger_roll"`
	TargetRoll  Roll     `json:"target_roll"`
	Modifier    Modifier `json:"modifier"`
}

// RollModifier pairs a roll with a modifier, as used in claim payloads.
type RollModifier struct {
	Roll     Roll     `json:"roll"`
	Modifier Modifier `json:"modifier"`
}

// StrapAmount is a strap with an associated quantity.
type StrapAmount struct {
	Strap  Strap  `json:"strap"`
	Amount uint64 `json:"amount"`
}

// Initialized is emitted once when the contract is deployed and configured.
type Initialized struct {
	VRFContractID ContractID `json:"vrf_contract_id"`
	ChipAssetID   AssetID    `json:"chip_asset_id"`
	RollFrequency uint32     `json:"roll_frequency"`
	FirstHeight   uint32     `json:"first_height"`
}

func (Initialized) EventType() Type { return TypeInitialized }

// RollEvent is one dice outcome of the current game.
type RollEvent struct {
	GameID      uint32 `json:"game_id"`
	RollIndex   uint32 `json:"roll_index"`
	RolledValue Roll   `json:"rolled_value"`
}

func (RollEvent) EventType() Type { return TypeRoll }

// NewGame starts a fresh game with its strap shop and modifier shop.
type NewGame struct {
	GameID       uint32          `json:"game_id"`
	NewStraps    []StrapReward   `json:"new_straps"`
	NewModifiers []ModifierOffer `json:"new_modifiers"`
}

func (NewGame) EventType() Type { return TypeNewGame }

// ModifierTriggered is emitted when a roll unlocks a shop modifier.
type ModifierTriggered struct {
	GameID       uint32   `json:"game_id"`
	RollIndex    uint32   `json:"roll_index"`
	TriggerRoll  Roll     `json:"trigger_roll"`
	ModifierRoll Roll     `json:"modifier_roll"`
	Modifier     Modifier `json:"modifier"`
}

func (ModifierTriggered) EventType() Type { return TypeModifierTriggered }

// PlaceChipBet is a chip wager on a roll.
type PlaceChipBet struct {
	GameID uint32 `json:"game_id"`
	// Latest roll index of the game when the bet was placed.
	BetRollIndex uint32   `json:"bet_roll_index"`
	Player       Identity `json:"player"`
	Roll         Roll     `json:"roll"`
	Amount       uint64   `json:"amount"`
}

func (PlaceChipBet) EventType() Type { return TypePlaceChipBet }

// PlaceStrapBet is a strap wager on a roll.
type PlaceStrapBet struct {
	GameID       uint32   `json:"game_id"`
	BetRollIndex uint32   `json:"bet_roll_index"`
	Player       Identity `json:"player"`
	Roll         Roll     `json:"roll"`
	Strap        Strap    `json:"strap"`
	Amount       uint64   `json:"amount"`
}

func (PlaceStrapBet) EventType() Type { return TypePlaceStrapBet }

// ClaimRewards is a player's settled payout for a finished game.
type ClaimRewards struct {
	GameID             uint32         `json:"game_id"`
	Player             Identity       `json:"player"`
	EnabledModifiers   []RollModifier `json:"enabled_modifiers"`
	TotalChipsWinnings uint64         `json:"total_chips_winnings"`
	TotalStrapWinnings []StrapAmount  `json:"total_strap_winnings"`
}

func (ClaimRewards) EventType() Type { return TypeClaimRewards }

// FundPot is a direct chip contribution to the pot.
type FundPot struct {
	ChipsAmount uint64   `json:"chips_amount"`
	Funder      Identity `json:"funder"`
}

func (FundPot) EventType() Type { return TypeFundPot }

// PurchaseModifier activates a previously unlocked shop modifier.
type PurchaseModifier struct {
	ExpectedRoll     Roll     `json:"expected_roll"`
	ExpectedModifier Modifier `json:"expected_modifier"`
	Purchaser        Identity `json:"purchaser"`
}

func (PurchaseModifier) EventType() Type { return TypePurchaseModifier }
