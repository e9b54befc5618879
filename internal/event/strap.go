package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Roll is a two-dice outcome. Wire value is the face sum (2..12).
type Roll uint8

const (
	RollTwo Roll = iota + 2
	RollThree
	RollFour
	RollFive
	RollSix
	RollSeven
	RollEight
	RollNine
	RollTen
	RollEleven
	RollTwelve
)

// NumRolls is the number of distinct outcomes (2..12 inclusive).
const NumRolls = 11

// Index maps a roll onto the fixed 11-slot arrays used by snapshots.
// Out-of-range values are clamped rather than rejected: the ledger has
// already validated the event.
func (r Roll) Index() int {
	if r < RollTwo {
		return 0
	}
	if r > RollTwelve {
		return NumRolls - 1
	}
	return int(r - RollTwo)
}

// RollFromIndex is the inverse of Index.
func RollFromIndex(i int) Roll {
	if i < 0 {
		return RollTwo
	}
	if i >= NumRolls {
		return RollTwelve
	}
	return Roll(i) + RollTwo
}

// AllRolls returns every outcome in ascending order.
func AllRolls() []Roll {
	rolls := make([]Roll, 0, NumRolls)
	for r := RollTwo; r <= RollTwelve; r++ {
		rolls = append(rolls, r)
	}
	return rolls
}

func (r Roll) String() string {
	names := [...]string{
		"Two", "Three", "Four", "Five", "Six", "Seven",
		"Eight", "Nine", "Ten", "Eleven", "Twelve",
	}
	if r < RollTwo || r > RollTwelve {
		return fmt.Sprintf("Roll(%d)", uint8(r))
	}
	return names[r-RollTwo]
}

// StrapKind is the collectible category of a strap.
type StrapKind uint8

const (
	KindShirt StrapKind = iota
	KindPants
	KindShoes
	KindDress
	KindHat
	KindGlasses
	KindWatch
	KindRing
	KindNecklace
	KindEarring
	KindBracelet
	KindTattoo
	KindSkirt
	KindPiercing
	KindCoat
	KindScarf
	KindGloves
	KindGown
	KindBelt
)

func (k StrapKind) String() string {
	names := [...]string{
		"Shirt", "Pants", "Shoes", "Dress", "Hat", "Glasses", "Watch",
		"Ring", "Necklace", "Earring", "Bracelet", "Tattoo", "Skirt",
		"Piercing", "Coat", "Scarf", "Gloves", "Gown", "Belt",
	}
	if int(k) >= len(names) {
		return fmt.Sprintf("StrapKind(%d)", uint8(k))
	}
	return names[k]
}

// Modifier is a special effect carried by straps and unlockable per roll.
type Modifier uint8

const (
	ModNothing Modifier = iota
	ModBurnt
	ModLucky
	ModHoly
	ModHoley
	ModScotch
	ModSoaked
	ModMoldy
	ModStarched
	ModEvil
	ModGroovy
	ModDelicate
)

func (m Modifier) String() string {
	names := [...]string{
		"Nothing", "Burnt", "Lucky", "Holy", "Holey", "Scotch",
		"Soaked", "Moldy", "Starched", "Evil", "Groovy", "Delicate",
	}
	if int(m) >= len(names) {
		return fmt.Sprintf("Modifier(%d)", uint8(m))
	}
	return names[m]
}

// Strap is a leveled, typed, modifier-bearing collectible. Two straps are
// equal iff all three fields match; there is no ordering between straps.
type Strap struct {
	Level    uint8     `json:"level"`
	Kind     StrapKind `json:"kind"`
	Modifier Modifier  `json:"modifier"`
}

func NewStrap(level uint8, kind StrapKind, modifier Modifier) Strap {
	return Strap{Level: level, Kind: kind, Modifier: modifier}
}

// SubID packs (level, kind, modifier) into the first three bytes of the
// 32-byte sub-identifier the contract mints strap assets under.
func (s Strap) SubID() [32]byte {
	var sub [32]byte
	sub[0] = s.Level
	sub[1] = uint8(s.Kind)
	sub[2] = uint8(s.Modifier)
	return sub
}

// AssetID derives the on-ledger asset identifier for this strap under the
// given contract: sha256(contract_id || sub_id).
func (s Strap) AssetID(contract ContractID) AssetID {
	sub := s.SubID()
	h := sha256.New()
	h.Write(contract[:])
	h.Write(sub[:])
	var id AssetID
	copy(id[:], h.Sum(nil))
	return id
}

func (s Strap) String() string {
	return fmt.Sprintf("%s/%s/L%d", s.Kind, s.Modifier, s.Level)
}

// Identity is a player address as emitted by the ledger (hex string).
type Identity string

// AssetID identifies a minted asset on the ledger.
type AssetID [32]byte

func (a AssetID) String() string { return hex.EncodeToString(a[:]) }

func (a AssetID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(a[:])), nil
}

func (a *AssetID) UnmarshalText(text []byte) error {
	return decode32(text, (*[32]byte)(a), "asset id")
}

// ParseAssetID parses a 64-char hex asset identifier.
func ParseAssetID(s string) (AssetID, error) {
	var id AssetID
	err := decode32([]byte(s), (*[32]byte)(&id), "asset id")
	return id, err
}

// ContractID identifies a deployed contract on the ledger.
type ContractID [32]byte

func (c ContractID) String() string { return hex.EncodeToString(c[:]) }

func (c ContractID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(c[:])), nil
}

func (c *ContractID) UnmarshalText(text []byte) error {
	return decode32(text, (*[32]byte)(c), "contract id")
}

// ParseContractID parses a 64-char hex contract identifier.
func ParseContractID(s string) (ContractID, error) {
	var id ContractID
	err := decode32([]byte(s), (*[32]byte)(&id), "contract id")
	return id, err
}

func decode32(text []byte, dst *[32]byte, label string) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("decode %s: %w", label, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("decode %s: want 32 bytes, got %d", label, len(raw))
	}
	copy(dst[:], raw)
	return nil
}
