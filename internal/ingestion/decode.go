package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"StrappedIndexer/internal/event"
)

// BlockEnvelope is the wire format published per block: the height and the
// contract logs emitted there, in emission order. Field names use
// snake_case to match the upstream publisher.
type BlockEnvelope struct {
	Height uint32   `json:"height"`
	Logs   []RawLog `json:"logs"`
}

// RawLog is one contract log before typing: the receipt type discriminator
// plus the untouched payload.
type RawLog struct {
	ReceiptType string          `json:"receipt_type"`
	Data        json.RawMessage `json:"data"`
}

// DecodeFunc converts one raw log into a typed event. The default is
// DecodeLog; tests substitute their own.
type DecodeFunc func(RawLog) (event.Event, error)

// DecodeBlock parses a serialized BlockEnvelope and types every log in it.
// Logs that fail to decode are skipped with a warning: the feed carries every
// receipt the contract emits and not all of them are game events. Only a
// malformed envelope fails the batch.
func DecodeBlock(data []byte, decode DecodeFunc, logger zerolog.Logger) (EventBatch, error) {
	var envelope BlockEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return EventBatch{}, fmt.Errorf("parse block envelope: %w", err)
	}

	batch := EventBatch{Height: envelope.Height}
	for i, raw := range envelope.Logs {
		ev, err := decode(raw)
		if err != nil {
			logger.Warn().
				Err(err).
				Int("log", i).
				Uint32("height", envelope.Height).
				Str("receipt_type", raw.ReceiptType).
				Msg("skipping undecodable log")
			continue
		}
		batch.Events = append(batch.Events, ev)
	}
	return batch, nil
}

// DecodeLog converts a RawLog (receipt type string + JSON payload) into a
// typed event.Event.
func DecodeLog(raw RawLog) (event.Event, error) {
	switch raw.ReceiptType {
	case event.TypeInitialized.String():
		return decodeAs[event.Initialized](raw)
	case event.TypeRoll.String():
		return decodeAs[event.RollEvent](raw)
	case event.TypeNewGame.String():
		return decodeAs[event.NewGame](raw)
	case event.TypeModifierTriggered.String():
		return decodeAs[event.ModifierTriggered](raw)
	case event.TypePlaceChipBet.String():
		return decodeAs[event.PlaceChipBet](raw)
	case event.TypePlaceStrapBet.String():
		return decodeAs[event.PlaceStrapBet](raw)
	case event.TypeClaimRewards.String():
		return decodeAs[event.ClaimRewards](raw)
	case event.TypeFundPot.String():
		return decodeAs[event.FundPot](raw)
	case event.TypePurchaseModifier.String():
		return decodeAs[event.PurchaseModifier](raw)
	default:
		return nil, fmt.Errorf("unknown receipt type: %s", raw.ReceiptType)
	}
}

func decodeAs[E event.Event](raw RawLog) (event.Event, error) {
	var ev E
	if err := json.Unmarshal(raw.Data, &ev); err != nil {
		return nil, fmt.Errorf("parse %s: %w", raw.ReceiptType, err)
	}
	return ev, nil
}
