package ingestion

import (
	"encoding/json"
	"testing"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/testutil"
)

func rawLog(t *testing.T, receiptType string, payload any) RawLog {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return RawLog{ReceiptType: receiptType, Data: data}
}

func TestDecodeLogRoll(t *testing.T) {
	raw := rawLog(t, "Roll", event.RollEvent{GameID: 3, RollIndex: 2, RolledValue: event.RollNine})

	ev, err := DecodeLog(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	roll, ok := ev.(event.RollEvent)
	if !ok {
		t.Fatalf("decoded %T, want RollEvent", ev)
	}
	if roll.GameID != 3 || roll.RollIndex != 2 || roll.RolledValue != event.RollNine {
		t.Errorf("decoded %+v", roll)
	}
}

func TestDecodeLogPlaceStrapBet(t *testing.T) {
	in := event.PlaceStrapBet{
		GameID: 1,
		Player: "alice",
		Roll:   event.RollFour,
		Strap:  event.Strap{Level: 2, Kind: event.KindGown, Modifier: event.ModStarched},
		Amount: 9,
	}
	ev, err := DecodeLog(rawLog(t, "PlaceStrapBet", in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, ok := ev.(event.PlaceStrapBet); !ok || got != in {
		t.Errorf("decoded %+v (%T), want %+v", ev, ev, in)
	}
}

func TestDecodeLogUnknownType(t *testing.T) {
	_, err := DecodeLog(RawLog{ReceiptType: "Teleport", Data: []byte("{}")})
	if err == nil {
		t.Error("expected error for unknown receipt type")
	}
}

func TestDecodeLogBadPayload(t *testing.T) {
	_, err := DecodeLog(RawLog{ReceiptType: "Roll", Data: []byte("not json")})
	if err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestDecodeBlockOrderPreserved(t *testing.T) {
	envelope := BlockEnvelope{
		Height: 42,
		Logs: []RawLog{
			rawLog(t, "FundPot", event.FundPot{ChipsAmount: 5, Funder: "org"}),
			rawLog(t, "Roll", event.RollEvent{GameID: 1, RolledValue: event.RollSix}),
		},
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatal(err)
	}

	batch, err := DecodeBlock(data, DecodeLog, testutil.NopLogger())
	if err != nil {
		t.Fatalf("decode block: %v", err)
	}
	if batch.Height != 42 {
		t.Errorf("height = %d, want 42", batch.Height)
	}
	if len(batch.Events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(batch.Events))
	}
	if batch.Events[0].EventType() != event.TypeFundPot || batch.Events[1].EventType() != event.TypeRoll {
		t.Errorf("order = [%v %v], want [FundPot Roll]",
			batch.Events[0].EventType(), batch.Events[1].EventType())
	}
}

func TestDecodeBlockEmptyLogs(t *testing.T) {
	batch, err := DecodeBlock([]byte(`{"height":7,"logs":[]}`), DecodeLog, testutil.NopLogger())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if batch.Height != 7 || len(batch.Events) != 0 {
		t.Errorf("batch = %+v, want empty batch at height 7", batch)
	}
}

// Blocks carry every receipt the chain emits, not just game events. A foreign
// receipt type must not poison the batch or the surviving events in it.
func TestDecodeBlockSkipsForeignReceipt(t *testing.T) {
	envelope := BlockEnvelope{
		Height: 42,
		Logs: []RawLog{
			rawLog(t, "Roll", event.RollEvent{GameID: 1, RolledValue: event.RollSix}),
			{ReceiptType: "TransferOut", Data: []byte(`{"amount":5}`)},
			rawLog(t, "FundPot", event.FundPot{ChipsAmount: 5, Funder: "org"}),
		},
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatal(err)
	}

	batch, err := DecodeBlock(data, DecodeLog, testutil.NopLogger())
	if err != nil {
		t.Fatalf("decode block: %v", err)
	}
	if len(batch.Events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(batch.Events))
	}
	if batch.Events[0].EventType() != event.TypeRoll || batch.Events[1].EventType() != event.TypeFundPot {
		t.Errorf("events = [%v %v], want [Roll FundPot]",
			batch.Events[0].EventType(), batch.Events[1].EventType())
	}
}

func TestDecodeBlockSkipsMalformedLog(t *testing.T) {
	// Built as literal bytes: json.Marshal would reject a RawMessage whose
	// contents are not themselves well-formed for the target shape.
	data := []byte(`{"height":8,"logs":[` +
		`{"receipt_type":"Roll","data":"not json"},` +
		`{"receipt_type":"FundPot","data":{"chips_amount":5,"funder":"org"}}]}`)

	batch, err := DecodeBlock(data, DecodeLog, testutil.NopLogger())
	if err != nil {
		t.Fatalf("decode block: %v", err)
	}
	if len(batch.Events) != 1 || batch.Events[0].EventType() != event.TypeFundPot {
		t.Errorf("events = %v, want the surviving FundPot", batch.Events)
	}
}

func TestDecodeBlockMalformedEnvelope(t *testing.T) {
	if _, err := DecodeBlock([]byte("{not an envelope"), DecodeLog, testutil.NopLogger()); err == nil {
		t.Error("expected error for malformed envelope")
	}
}
