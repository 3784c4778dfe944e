package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLifecycleStateText(t *testing.T) {
	for _, state := range []LifecycleState{StateUnset, StatePaused, StateMintingOpen, StateMintingClosed} {
		text, err := state.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", state, err)
		}
		var back LifecycleState
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if back != state {
			t.Fatalf("round trip %s -> %s", state, back)
		}
	}

	if _, err := LifecycleState(9).MarshalText(); err == nil {
		t.Fatalf("expected error for unknown state")
	}
	if _, err := ParseLifecycleState("open"); err == nil {
		t.Fatalf("expected error for unknown state name")
	}
	if state, err := ParseLifecycleState(" Minting_Open "); err != nil || state != StateMintingOpen {
		t.Fatalf("parse: %v, %v", state, err)
	}
}

func TestListingStatus(t *testing.T) {
	if ListingActive.Terminal() {
		t.Fatalf("active must not be terminal")
	}
	if !ListingSold.Terminal() || !ListingCancelled.Terminal() {
		t.Fatalf("sold and cancelled must be terminal")
	}
	if _, err := ListingStatus(0).MarshalText(); err == nil {
		t.Fatalf("expected error for zero status")
	}
}

func TestEventJSON(t *testing.T) {
	ev := Event{
		ID:   "e1",
		Type: EventSold,
		Time: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Payload: SoldEvent{
			ListingID: 4,
			Buyer:     "0xb000000000000000000000000000000000000002",
			Token:     "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			Amount:    "100000000000000000000",
		},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)
	for _, want := range []string{`"type":"Sold"`, `"listing_id":4`, `"amount":"100000000000000000000"`} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %s in %s", want, got)
		}
	}

	data, err = json.Marshal(StateChangedEvent{NewState: StateMintingClosed})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"new_state":"minting_closed"}` {
		t.Fatalf("unexpected %s", data)
	}
}
