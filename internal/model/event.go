package model

import "time"

// EventType names an outbound event.
type EventType string

const (
	EventMinted         EventType = "Minted"
	EventListingCreated EventType = "ListingCreated"
	EventSold           EventType = "Sold"
	EventCancelled      EventType = "Cancelled"
	EventStateChanged   EventType = "StateChanged"
	EventWithdrawn      EventType = "Withdrawn"
	EventTransferred    EventType = "Transferred"
)

// Event is emitted after an operation commits.
type Event struct {
	ID      string      `json:"id"`
	Type    EventType   `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload"`
}

// MintedEvent is the Minted payload.
type MintedEvent struct {
	TokenID uint64 `json:"token_id"`
	Owner   string `json:"owner"`
}

// ListingCreatedEvent is the ListingCreated payload.
type ListingCreatedEvent struct {
	ListingID uint64 `json:"listing_id"`
}

// SoldEvent is the Sold payload. Amount is the raw paid amount.
type SoldEvent struct {
	ListingID uint64 `json:"listing_id"`
	Buyer     string `json:"buyer"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}

// CancelledEvent is the Cancelled payload.
type CancelledEvent struct {
	ListingID uint64 `json:"listing_id"`
}

// StateChangedEvent is the StateChanged payload.
type StateChangedEvent struct {
	NewState LifecycleState `json:"new_state"`
}

// WithdrawnEvent is the Withdrawn payload.
type WithdrawnEvent struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}

// TransferredEvent is the Transferred payload.
type TransferredEvent struct {
	TokenID uint64 `json:"token_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}
