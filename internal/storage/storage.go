package storage

import (
	"context"
	"errors"

	"dgnmMarket/internal/model"
)

// ErrAlreadySettled is returned by Commit when a mutation carries a settlement
// for a listing that already has one.
var ErrAlreadySettled = errors.New("listing already settled")

// Store persists the ledger. Commit must apply the whole mutation atomically
// or return an error having applied none of it.
type Store interface {
	Load(ctx context.Context) (model.Snapshot, error)
	Commit(ctx context.Context, m model.Mutation) error
}

// EventSink receives events after the operation that produced them committed.
type EventSink interface {
	Publish(ctx context.Context, events []model.Event) error
}
