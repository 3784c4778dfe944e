// Package market implements the settlement engine: the NFT collection with its
// minting lifecycle, the collectors vault and the multi-token market.
//
// Mutating operations are serialized per engine, in the order they acquire the
// write lock, like transactions on a ledger. Each operation validates against
// the current state, builds a model.Mutation and hands it to the store in a
// single atomic commit. In-memory state changes only after the store accepted
// the commit, so a failed operation leaves no trace.
package market

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dgnmMarket/internal/model"
	"dgnmMarket/internal/registry"
	"dgnmMarket/internal/storage"
)

// Options configures an Engine.
type Options struct {
	// Network selects the registry token table payments are checked against.
	Network string
	// Collectors may withdraw from the vault.
	Collectors []common.Address
	Sink       storage.EventSink
	Metrics    *Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// Engine is the marketplace ledger for one network.
type Engine struct {
	network  string
	registry *registry.Registry
	store    storage.Store
	sink     storage.EventSink
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time

	// writeMu serializes mutating operations. stateMu guards the fields below;
	// the writer holds it exclusively only while installing committed rows.
	writeMu sync.Mutex
	stateMu sync.RWMutex

	collection    *model.Collection
	nfts          map[uint64]model.NFT
	listings      map[uint64]model.Listing
	settlements   []model.Settlement
	settledBy     map[uint64]int
	vault         *vault
	nextListingID uint64
}

// Open loads the ledger from store and returns a ready engine.
func Open(ctx context.Context, reg *registry.Registry, store storage.Store, opts Options) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if _, err := reg.Tokens(opts.Network); err != nil {
		return nil, fmt.Errorf("network %q: %w", opts.Network, err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		network:       opts.Network,
		registry:      reg,
		store:         store,
		sink:          opts.Sink,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
		nfts:          make(map[uint64]model.NFT),
		listings:      make(map[uint64]model.Listing),
		settledBy:     make(map[uint64]int),
		vault:         newVault(opts.Collectors),
		nextListingID: 1,
	}
	if len(opts.Collectors) == 0 {
		e.logger.Warn("no collectors configured, vault withdrawals are disabled")
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if err := checkSnapshot(snap); err != nil {
		e.logger.Error("ledger integrity check failed", zap.Error(err))
		return nil, err
	}
	e.apply(model.Mutation{
		Collection:  snap.Collection,
		NFTs:        snap.NFTs,
		Listings:    snap.Listings,
		Settlements: snap.Settlements,
		Balances:    snap.Balances,
	})
	e.metrics.setActiveListings(e.countActive())

	e.logger.Info("ledger loaded",
		zap.String("network", e.network),
		zap.Uint64("registry_version", reg.Version()),
		zap.Bool("initialized", e.collection != nil),
		zap.Int("nfts", len(e.nfts)),
		zap.Int("listings", len(e.listings)),
		zap.Int("settlements", len(e.settlements)),
	)
	return e, nil
}

// Network returns the network the engine settles on.
func (e *Engine) Network() string {
	return e.network
}

// Registry returns the token registry the engine was opened with.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// commit persists m and then installs it in memory. The store call does not
// observe caller cancellation: once started, a commit runs to completion.
func (e *Engine) commit(ctx context.Context, op string, m model.Mutation, events []model.Event) error {
	if err := e.store.Commit(context.WithoutCancel(ctx), m); err != nil {
		e.logger.Error("commit rejected", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrIntegrity, op, err)
	}

	e.stateMu.Lock()
	e.apply(m)
	active := e.countActive()
	e.stateMu.Unlock()

	e.metrics.setActiveListings(active)
	e.publish(ctx, events)
	return nil
}

// apply installs committed rows. Callers hold stateMu or own the engine exclusively.
func (e *Engine) apply(m model.Mutation) {
	if m.Collection != nil {
		c := m.Collection.Clone()
		e.collection = &c
	}
	for _, nft := range m.NFTs {
		e.nfts[nft.TokenID] = nft
	}
	for _, listing := range m.Listings {
		e.listings[listing.ID] = listing.Clone()
		if listing.ID >= e.nextListingID {
			e.nextListingID = listing.ID + 1
		}
	}
	for _, settlement := range m.Settlements {
		e.settledBy[settlement.ListingID] = len(e.settlements)
		e.settlements = append(e.settlements, cloneSettlement(settlement))
	}
	e.vault.apply(m.Balances)
}

func (e *Engine) publish(ctx context.Context, events []model.Event) {
	if e.sink == nil || len(events) == 0 {
		return
	}
	if err := e.sink.Publish(context.WithoutCancel(ctx), events); err != nil {
		e.logger.Warn("publish events failed", zap.Int("events", len(events)), zap.Error(err))
	}
}

func (e *Engine) event(typ model.EventType, payload interface{}) model.Event {
	return model.Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Time:    e.now().UTC(),
		Payload: payload,
	}
}

func (e *Engine) countActive() int {
	n := 0
	for _, listing := range e.listings {
		if listing.Status == model.ListingActive {
			n++
		}
	}
	return n
}

// checkSnapshot verifies the invariants a loaded ledger must satisfy.
func checkSnapshot(snap model.Snapshot) error {
	listings := make(map[uint64]model.Listing, len(snap.Listings))
	for _, listing := range snap.Listings {
		listings[listing.ID] = listing
	}

	settled := make(map[uint64]struct{}, len(snap.Settlements))
	for _, settlement := range snap.Settlements {
		if _, dup := settled[settlement.ListingID]; dup {
			return fmt.Errorf("%w: listing %d has more than one settlement", ErrIntegrity, settlement.ListingID)
		}
		settled[settlement.ListingID] = struct{}{}
		listing, ok := listings[settlement.ListingID]
		if !ok {
			return fmt.Errorf("%w: settlement %s references unknown listing %d", ErrIntegrity, settlement.ID, settlement.ListingID)
		}
		if listing.Status != model.ListingSold {
			return fmt.Errorf("%w: settled listing %d is %s", ErrIntegrity, listing.ID, listing.Status)
		}
	}
	for _, listing := range snap.Listings {
		if _, ok := settled[listing.ID]; listing.Status == model.ListingSold && !ok {
			return fmt.Errorf("%w: sold listing %d has no settlement", ErrIntegrity, listing.ID)
		}
	}

	for _, nft := range snap.NFTs {
		if !nft.Locked() {
			continue
		}
		listing, ok := listings[nft.LockedBy]
		if !ok || listing.Status != model.ListingActive || listing.NFTID != nft.TokenID {
			return fmt.Errorf("%w: nft %d locked by inactive listing %d", ErrIntegrity, nft.TokenID, nft.LockedBy)
		}
	}
	if snap.Collection != nil {
		for _, nft := range snap.NFTs {
			if nft.TokenID >= snap.Collection.NextTokenID {
				return fmt.Errorf("%w: nft %d beyond token counter %d", ErrIntegrity, nft.TokenID, snap.Collection.NextTokenID)
			}
		}
	}

	for _, balance := range snap.Balances {
		if balance.Amount == nil || balance.Amount.Sign() < 0 {
			return fmt.Errorf("%w: negative vault balance for %s", ErrIntegrity, balance.Token.Hex())
		}
	}
	return nil
}

func cloneSettlement(s model.Settlement) model.Settlement {
	out := s
	if s.PaidAmountRaw != nil {
		out.PaidAmountRaw = new(big.Int).Set(s.PaidAmountRaw)
	}
	return out
}

func sortedListings(listings map[uint64]model.Listing) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	for _, listing := range listings {
		out = append(out, listing.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func amountString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
