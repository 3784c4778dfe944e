package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dgnmMarket/internal/model"
)

// CreateListing offers nftID for price, in whole units of whichever accepted
// token the buyer pays with. The NFT stays locked until the listing is sold
// or cancelled.
func (e *Engine) CreateListing(ctx context.Context, seller common.Address, nftID uint64, price decimal.Decimal, tokens []common.Address) (listingID uint64, err error) {
	defer func() { e.metrics.observe("create_listing", err) }()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	nft, ok := e.nfts[nftID]
	if !ok || nft.Owner != seller {
		return 0, fmt.Errorf("%w: token %d", ErrNotOwner, nftID)
	}
	if len(tokens) == 0 {
		return 0, ErrEmptyTokenSet
	}
	if !price.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPrice, price.String())
	}

	accepted := make([]common.Address, 0, len(tokens))
	seen := make(map[common.Address]struct{}, len(tokens))
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		if _, err := e.registry.Lookup(e.network, token); err != nil {
			return 0, err
		}
		seen[token] = struct{}{}
		accepted = append(accepted, token)
	}
	if nft.Locked() {
		return 0, fmt.Errorf("%w: token %d listed as %d", ErrTokenLocked, nftID, nft.LockedBy)
	}

	listing := model.Listing{
		ID:             e.nextListingID,
		NFTID:          nftID,
		Seller:         seller,
		Price:          price,
		AcceptedTokens: accepted,
		Status:         model.ListingActive,
		CreatedAt:      e.now().UTC(),
	}
	nft.LockedBy = listing.ID

	m := model.Mutation{
		NFTs:     []model.NFT{nft},
		Listings: []model.Listing{listing},
	}
	events := []model.Event{e.event(model.EventListingCreated, model.ListingCreatedEvent{ListingID: listing.ID})}
	if err := e.commit(ctx, "create_listing", m, events); err != nil {
		return 0, err
	}

	e.logger.Info("listing created",
		zap.Uint64("listing_id", listing.ID),
		zap.Uint64("nft_id", nftID),
		zap.String("seller", seller.Hex()),
		zap.String("price", price.String()),
		zap.Int("accepted_tokens", len(accepted)),
	)
	return listing.ID, nil
}

// Buy settles listingID for buyer, paying paidRaw base units of token.
// Overpayment is accepted and credited in full; no change is returned.
// Ownership transfer, vault credit, the settlement record and the Sold status
// are committed together or not at all.
func (e *Engine) Buy(ctx context.Context, buyer common.Address, listingID uint64, token common.Address, paidRaw *big.Int) (settlement model.Settlement, err error) {
	defer func() { e.metrics.observe("buy", err) }()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	listing, ok := e.listings[listingID]
	if !ok {
		return model.Settlement{}, fmt.Errorf("%w: listing %d", ErrListingNotFound, listingID)
	}
	if listing.Status != model.ListingActive {
		return model.Settlement{}, fmt.Errorf("%w: listing %d is %s", ErrListingNotActive, listingID, listing.Status)
	}
	if !listing.Accepts(token) {
		return model.Settlement{}, fmt.Errorf("%w: %s for listing %d", ErrTokenNotAccepted, token.Hex(), listingID)
	}
	if paidRaw == nil || paidRaw.Sign() < 0 {
		return model.Settlement{}, fmt.Errorf("%w: paid %s", ErrInvalidAmount, amountString(paidRaw))
	}

	paidToken, err := e.registry.Lookup(e.network, token)
	if err != nil {
		// accepted tokens were checked against the same immutable registry
		e.logger.Error("accepted token missing from registry", zap.String("token", token.Hex()), zap.Error(err))
		return model.Settlement{}, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	normalized, err := e.registry.ToHuman(e.network, token, paidRaw)
	if err != nil {
		return model.Settlement{}, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	if normalized.LessThan(listing.Price) {
		return model.Settlement{}, fmt.Errorf("%w: paid %s %s, price %s", ErrInsufficientPayment, normalized.String(), paidToken.Symbol, listing.Price.String())
	}

	nft, ok := e.nfts[listing.NFTID]
	if !ok || nft.Owner != listing.Seller || nft.LockedBy != listing.ID {
		e.logger.Error("listed nft not held by listing",
			zap.Uint64("listing_id", listingID),
			zap.Uint64("nft_id", listing.NFTID),
			zap.String("owner", nft.Owner.Hex()),
			zap.Uint64("locked_by", nft.LockedBy),
		)
		return model.Settlement{}, fmt.Errorf("%w: nft %d is not escrowed by listing %d", ErrIntegrity, listing.NFTID, listingID)
	}

	sold := listing.Clone()
	sold.Status = model.ListingSold
	nft.Owner = buyer
	nft.LockedBy = 0
	settlement = model.Settlement{
		ID:               uuid.NewString(),
		ListingID:        listingID,
		NFTID:            listing.NFTID,
		Seller:           listing.Seller,
		Buyer:            buyer,
		PaidToken:        token,
		PaidAmountRaw:    new(big.Int).Set(paidRaw),
		NormalizedAmount: normalized,
		Timestamp:        e.now().UTC(),
	}

	m := model.Mutation{
		NFTs:        []model.NFT{nft},
		Listings:    []model.Listing{sold},
		Settlements: []model.Settlement{settlement},
		Balances:    []model.VaultBalance{e.vault.credit(token, paidRaw)},
	}
	events := []model.Event{e.event(model.EventSold, model.SoldEvent{
		ListingID: listingID,
		Buyer:     buyer.Hex(),
		Token:     token.Hex(),
		Amount:    paidRaw.String(),
	})}
	if err := e.commit(ctx, "buy", m, events); err != nil {
		return model.Settlement{}, err
	}
	e.metrics.settled(paidToken.Symbol)

	e.logger.Info("listing sold",
		zap.Uint64("listing_id", listingID),
		zap.Uint64("nft_id", listing.NFTID),
		zap.String("buyer", buyer.Hex()),
		zap.String("token", paidToken.Symbol),
		zap.String("paid_raw", paidRaw.String()),
		zap.String("normalized", normalized.String()),
	)
	return cloneSettlement(settlement), nil
}

// CancelListing withdraws an active listing and unlocks its NFT. The seller
// and the collection owner may cancel.
func (e *Engine) CancelListing(ctx context.Context, caller common.Address, listingID uint64) (err error) {
	defer func() { e.metrics.observe("cancel_listing", err) }()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	listing, ok := e.listings[listingID]
	if !ok {
		return fmt.Errorf("%w: listing %d", ErrListingNotFound, listingID)
	}
	isOwner := e.collection != nil && e.collection.Owner == caller
	if caller != listing.Seller && !isOwner {
		return fmt.Errorf("%w: %s may not cancel listing %d", ErrUnauthorized, caller.Hex(), listingID)
	}
	if listing.Status != model.ListingActive {
		return fmt.Errorf("%w: listing %d is %s", ErrListingNotActive, listingID, listing.Status)
	}

	cancelled := listing.Clone()
	cancelled.Status = model.ListingCancelled
	m := model.Mutation{Listings: []model.Listing{cancelled}}
	if nft, ok := e.nfts[listing.NFTID]; ok && nft.LockedBy == listingID {
		nft.LockedBy = 0
		m.NFTs = []model.NFT{nft}
	}
	events := []model.Event{e.event(model.EventCancelled, model.CancelledEvent{ListingID: listingID})}
	if err := e.commit(ctx, "cancel_listing", m, events); err != nil {
		return err
	}

	e.logger.Info("listing cancelled", zap.Uint64("listing_id", listingID), zap.String("by", caller.Hex()))
	return nil
}

// Listing returns a listing by id.
func (e *Engine) Listing(listingID uint64) (model.Listing, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	listing, ok := e.listings[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("%w: listing %d", ErrListingNotFound, listingID)
	}
	return listing.Clone(), nil
}

// ListingDetail returns a listing together with its settlement, read under one
// lock so a sold listing always carries its settlement and an active one never does.
func (e *Engine) ListingDetail(listingID uint64) (model.Listing, *model.Settlement, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	listing, ok := e.listings[listingID]
	if !ok {
		return model.Listing{}, nil, fmt.Errorf("%w: listing %d", ErrListingNotFound, listingID)
	}
	idx, ok := e.settledBy[listingID]
	if !ok {
		return listing.Clone(), nil, nil
	}
	settlement := cloneSettlement(e.settlements[idx])
	return listing.Clone(), &settlement, nil
}

// Listings returns all listings ordered by id.
func (e *Engine) Listings() []model.Listing {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	return sortedListings(e.listings)
}

// Settlements returns the settlement ledger in commit order.
func (e *Engine) Settlements() []model.Settlement {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	out := make([]model.Settlement, 0, len(e.settlements))
	for _, s := range e.settlements {
		out = append(out, cloneSettlement(s))
	}
	return out
}

// SettlementFor returns the settlement of listingID, if it was sold.
func (e *Engine) SettlementFor(listingID uint64) (model.Settlement, bool) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	idx, ok := e.settledBy[listingID]
	if !ok {
		return model.Settlement{}, false
	}
	return cloneSettlement(e.settlements[idx]), true
}
