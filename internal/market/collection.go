package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dgnmMarket/internal/model"
)

// transitions lists the lifecycle moves an owner may make. MintingClosed has
// no entry: it is terminal.
var transitions = map[model.LifecycleState][]model.LifecycleState{
	model.StateUnset:       {model.StatePaused},
	model.StatePaused:      {model.StateMintingOpen},
	model.StateMintingOpen: {model.StatePaused, model.StateMintingClosed},
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to model.LifecycleState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Initialize creates the collection with its owner and mint cost in base
// units of the native coin. The collection starts in StateUnset.
func (e *Engine) Initialize(ctx context.Context, owner common.Address, mintCost *big.Int) (err error) {
	defer func() { e.metrics.observe("initialize", err) }()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.collection != nil {
		return ErrAlreadyInitialized
	}
	if owner == (common.Address{}) {
		return fmt.Errorf("%w: owner is the zero address", ErrInvalidRecipient)
	}
	if mintCost == nil || mintCost.Sign() < 0 {
		return fmt.Errorf("%w: mint cost %s", ErrInvalidAmount, amountString(mintCost))
	}

	coll := model.Collection{
		Owner:    owner,
		MintCost: new(big.Int).Set(mintCost),
		State:    model.StateUnset,
	}
	if err := e.commit(ctx, "initialize", model.Mutation{Collection: &coll}, nil); err != nil {
		return err
	}

	e.logger.Info("collection initialized", zap.String("owner", owner.Hex()), zap.String("mint_cost", mintCost.String()))
	return nil
}

// SetState moves the collection to next. Only the owner may do so, and only
// along the lifecycle table.
func (e *Engine) SetState(ctx context.Context, caller common.Address, next model.LifecycleState) (err error) {
	defer func() { e.metrics.observe("set_state", err) }()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.collection == nil {
		return ErrNotInitialized
	}
	if caller != e.collection.Owner {
		return fmt.Errorf("%w: %s is not the collection owner", ErrUnauthorized, caller.Hex())
	}
	current := e.collection.State
	if !CanTransition(current, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	coll := e.collection.Clone()
	coll.State = next
	events := []model.Event{e.event(model.EventStateChanged, model.StateChangedEvent{NewState: next})}
	if err := e.commit(ctx, "set_state", model.Mutation{Collection: &coll}, events); err != nil {
		return err
	}

	e.logger.Info("collection state changed", zap.Stringer("from", current), zap.Stringer("to", next))
	return nil
}

// Mint issues the next token id to caller. The payment, in base units of the
// native coin, is credited to the vault.
func (e *Engine) Mint(ctx context.Context, caller common.Address, payment *big.Int) (tokenID uint64, err error) {
	defer func() { e.metrics.observe("mint", err) }()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.collection == nil {
		return 0, ErrNotInitialized
	}
	if e.collection.State != model.StateMintingOpen {
		return 0, fmt.Errorf("%w: collection is %s", ErrMintingNotOpen, e.collection.State)
	}
	if payment == nil || payment.Sign() < 0 {
		return 0, fmt.Errorf("%w: payment %s", ErrInvalidAmount, amountString(payment))
	}
	if payment.Cmp(e.collection.MintCost) < 0 {
		return 0, fmt.Errorf("%w: paid %s, mint cost %s", ErrInsufficientPayment, payment, e.collection.MintCost)
	}

	coll := e.collection.Clone()
	tokenID = coll.NextTokenID
	coll.NextTokenID++

	m := model.Mutation{
		Collection: &coll,
		NFTs:       []model.NFT{{TokenID: tokenID, Owner: caller}},
	}
	if payment.Sign() > 0 {
		m.Balances = []model.VaultBalance{e.vault.credit(model.NativeToken, payment)}
	}
	events := []model.Event{e.event(model.EventMinted, model.MintedEvent{TokenID: tokenID, Owner: caller.Hex()})}
	if err := e.commit(ctx, "mint", m, events); err != nil {
		return 0, err
	}

	e.logger.Info("minted", zap.Uint64("token_id", tokenID), zap.String("owner", caller.Hex()), zap.String("payment", payment.String()))
	return tokenID, nil
}

// Transfer moves an unlisted NFT from its owner to another account.
func (e *Engine) Transfer(ctx context.Context, caller, to common.Address, tokenID uint64) (err error) {
	defer func() { e.metrics.observe("transfer", err) }()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	nft, ok := e.nfts[tokenID]
	if !ok {
		return fmt.Errorf("%w: token %d", ErrNFTNotFound, tokenID)
	}
	if nft.Owner != caller {
		return fmt.Errorf("%w: token %d", ErrNotOwner, tokenID)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidRecipient)
	}
	if nft.Locked() {
		return fmt.Errorf("%w: token %d listed as %d", ErrTokenLocked, tokenID, nft.LockedBy)
	}

	nft.Owner = to
	events := []model.Event{e.event(model.EventTransferred, model.TransferredEvent{TokenID: tokenID, From: caller.Hex(), To: to.Hex()})}
	if err := e.commit(ctx, "transfer", model.Mutation{NFTs: []model.NFT{nft}}, events); err != nil {
		return err
	}

	e.logger.Info("transferred", zap.Uint64("token_id", tokenID), zap.String("from", caller.Hex()), zap.String("to", to.Hex()))
	return nil
}

// Collection returns a snapshot of the collection.
func (e *Engine) Collection() (model.Collection, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	if e.collection == nil {
		return model.Collection{}, ErrNotInitialized
	}
	return e.collection.Clone(), nil
}

// NFT returns the token and its current holder.
func (e *Engine) NFT(tokenID uint64) (model.NFT, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	nft, ok := e.nfts[tokenID]
	if !ok {
		return model.NFT{}, fmt.Errorf("%w: token %d", ErrNFTNotFound, tokenID)
	}
	return nft, nil
}
