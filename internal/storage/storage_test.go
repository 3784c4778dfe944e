package storage

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"dgnmMarket/internal/model"
)

var (
	seller = common.HexToAddress("0xa000000000000000000000000000000000000001")
	buyer  = common.HexToAddress("0xb000000000000000000000000000000000000002")
	token  = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func soldMutation(listingID uint64) model.Mutation {
	return model.Mutation{
		NFTs: []model.NFT{{TokenID: 0, Owner: buyer}},
		Listings: []model.Listing{{
			ID:             listingID,
			Seller:         seller,
			Price:          decimal.NewFromInt(100),
			AcceptedTokens: []common.Address{token},
			Status:         model.ListingSold,
		}},
		Settlements: []model.Settlement{{
			ID:               "s-1",
			ListingID:        listingID,
			Seller:           seller,
			Buyer:            buyer,
			PaidToken:        token,
			PaidAmountRaw:    big.NewInt(100),
			NormalizedAmount: decimal.NewFromInt(100),
		}},
		Balances: []model.VaultBalance{{Token: token, Amount: big.NewInt(100)}},
	}
}

func TestMemoryStoreRejectsSecondSettlement(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx, soldMutation(1)))

	again := soldMutation(1)
	again.Balances = []model.VaultBalance{{Token: token, Amount: big.NewInt(200)}}
	require.ErrorIs(t, store.Commit(ctx, again), ErrAlreadySettled)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Settlements, 1)
	require.Equal(t, "100", snap.Balances[0].Amount.String())
}

func TestMemoryStoreLoadIsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx, soldMutation(1)))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	snap.Balances[0].Amount.SetInt64(7)
	snap.Listings[0].AcceptedTokens[0] = common.Address{}

	again, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "100", again.Balances[0].Amount.String())
	require.Equal(t, token, again.Listings[0].AcceptedTokens[0])
}

func TestJsonlSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "market.jsonl")
	sink := NewJsonlSink(path)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Publish(ctx, []model.Event{
		{ID: "e1", Type: model.EventMinted, Time: at, Payload: model.MintedEvent{TokenID: 0, Owner: seller.Hex()}},
	}))
	require.NoError(t, sink.Publish(ctx, []model.Event{
		{ID: "e2", Type: model.EventSold, Time: at, Payload: model.SoldEvent{ListingID: 1, Buyer: buyer.Hex(), Token: token.Hex(), Amount: "100000000000000000000"}},
		{ID: "e3", Type: model.EventStateChanged, Time: at, Payload: model.StateChangedEvent{NewState: model.StateMintingOpen}},
	}))
	require.NoError(t, sink.Publish(ctx, nil))

	lines, err := ReadJsonl(path)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	var sold struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Payload struct {
			Amount string `json:"amount"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(lines[1], &sold))
	require.Equal(t, "e2", sold.ID)
	require.Equal(t, "Sold", sold.Type)
	require.Equal(t, "100000000000000000000", sold.Payload.Amount)
	require.Contains(t, string(lines[2]), `"new_state":"minting_open"`)
}

type failSink struct{}

func (failSink) Publish(context.Context, []model.Event) error { return errors.New("down") }

func TestMultiSinkTriesEverySink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	multi := MultiSink{failSink{}, NewLogSink(zap.New(core)), nil}

	err := multi.Publish(context.Background(), []model.Event{{ID: "e1", Type: model.EventCancelled, Payload: model.CancelledEvent{ListingID: 3}}})
	require.EqualError(t, err, "down")
	require.Equal(t, 1, logs.FilterMessage("event").Len())
	require.Equal(t, "Cancelled", logs.All()[0].ContextMap()["type"])
}
