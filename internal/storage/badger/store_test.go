package badger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"dgnmMarket/internal/model"
	"dgnmMarket/internal/storage"
)

var (
	owner  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	seller = common.HexToAddress("0xa000000000000000000000000000000000000001")
	buyer  = common.HexToAddress("0xb000000000000000000000000000000000000002")
	mDAI   = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(dir, nil)
	require.NoError(t, err)
	return store, dir
}

func sale(listingID, nftID uint64, at time.Time) model.Mutation {
	return model.Mutation{
		NFTs: []model.NFT{{TokenID: nftID, Owner: buyer}},
		Listings: []model.Listing{{
			ID:             listingID,
			NFTID:          nftID,
			Seller:         seller,
			Price:          decimal.RequireFromString("99.5"),
			AcceptedTokens: []common.Address{mDAI, {}},
			Status:         model.ListingSold,
			CreatedAt:      at,
		}},
		Settlements: []model.Settlement{{
			ID:               fmt.Sprintf("settlement-%d", listingID),
			ListingID:        listingID,
			NFTID:            nftID,
			Seller:           seller,
			Buyer:            buyer,
			PaidToken:        mDAI,
			PaidAmountRaw:    new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)),
			NormalizedAmount: decimal.NewFromInt(100),
			Timestamp:        at,
		}},
	}
}

func TestCommitAndReload(t *testing.T) {
	store, dir := openTemp(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Commit(ctx, model.Mutation{
		Collection: &model.Collection{Owner: owner, MintCost: big.NewInt(10), State: model.StateMintingOpen, NextTokenID: 3},
		Balances:   []model.VaultBalance{{Token: model.NativeToken, Amount: big.NewInt(30)}},
	}))
	// settled out of id order to check the ledger keeps commit order
	require.NoError(t, store.Commit(ctx, sale(7, 2, at)))
	require.NoError(t, store.Commit(ctx, sale(3, 1, at.Add(time.Minute))))
	require.NoError(t, store.Close())

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Collection)
	require.Equal(t, model.StateMintingOpen, snap.Collection.State)
	require.Equal(t, "10", snap.Collection.MintCost.String())
	require.Equal(t, uint64(3), snap.Collection.NextTokenID)

	require.Len(t, snap.NFTs, 2)
	require.Equal(t, uint64(1), snap.NFTs[0].TokenID)
	require.Equal(t, buyer, snap.NFTs[0].Owner)

	require.Len(t, snap.Listings, 2)
	require.Equal(t, uint64(3), snap.Listings[0].ID)
	require.Equal(t, "99.5", snap.Listings[0].Price.String())
	require.Equal(t, []common.Address{mDAI, {}}, snap.Listings[0].AcceptedTokens)
	require.True(t, snap.Listings[1].CreatedAt.Equal(at))

	require.Len(t, snap.Settlements, 2)
	require.Equal(t, uint64(7), snap.Settlements[0].ListingID)
	require.Equal(t, uint64(3), snap.Settlements[1].ListingID)
	require.Equal(t, "100000000000000000000", snap.Settlements[0].PaidAmountRaw.String())
	require.True(t, snap.Settlements[0].NormalizedAmount.Equal(decimal.NewFromInt(100)))

	require.Len(t, snap.Balances, 1)
	require.Equal(t, "30", snap.Balances[0].Amount.String())
}

func TestCommitRejectsDoubleSettlement(t *testing.T) {
	store, _ := openTemp(t)
	defer store.Close()
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, store.Commit(ctx, sale(1, 0, at)))

	again := sale(1, 0, at)
	again.Balances = []model.VaultBalance{{Token: mDAI, Amount: big.NewInt(5)}}
	err := store.Commit(ctx, again)
	require.True(t, errors.Is(err, storage.ErrAlreadySettled))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Settlements, 1)
	require.Empty(t, snap.Balances)
}

func TestLoadEmpty(t *testing.T) {
	store, _ := openTemp(t)
	defer store.Close()

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, snap.Collection)
	require.Empty(t, snap.Listings)
}
