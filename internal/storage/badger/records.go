package badger

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dgnmMarket/internal/model"
)

const (
	keyCollection        = "COLLECTION"
	prefixNFT            = "NFT:"
	prefixListing        = "LISTING:"
	prefixSettlement     = "SETTLEMENT:"
	prefixVault          = "VAULT:"
	keySettlementCounter = "SETTLEMENT:SEQ"
)

func idKey(prefix string, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func vaultKey(token common.Address) []byte {
	return append([]byte(prefixVault), token.Bytes()...)
}

type collectionRecord struct {
	Owner       string
	MintCost    string
	State       uint8
	NextTokenID uint64
}

type nftRecord struct {
	TokenID  uint64
	Owner    string
	LockedBy uint64
}

type listingRecord struct {
	ID             uint64
	NFTID          uint64
	Seller         string
	Price          string
	AcceptedTokens []string
	Status         uint8
	CreatedAt      int64
}

type settlementRecord struct {
	Seq              uint64
	ID               string
	ListingID        uint64
	NFTID            uint64
	Seller           string
	Buyer            string
	PaidToken        string
	PaidAmountRaw    string
	NormalizedAmount string
	Timestamp        int64
}

type balanceRecord struct {
	Token  string
	Amount string
}

func parseInt(field, value string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", field, value)
	}
	return n, nil
}

func fromCollection(c model.Collection) collectionRecord {
	return collectionRecord{
		Owner:       c.Owner.Hex(),
		MintCost:    c.MintCost.String(),
		State:       uint8(c.State),
		NextTokenID: c.NextTokenID,
	}
}

func (r collectionRecord) model() (model.Collection, error) {
	cost, err := parseInt("mint_cost", r.MintCost)
	if err != nil {
		return model.Collection{}, err
	}
	return model.Collection{
		Owner:       common.HexToAddress(r.Owner),
		MintCost:    cost,
		State:       model.LifecycleState(r.State),
		NextTokenID: r.NextTokenID,
	}, nil
}

func fromNFT(n model.NFT) nftRecord {
	return nftRecord{TokenID: n.TokenID, Owner: n.Owner.Hex(), LockedBy: n.LockedBy}
}

func (r nftRecord) model() model.NFT {
	return model.NFT{TokenID: r.TokenID, Owner: common.HexToAddress(r.Owner), LockedBy: r.LockedBy}
}

func fromListing(l model.Listing) listingRecord {
	tokens := make([]string, 0, len(l.AcceptedTokens))
	for _, token := range l.AcceptedTokens {
		tokens = append(tokens, token.Hex())
	}
	return listingRecord{
		ID:             l.ID,
		NFTID:          l.NFTID,
		Seller:         l.Seller.Hex(),
		Price:          l.Price.String(),
		AcceptedTokens: tokens,
		Status:         uint8(l.Status),
		CreatedAt:      l.CreatedAt.UnixNano(),
	}
}

func (r listingRecord) model() (model.Listing, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return model.Listing{}, fmt.Errorf("listing %d price: %w", r.ID, err)
	}
	tokens := make([]common.Address, 0, len(r.AcceptedTokens))
	for _, token := range r.AcceptedTokens {
		tokens = append(tokens, common.HexToAddress(token))
	}
	return model.Listing{
		ID:             r.ID,
		NFTID:          r.NFTID,
		Seller:         common.HexToAddress(r.Seller),
		Price:          price,
		AcceptedTokens: tokens,
		Status:         model.ListingStatus(r.Status),
		CreatedAt:      time.Unix(0, r.CreatedAt).UTC(),
	}, nil
}

func fromSettlement(seq uint64, s model.Settlement) settlementRecord {
	return settlementRecord{
		Seq:              seq,
		ID:               s.ID,
		ListingID:        s.ListingID,
		NFTID:            s.NFTID,
		Seller:           s.Seller.Hex(),
		Buyer:            s.Buyer.Hex(),
		PaidToken:        s.PaidToken.Hex(),
		PaidAmountRaw:    s.PaidAmountRaw.String(),
		NormalizedAmount: s.NormalizedAmount.String(),
		Timestamp:        s.Timestamp.UnixNano(),
	}
}

func (r settlementRecord) model() (model.Settlement, error) {
	paid, err := parseInt("paid_amount_raw", r.PaidAmountRaw)
	if err != nil {
		return model.Settlement{}, err
	}
	normalized, err := decimal.NewFromString(r.NormalizedAmount)
	if err != nil {
		return model.Settlement{}, fmt.Errorf("settlement %s normalized amount: %w", r.ID, err)
	}
	return model.Settlement{
		ID:               r.ID,
		ListingID:        r.ListingID,
		NFTID:            r.NFTID,
		Seller:           common.HexToAddress(r.Seller),
		Buyer:            common.HexToAddress(r.Buyer),
		PaidToken:        common.HexToAddress(r.PaidToken),
		PaidAmountRaw:    paid,
		NormalizedAmount: normalized,
		Timestamp:        time.Unix(0, r.Timestamp).UTC(),
	}, nil
}

func (r balanceRecord) model() (model.VaultBalance, error) {
	amount, err := parseInt("vault "+r.Token, r.Amount)
	if err != nil {
		return model.VaultBalance{}, err
	}
	return model.VaultBalance{Token: common.HexToAddress(r.Token), Amount: amount}, nil
}
