package api

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dgnmMarket/internal/model"
	"dgnmMarket/internal/registry"
)

// Amounts cross the wire as decimal strings; base-unit values exceed what a
// JSON number can carry exactly.

type mintRequest struct {
	Payment string `json:"payment"`
}

type mintResponse struct {
	TokenID uint64 `json:"token_id"`
}

type setStateRequest struct {
	State model.LifecycleState `json:"state"`
}

type transferRequest struct {
	To string `json:"to"`
}

type createListingRequest struct {
	NFTID  uint64   `json:"nft_id"`
	Price  string   `json:"price"`
	Tokens []string `json:"tokens"`
}

type buyRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type withdrawRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type collectionDTO struct {
	Owner       string               `json:"owner"`
	MintCost    string               `json:"mint_cost"`
	State       model.LifecycleState `json:"state"`
	NextTokenID uint64               `json:"next_token_id"`
}

type nftDTO struct {
	TokenID   uint64 `json:"token_id"`
	Owner     string `json:"owner"`
	ListingID uint64 `json:"listing_id,omitempty"`
}

type listingDTO struct {
	ID             uint64              `json:"id"`
	NFTID          uint64              `json:"nft_id"`
	Seller         string              `json:"seller"`
	Price          string              `json:"price"`
	AcceptedTokens []string            `json:"accepted_tokens"`
	Status         model.ListingStatus `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	Settlement     *settlementDTO      `json:"settlement,omitempty"`
}

type collectorDTO struct {
	Address   string `json:"address"`
	Collector bool   `json:"collector"`
}

type settlementDTO struct {
	ID               string    `json:"id"`
	ListingID        uint64    `json:"listing_id"`
	NFTID            uint64    `json:"nft_id"`
	Seller           string    `json:"seller"`
	Buyer            string    `json:"buyer"`
	PaidToken        string    `json:"paid_token"`
	PaidAmountRaw    string    `json:"paid_amount_raw"`
	NormalizedAmount string    `json:"normalized_amount"`
	Timestamp        time.Time `json:"timestamp"`
}

type balanceDTO struct {
	Token     string `json:"token"`
	Symbol    string `json:"symbol,omitempty"`
	Amount    string `json:"amount"`
	Formatted string `json:"formatted,omitempty"`
}

type tokenDTO struct {
	Index    int    `json:"index"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

type tokensResponse struct {
	Network string     `json:"network"`
	Version uint64     `json:"version"`
	Tokens  []tokenDTO `json:"tokens"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toCollectionDTO(c model.Collection) collectionDTO {
	return collectionDTO{
		Owner:       c.Owner.Hex(),
		MintCost:    c.MintCost.String(),
		State:       c.State,
		NextTokenID: c.NextTokenID,
	}
}

func toNFTDTO(n model.NFT) nftDTO {
	return nftDTO{TokenID: n.TokenID, Owner: n.Owner.Hex(), ListingID: n.LockedBy}
}

func toListingDTO(l model.Listing) listingDTO {
	return listingDTO{
		ID:             l.ID,
		NFTID:          l.NFTID,
		Seller:         l.Seller.Hex(),
		Price:          l.Price.String(),
		AcceptedTokens: hexAddresses(l.AcceptedTokens),
		Status:         l.Status,
		CreatedAt:      l.CreatedAt,
	}
}

func toSettlementDTO(s model.Settlement) settlementDTO {
	return settlementDTO{
		ID:               s.ID,
		ListingID:        s.ListingID,
		NFTID:            s.NFTID,
		Seller:           s.Seller.Hex(),
		Buyer:            s.Buyer.Hex(),
		PaidToken:        s.PaidToken.Hex(),
		PaidAmountRaw:    s.PaidAmountRaw.String(),
		NormalizedAmount: s.NormalizedAmount.String(),
		Timestamp:        s.Timestamp,
	}
}

func toBalanceDTO(reg *registry.Registry, network string, token common.Address, amount *big.Int) balanceDTO {
	out := balanceDTO{Token: token.Hex(), Amount: amount.String()}
	if t, err := reg.Lookup(network, token); err == nil {
		out.Symbol = t.Symbol
	}
	if formatted, err := reg.Format(network, token, amount); err == nil {
		out.Formatted = formatted
	}
	return out
}

func hexAddresses(addrs []common.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.Hex())
	}
	return out
}
