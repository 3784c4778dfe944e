package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Settlement is the append-only record of a completed sale.
type Settlement struct {
	ID               string          `json:"id"`
	ListingID        uint64          `json:"listing_id"`
	NFTID            uint64          `json:"nft_id"`
	Seller           common.Address  `json:"seller"`
	Buyer            common.Address  `json:"buyer"`
	PaidToken        common.Address  `json:"paid_token"`
	PaidAmountRaw    *big.Int        `json:"paid_amount_raw"`
	NormalizedAmount decimal.Decimal `json:"normalized_amount"`
	Timestamp        time.Time       `json:"timestamp"`
}

// VaultBalance is the accumulated amount of one token in the collectors vault.
type VaultBalance struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}
