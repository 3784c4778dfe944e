package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ListingStatus is the state of a listing. Sold and Cancelled are terminal.
type ListingStatus uint8

const (
	ListingActive ListingStatus = iota + 1
	ListingSold
	ListingCancelled
)

func (s ListingStatus) String() string {
	switch s {
	case ListingActive:
		return "active"
	case ListingSold:
		return "sold"
	case ListingCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether no transition may leave the status.
func (s ListingStatus) Terminal() bool {
	return s == ListingSold || s == ListingCancelled
}

func (s ListingStatus) MarshalText() ([]byte, error) {
	if s < ListingActive || s > ListingCancelled {
		return nil, fmt.Errorf("unknown listing status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *ListingStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseListingStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseListingStatus parses a status name.
func ParseListingStatus(input string) (ListingStatus, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "active":
		return ListingActive, nil
	case "sold":
		return ListingSold, nil
	case "cancelled":
		return ListingCancelled, nil
	default:
		return 0, fmt.Errorf("unknown listing status: %s", input)
	}
}

// Listing offers one NFT at a price payable in any of the accepted tokens.
// Price is expressed in whole units of the payment token.
type Listing struct {
	ID             uint64           `json:"id"`
	NFTID          uint64           `json:"nft_id"`
	Seller         common.Address   `json:"seller"`
	Price          decimal.Decimal  `json:"price"`
	AcceptedTokens []common.Address `json:"accepted_tokens"`
	Status         ListingStatus    `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Accepts reports whether token is one of the listing's payment tokens.
func (l Listing) Accepts(token common.Address) bool {
	for _, accepted := range l.AcceptedTokens {
		if accepted == token {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with l.
func (l Listing) Clone() Listing {
	out := l
	out.AcceptedTokens = append([]common.Address(nil), l.AcceptedTokens...)
	return out
}
