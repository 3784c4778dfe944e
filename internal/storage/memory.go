package storage

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dgnmMarket/internal/model"
)

// MemoryStore keeps the ledger in process memory.
type MemoryStore struct {
	mu          sync.Mutex
	collection  *model.Collection
	nfts        map[uint64]model.NFT
	listings    map[uint64]model.Listing
	settlements []model.Settlement
	settled     map[uint64]struct{}
	balances    map[common.Address]*big.Int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nfts:     make(map[uint64]model.NFT),
		listings: make(map[uint64]model.Listing),
		settled:  make(map[uint64]struct{}),
		balances: make(map[common.Address]*big.Int),
	}
}

// Load returns a copy of the stored ledger.
func (s *MemoryStore) Load(ctx context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap model.Snapshot
	if s.collection != nil {
		c := s.collection.Clone()
		snap.Collection = &c
	}
	for _, nft := range s.nfts {
		snap.NFTs = append(snap.NFTs, nft)
	}
	sort.Slice(snap.NFTs, func(i, j int) bool { return snap.NFTs[i].TokenID < snap.NFTs[j].TokenID })
	for _, listing := range s.listings {
		snap.Listings = append(snap.Listings, listing.Clone())
	}
	sort.Slice(snap.Listings, func(i, j int) bool { return snap.Listings[i].ID < snap.Listings[j].ID })
	for _, settlement := range s.settlements {
		snap.Settlements = append(snap.Settlements, cloneSettlement(settlement))
	}
	for token, amount := range s.balances {
		snap.Balances = append(snap.Balances, model.VaultBalance{Token: token, Amount: new(big.Int).Set(amount)})
	}
	sort.Slice(snap.Balances, func(i, j int) bool {
		return snap.Balances[i].Token.Hex() < snap.Balances[j].Token.Hex()
	})
	return snap, nil
}

// Commit applies m. A settlement for an already settled listing rejects the
// whole mutation.
func (s *MemoryStore) Commit(ctx context.Context, m model.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uint64]struct{}, len(m.Settlements))
	for _, settlement := range m.Settlements {
		if _, ok := s.settled[settlement.ListingID]; ok {
			return fmt.Errorf("%w: listing %d", ErrAlreadySettled, settlement.ListingID)
		}
		if _, ok := seen[settlement.ListingID]; ok {
			return fmt.Errorf("listing %d settled twice in one commit", settlement.ListingID)
		}
		seen[settlement.ListingID] = struct{}{}
	}

	if m.Collection != nil {
		c := m.Collection.Clone()
		s.collection = &c
	}
	for _, nft := range m.NFTs {
		s.nfts[nft.TokenID] = nft
	}
	for _, listing := range m.Listings {
		s.listings[listing.ID] = listing.Clone()
	}
	for _, settlement := range m.Settlements {
		s.settlements = append(s.settlements, cloneSettlement(settlement))
		s.settled[settlement.ListingID] = struct{}{}
	}
	for _, balance := range m.Balances {
		s.balances[balance.Token] = new(big.Int).Set(balance.Amount)
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
