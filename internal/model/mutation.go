package model

// Mutation is the set of rows a single operation writes. Stores must apply it
// atomically: every row or none.
type Mutation struct {
	Collection  *Collection
	NFTs        []NFT
	Listings    []Listing
	Settlements []Settlement
	Balances    []VaultBalance
}

// Empty reports whether the mutation writes nothing.
func (m Mutation) Empty() bool {
	return m.Collection == nil &&
		len(m.NFTs) == 0 &&
		len(m.Listings) == 0 &&
		len(m.Settlements) == 0 &&
		len(m.Balances) == 0
}

// Snapshot is the full persisted ledger as loaded from a store.
type Snapshot struct {
	Collection  *Collection
	NFTs        []NFT
	Listings    []Listing
	Settlements []Settlement
	Balances    []VaultBalance
}
