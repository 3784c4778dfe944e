package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// LifecycleState gates minting on a collection.
type LifecycleState uint8

const (
	StateUnset LifecycleState = iota
	StatePaused
	StateMintingOpen
	StateMintingClosed
)

var lifecycleNames = map[LifecycleState]string{
	StateUnset:         "unset",
	StatePaused:        "paused",
	StateMintingOpen:   "minting_open",
	StateMintingClosed: "minting_closed",
}

func (s LifecycleState) String() string {
	if name, ok := lifecycleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("lifecycle(%d)", uint8(s))
}

// MarshalText encodes the state by name.
func (s LifecycleState) MarshalText() ([]byte, error) {
	if _, ok := lifecycleNames[s]; !ok {
		return nil, fmt.Errorf("unknown lifecycle state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *LifecycleState) UnmarshalText(text []byte) error {
	parsed, err := ParseLifecycleState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseLifecycleState parses a state name such as "minting_open".
func ParseLifecycleState(input string) (LifecycleState, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	for state, name := range lifecycleNames {
		if name == key {
			return state, nil
		}
	}
	return StateUnset, fmt.Errorf("unknown lifecycle state: %s", input)
}

// Collection is the single NFT collection of a deployment.
type Collection struct {
	Owner       common.Address `json:"owner"`
	MintCost    *big.Int       `json:"mint_cost"`
	State       LifecycleState `json:"state"`
	NextTokenID uint64         `json:"next_token_id"`
}

// Clone returns a deep copy.
func (c Collection) Clone() Collection {
	out := c
	if c.MintCost != nil {
		out.MintCost = new(big.Int).Set(c.MintCost)
	}
	return out
}

// NFT is an issued token and its current holder.
type NFT struct {
	TokenID  uint64         `json:"token_id"`
	Owner    common.Address `json:"owner"`
	LockedBy uint64         `json:"locked_by,omitempty"`
}

// Locked reports whether the NFT is held by an active listing.
func (n NFT) Locked() bool {
	return n.LockedBy != 0
}
