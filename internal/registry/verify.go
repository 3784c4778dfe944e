package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"dgnmMarket/internal/model"
)

// DecimalsSource reads the decimals a token contract reports on chain.
type DecimalsSource interface {
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// Mismatch describes a registered token whose on-chain decimals differ or
// could not be read.
type Mismatch struct {
	Token   model.Token
	OnChain uint8
	Err     error
}

// Verify checks every non-native token of network against src.
func (r *Registry) Verify(ctx context.Context, network string, src DecimalsSource) ([]Mismatch, error) {
	tokens, err := r.Tokens(network)
	if err != nil {
		return nil, err
	}

	var mismatches []Mismatch
	for _, token := range tokens {
		if token.IsNative() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return mismatches, err
		}
		decimals, err := src.TokenDecimals(ctx, token.Address)
		if err != nil {
			mismatches = append(mismatches, Mismatch{Token: token, Err: err})
			continue
		}
		if decimals != token.Decimals {
			mismatches = append(mismatches, Mismatch{Token: token, OnChain: decimals})
		}
	}
	return mismatches, nil
}
