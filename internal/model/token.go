package model

import "github.com/ethereum/go-ethereum/common"

// NativeToken is the address used for a network's native coin.
var NativeToken = common.Address{}

// Token is a payment token accepted on a network.
type Token struct {
	Index    int            `json:"index"`
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
}

// IsNative reports whether the token is the network's native coin.
func (t Token) IsNative() bool {
	return t.Address == NativeToken
}
