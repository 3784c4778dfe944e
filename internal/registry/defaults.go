package registry

import (
	"github.com/ethereum/go-ethereum/common"

	"dgnmMarket/internal/model"
)

const (
	NetworkDneroMainnet = "Dnero Mainnet"
	NetworkMumbai       = "Mumbai Testnet"
	NetworkGanache      = "Ganache"
)

// DefaultVersion is the version of the built-in token tables.
const DefaultVersion = 1

func defaultTables() map[string][]model.Token {
	native := model.Token{Symbol: "DTOKEN", Address: model.NativeToken, Decimals: 18}
	return map[string][]model.Token{
		NetworkDneroMainnet: {
			native,
			{Symbol: "USDT", Address: common.HexToAddress("0xe7EB08Aac8b1f13B19eEF92bb016bf348028607C"), Decimals: 6},
			{Symbol: "WDNERO", Address: common.HexToAddress("0x88e8ec59e782c3e7843ed45e128152707b30d78e"), Decimals: 18},
			{Symbol: "USDC", Address: common.HexToAddress("0x84A84045dCeCa30B82205baD03b62dD214209B6c"), Decimals: 6},
		},
		NetworkMumbai: {
			native,
			{Symbol: "USDT", Address: common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Decimals: 6},
			{Symbol: "DAI", Address: common.HexToAddress("0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063"), Decimals: 18},
			{Symbol: "USDC", Address: common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"), Decimals: 6},
		},
		// mock tokens are appended by the deploy command
		NetworkGanache: {
			native,
		},
	}
}

// Default returns the built-in token registry.
func Default() *Registry {
	r, err := New(DefaultVersion, defaultTables())
	if err != nil {
		panic(err)
	}
	return r
}
