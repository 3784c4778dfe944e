package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20DecimalsABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20DecimalsABI     abi.ABI
	erc20DecimalsABIOnce sync.Once
	erc20DecimalsABIErr  error
)

func erc20DecimalsABIInstance() (abi.ABI, error) {
	erc20DecimalsABIOnce.Do(func() {
		erc20DecimalsABI, erc20DecimalsABIErr = abi.JSON(strings.NewReader(erc20DecimalsABIJSON))
	})
	return erc20DecimalsABI, erc20DecimalsABIErr
}

type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

func fetchDecimals(ctx context.Context, caller contractCaller, token common.Address) (uint8, error) {
	parsed, err := erc20DecimalsABIInstance()
	if err != nil {
		return 0, permanent(fmt.Errorf("parse erc20 abi: %w", err))
	}

	data, err := parsed.Pack("decimals")
	if err != nil {
		return 0, permanent(fmt.Errorf("pack decimals: %w", err))
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	values, err := parsed.Unpack("decimals", resp)
	if err != nil {
		return 0, permanent(fmt.Errorf("unpack decimals: %w", err))
	}
	if len(values) != 1 {
		return 0, permanent(fmt.Errorf("decimals return size %d", len(values)))
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return 0, permanent(err)
	}
	return decimals, nil
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals overflow: %s", v.String())
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
