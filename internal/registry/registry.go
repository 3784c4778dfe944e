package registry

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dgnmMarket/internal/model"
)

// MaxDecimals is the largest precision a registered token may declare.
const MaxDecimals = 18

// ErrUnknownToken is returned for a token or network that is not registered.
var ErrUnknownToken = errors.New("unknown token")

type tokenKey struct {
	network string
	address common.Address
}

// Registry is an immutable, versioned table of payment tokens per network.
// A Registry is safe for concurrent use; Extend returns a new value.
type Registry struct {
	version  uint64
	networks map[string][]model.Token
	index    map[tokenKey]model.Token
}

// New builds a registry from per-network token tables. Token indexes are
// assigned by position within each network.
func New(version uint64, tables map[string][]model.Token) (*Registry, error) {
	r := &Registry{
		version:  version,
		networks: make(map[string][]model.Token, len(tables)),
		index:    make(map[tokenKey]model.Token),
	}
	for network, tokens := range tables {
		if strings.TrimSpace(network) == "" {
			return nil, fmt.Errorf("network name is required")
		}
		r.networks[network] = make([]model.Token, 0, len(tokens))
		for _, token := range tokens {
			if err := r.add(network, token); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) add(network string, token model.Token) error {
	token.Symbol = strings.TrimSpace(token.Symbol)
	if token.Symbol == "" {
		return fmt.Errorf("token %s on %s: symbol is required", token.Address.Hex(), network)
	}
	if token.Decimals > MaxDecimals {
		return fmt.Errorf("token %s on %s: decimals %d exceed %d", token.Symbol, network, token.Decimals, MaxDecimals)
	}
	key := tokenKey{network: network, address: token.Address}
	if existing, ok := r.index[key]; ok {
		return fmt.Errorf("token %s on %s: address already registered as %s", token.Symbol, network, existing.Symbol)
	}
	token.Index = len(r.networks[network])
	r.networks[network] = append(r.networks[network], token)
	r.index[key] = token
	return nil
}

// Extend returns a copy of the registry with token appended to network and the
// version bumped. The receiver is left unchanged. Only deployment tooling and
// tests register tokens this way.
func (r *Registry) Extend(network string, token model.Token) (*Registry, error) {
	if strings.TrimSpace(network) == "" {
		return nil, fmt.Errorf("network name is required")
	}
	next := &Registry{
		version:  r.version + 1,
		networks: make(map[string][]model.Token, len(r.networks)+1),
		index:    make(map[tokenKey]model.Token, len(r.index)+1),
	}
	for name, tokens := range r.networks {
		next.networks[name] = append([]model.Token(nil), tokens...)
	}
	for key, token := range r.index {
		next.index[key] = token
	}
	if err := next.add(network, token); err != nil {
		return nil, err
	}
	return next, nil
}

// Version returns the registry version.
func (r *Registry) Version() uint64 {
	return r.version
}

// Networks returns the registered network names in sorted order.
func (r *Registry) Networks() []string {
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tokens returns a copy of the network's token table.
func (r *Registry) Tokens(network string) ([]model.Token, error) {
	tokens, ok := r.networks[network]
	if !ok {
		return nil, fmt.Errorf("%w: network %q", ErrUnknownToken, network)
	}
	return append([]model.Token(nil), tokens...), nil
}

// Lookup returns the token registered at address on network.
func (r *Registry) Lookup(network string, address common.Address) (model.Token, error) {
	token, ok := r.index[tokenKey{network: network, address: address}]
	if !ok {
		return model.Token{}, fmt.Errorf("%w: %s on %q", ErrUnknownToken, address.Hex(), network)
	}
	return token, nil
}

// LookupSymbol returns the token registered under symbol on network.
func (r *Registry) LookupSymbol(network, symbol string) (model.Token, error) {
	for _, token := range r.networks[network] {
		if strings.EqualFold(token.Symbol, symbol) {
			return token, nil
		}
	}
	return model.Token{}, fmt.Errorf("%w: symbol %s on %q", ErrUnknownToken, symbol, network)
}

// ToRaw converts a human amount into base units, truncating any precision
// beyond the token's decimals.
func (r *Registry) ToRaw(network string, address common.Address, human decimal.Decimal) (*big.Int, error) {
	token, err := r.Lookup(network, address)
	if err != nil {
		return nil, err
	}
	if human.IsNegative() {
		return nil, fmt.Errorf("negative amount: %s", human.String())
	}
	return human.Shift(int32(token.Decimals)).Truncate(0).BigInt(), nil
}

// ToHuman converts base units into an exact decimal amount of the token.
func (r *Registry) ToHuman(network string, address common.Address, raw *big.Int) (decimal.Decimal, error) {
	token, err := r.Lookup(network, address)
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	if raw.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("negative amount: %s", raw.String())
	}
	return decimal.NewFromBigInt(raw, -int32(token.Decimals)), nil
}

// Format renders base units for display with the token's full precision.
func (r *Registry) Format(network string, address common.Address, raw *big.Int) (string, error) {
	token, err := r.Lookup(network, address)
	if err != nil {
		return "", err
	}
	return formatTokenAmount(raw, token.Decimals), nil
}

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}
