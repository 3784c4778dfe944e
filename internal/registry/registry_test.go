package registry

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dgnmMarket/internal/model"
)

var mockDAI = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func ganacheWithMockDAI(t *testing.T) *Registry {
	t.Helper()
	r, err := Default().Extend(NetworkGanache, model.Token{Symbol: "mDAI", Address: mockDAI, Decimals: 18})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	return r
}

func TestDefaultLookup(t *testing.T) {
	r := Default()

	usdt, err := r.Lookup(NetworkMumbai, common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if usdt.Symbol != "USDT" || usdt.Decimals != 6 || usdt.Index != 1 {
		t.Fatalf("unexpected token: %+v", usdt)
	}

	native, err := r.Lookup(NetworkDneroMainnet, model.NativeToken)
	if err != nil {
		t.Fatalf("lookup native: %v", err)
	}
	if !native.IsNative() || native.Decimals != 18 {
		t.Fatalf("unexpected native token: %+v", native)
	}

	want := []string{NetworkDneroMainnet, NetworkGanache, NetworkMumbai}
	if got := r.Networks(); !reflect.DeepEqual(got, want) {
		t.Fatalf("networks mismatch: %v != %v", got, want)
	}
}

func TestLookupUnknown(t *testing.T) {
	r := Default()

	if _, err := r.Lookup(NetworkGanache, mockDAI); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if _, err := r.Lookup("Nowhere", model.NativeToken); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken for unknown network, got %v", err)
	}
	if _, err := r.Tokens("Nowhere"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken for tokens of unknown network, got %v", err)
	}
}

func TestToRawTruncates(t *testing.T) {
	r := Default()
	usdt := common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")

	raw, err := r.ToRaw(NetworkMumbai, usdt, decimal.RequireFromString("1.2345679"))
	if err != nil {
		t.Fatalf("to raw: %v", err)
	}
	if raw.String() != "1234567" {
		t.Fatalf("expected truncation to 1234567, got %s", raw)
	}

	if _, err := r.ToRaw(NetworkMumbai, usdt, decimal.NewFromInt(-1)); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestToHumanExact(t *testing.T) {
	r := ganacheWithMockDAI(t)

	raw := new(big.Int).Mul(big.NewInt(100), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	human, err := r.ToHuman(NetworkGanache, mockDAI, raw)
	if err != nil {
		t.Fatalf("to human: %v", err)
	}
	if !human.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100, got %s", human)
	}

	if _, err := r.ToHuman(NetworkGanache, mockDAI, big.NewInt(-5)); err == nil {
		t.Fatalf("expected error for negative raw amount")
	}
}

func TestRoundTripWithinOneUnit(t *testing.T) {
	r, err := New(1, map[string][]model.Token{
		"test": {
			{Symbol: "ZERO", Address: common.HexToAddress("0x01"), Decimals: 0},
			{Symbol: "SIX", Address: common.HexToAddress("0x02"), Decimals: 6},
			{Symbol: "EIGHTEEN", Address: common.HexToAddress("0x03"), Decimals: 18},
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	inputs := []string{"0", "1", "0.5", "10.123456789", "123456789.000000000000000000001", "0.000000000000000001"}
	tokens, _ := r.Tokens("test")
	for _, token := range tokens {
		unit := decimal.New(1, -int32(token.Decimals))
		for _, input := range inputs {
			x := decimal.RequireFromString(input)
			raw, err := r.ToRaw("test", token.Address, x)
			if err != nil {
				t.Fatalf("%s to raw %s: %v", token.Symbol, input, err)
			}
			back, err := r.ToHuman("test", token.Address, raw)
			if err != nil {
				t.Fatalf("%s to human %s: %v", token.Symbol, input, err)
			}
			diff := x.Sub(back)
			if diff.IsNegative() || diff.GreaterThanOrEqual(unit) {
				t.Fatalf("%s round trip of %s gave %s", token.Symbol, input, back)
			}
		}
	}
}

func TestExtendLeavesReceiverUnchanged(t *testing.T) {
	base := Default()
	extended := ganacheWithMockDAI(t)

	if _, err := base.Lookup(NetworkGanache, mockDAI); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("base registry should not see mDAI")
	}
	token, err := extended.Lookup(NetworkGanache, mockDAI)
	if err != nil {
		t.Fatalf("lookup mDAI: %v", err)
	}
	if token.Index != 1 || token.Decimals != 18 {
		t.Fatalf("unexpected mDAI: %+v", token)
	}
	if extended.Version() != base.Version()+1 {
		t.Fatalf("expected version bump, got %d", extended.Version())
	}

	if _, err := extended.Extend(NetworkGanache, model.Token{Symbol: "dup", Address: mockDAI, Decimals: 18}); err == nil {
		t.Fatalf("expected duplicate address error")
	}
}

func TestNewRejectsInvalidTokens(t *testing.T) {
	cases := map[string]model.Token{
		"decimals": {Symbol: "BIG", Address: common.HexToAddress("0x01"), Decimals: 19},
		"symbol":   {Symbol: " ", Address: common.HexToAddress("0x01"), Decimals: 6},
	}
	for name, token := range cases {
		if _, err := New(1, map[string][]model.Token{"test": {token}}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestFormat(t *testing.T) {
	r := Default()
	usdc := common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")

	got, err := r.Format(NetworkMumbai, usdc, big.NewInt(1500000))
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if got != "1.500000" {
		t.Fatalf("unexpected format: %s", got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	original := ganacheWithMockDAI(t)
	path := filepath.Join(t.TempDir(), "tokens", "tokens.yaml")

	if err := WriteFile(path, original); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Version() != original.Version() {
		t.Fatalf("version mismatch: %d != %d", loaded.Version(), original.Version())
	}
	for _, network := range original.Networks() {
		want, _ := original.Tokens(network)
		got, err := loaded.Tokens(network)
		if err != nil {
			t.Fatalf("tokens %s: %v", network, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s tokens mismatch: %+v != %+v", network, got, want)
		}
	}
}

type fakeDecimals map[common.Address]uint8

func (f fakeDecimals) TokenDecimals(_ context.Context, token common.Address) (uint8, error) {
	decimals, ok := f[token]
	if !ok {
		return 0, errors.New("execution reverted")
	}
	return decimals, nil
}

func TestVerify(t *testing.T) {
	r := Default()
	src := fakeDecimals{
		common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"): 6,
		common.HexToAddress("0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063"): 8,
	}

	mismatches, err := r.Verify(context.Background(), NetworkMumbai, src)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %+v", mismatches)
	}
	if mismatches[0].Token.Symbol != "DAI" || mismatches[0].OnChain != 8 {
		t.Fatalf("unexpected DAI mismatch: %+v", mismatches[0])
	}
	if mismatches[1].Token.Symbol != "USDC" || mismatches[1].Err == nil {
		t.Fatalf("unexpected USDC mismatch: %+v", mismatches[1])
	}
}
