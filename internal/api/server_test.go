package api

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"dgnmMarket/internal/market"
	"dgnmMarket/internal/model"
	"dgnmMarket/internal/registry"
	"dgnmMarket/internal/storage"
)

var (
	owner     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	collector = common.HexToAddress("0x2000000000000000000000000000000000000002")
	alice     = common.HexToAddress("0xa000000000000000000000000000000000000001")
	bob       = common.HexToAddress("0xb000000000000000000000000000000000000002")
	mDAI      = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg, err := registry.Default().Extend(registry.NetworkGanache, model.Token{Symbol: "mDAI", Address: mDAI, Decimals: 18})
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	metrics, err := market.NewMetrics(promReg)
	require.NoError(t, err)

	engine, err := market.Open(context.Background(), reg, storage.NewMemoryStore(), market.Options{
		Network:    registry.NetworkGanache,
		Collectors: []common.Address{collector},
		Metrics:    metrics,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx, owner, big.NewInt(10)))
	require.NoError(t, engine.SetState(ctx, owner, model.StatePaused))

	srv := httptest.NewServer(NewServer(engine, promReg, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, caller common.Address, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if caller != (common.Address{}) {
		req.Header.Set(CallerHeader, caller.Hex())
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}

func TestMarketFlow(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/collection/mint", alice, `{"payment":"10"}`)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "MintingNotOpen", body["code"])

	status, body = do(t, srv, http.MethodPost, "/collection/state", alice, `{"state":"minting_open"}`)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Unauthorized", body["code"])

	status, body = do(t, srv, http.MethodPost, "/collection/state", owner, `{"state":"minting_open"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "minting_open", body["state"])

	status, body = do(t, srv, http.MethodPost, "/collection/mint", alice, `{"payment":"5"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "InsufficientPayment", body["code"])

	status, body = do(t, srv, http.MethodPost, "/collection/mint", alice, `{"payment":"10"}`)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, float64(0), body["token_id"])

	status, body = do(t, srv, http.MethodPost, "/listings", alice, `{"nft_id":0,"price":"100","tokens":["`+mDAI.Hex()+`"]}`)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, float64(1), body["id"])
	require.Equal(t, "active", body["status"])
	require.Equal(t, "100", body["price"])

	status, body = do(t, srv, http.MethodPost, "/nfts/0/transfer", alice, `{"to":"`+bob.Hex()+`"}`)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "TokenLocked", body["code"])

	buy := `{"token":"` + mDAI.Hex() + `","amount":"100000000000000000000"}`
	status, body = do(t, srv, http.MethodPost, "/listings/1/buy", bob, buy)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "100", body["normalized_amount"])
	require.Equal(t, "100000000000000000000", body["paid_amount_raw"])
	require.Equal(t, bob.Hex(), body["buyer"])

	status, body = do(t, srv, http.MethodPost, "/listings/1/buy", alice, buy)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "ListingNotActive", body["code"])

	status, body = do(t, srv, http.MethodGet, "/listings/1", common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "sold", body["status"])
	require.NotNil(t, body["settlement"])

	status, body = do(t, srv, http.MethodGet, "/nfts/0", common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, bob.Hex(), body["owner"])

	status, body = do(t, srv, http.MethodPost, "/vault/withdraw", alice, `{"token":"`+mDAI.Hex()+`","amount":"1"}`)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Unauthorized", body["code"])

	status, body = do(t, srv, http.MethodPost, "/vault/withdraw", collector, `{"token":"`+mDAI.Hex()+`","amount":"40000000000000000000"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "60000000000000000000", body["amount"])
	require.Equal(t, "mDAI", body["symbol"])
	require.Equal(t, "60.000000000000000000", body["formatted"])

	status, body = do(t, srv, http.MethodGet, "/metrics", common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body["raw"], `market_settlements_total{token="mDAI"} 1`)
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/collection/mint", common.Address{}, `{"payment":"10"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "BadRequest", body["code"])

	status, body = do(t, srv, http.MethodPost, "/collection/mint", alice, `{"payment":10}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "BadRequest", body["code"])

	status, body = do(t, srv, http.MethodPost, "/listings", alice, `{"nft_id":0,"price":"1","tokens":["0x9999999999999999999999999999999999999999"]}`)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "NotOwner", body["code"])

	status, body = do(t, srv, http.MethodGet, "/listings/42", common.Address{}, "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "ListingNotFound", body["code"])

	status, body = do(t, srv, http.MethodGet, "/listings?status=bogus", common.Address{}, "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "BadRequest", body["code"])

	status, body = do(t, srv, http.MethodGet, "/nope", common.Address{}, "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "RouteNotFound", body["code"])
}

func TestCollector(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/vault/collectors/"+collector.Hex(), common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["collector"])
	require.Equal(t, collector.Hex(), body["address"])

	status, body = do(t, srv, http.MethodGet, "/vault/collectors/"+alice.Hex(), common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["collector"])

	status, body = do(t, srv, http.MethodGet, "/vault/collectors/not-an-address", common.Address{}, "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "BadRequest", body["code"])
}

func TestTokens(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/tokens", common.Address{}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, registry.NetworkGanache, body["network"])
	require.Equal(t, float64(registry.DefaultVersion+1), body["version"])
	tokens := body["tokens"].([]interface{})
	require.Len(t, tokens, 2)
	require.Equal(t, "mDAI", tokens[1].(map[string]interface{})["symbol"])

	status, body = do(t, srv, http.MethodGet, "/tokens?network=Nowhere", common.Address{}, "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "UnknownToken", body["code"])
}
