package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dgnmMarket/internal/market"
	"dgnmMarket/internal/model"
)

// errBadRequest marks request decoding failures, reported as 400.
var errBadRequest = errors.New("bad request")

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	coll, err := s.engine.Collection()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionDTO(coll))
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	payment, err := parseRaw("payment", req.Payment)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tokenID, err := s.engine.Mint(r.Context(), caller, payment)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mintResponse{TokenID: tokenID})
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req setStateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.SetState(r.Context(), caller, req.State); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleGetCollection(w, r)
}

func (s *Server) handleGetNFT(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nft, err := s.engine.NFT(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNFTDTO(nft))
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Transfer(r.Context(), caller, to, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	nft, err := s.engine.NFT(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNFTDTO(nft))
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	var filter model.ListingStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := model.ParseListingStatus(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		filter = status
	}
	out := make([]listingDTO, 0)
	for _, listing := range s.engine.Listings() {
		if filter != 0 && listing.Status != filter {
			continue
		}
		out = append(out, toListingDTO(listing))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req createListingRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: price: %v", errBadRequest, err))
		return
	}
	tokens := make([]common.Address, 0, len(req.Tokens))
	for _, raw := range req.Tokens {
		token, err := parseAddress("tokens", raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		tokens = append(tokens, token)
	}
	id, err := s.engine.CreateListing(r.Context(), caller, req.NFTID, price, tokens)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	listing, err := s.engine.Listing(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingDTO(listing))
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	listing, settlement, err := s.engine.ListingDetail(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := toListingDTO(listing)
	if settlement != nil {
		dto := toSettlementDTO(*settlement)
		out.Settlement = &dto
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseRaw("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	settlement, err := s.engine.Buy(r.Context(), caller, id, token, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(settlement))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.CancelListing(r.Context(), caller, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleGetListing(w, r)
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	settlements := s.engine.Settlements()
	out := make([]settlementDTO, 0, len(settlements))
	for _, settlement := range settlements {
		out = append(out, toSettlementDTO(settlement))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	reg := s.engine.Registry()
	network := s.engine.Network()
	balances := s.engine.Balances()
	out := make([]balanceDTO, 0, len(balances))
	for _, balance := range balances {
		out = append(out, toBalanceDTO(reg, network, balance.Token, balance.Amount))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseRaw("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Withdraw(r.Context(), caller, token, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(s.engine.Registry(), s.engine.Network(), token, s.engine.Balance(token)))
}

func (s *Server) handleCollector(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", mux.Vars(r)["address"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectorDTO{Address: addr.Hex(), Collector: s.engine.IsCollector(addr)})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	reg := s.engine.Registry()
	network := s.engine.Network()
	if q := r.URL.Query().Get("network"); q != "" {
		network = q
	}
	tokens, err := reg.Tokens(network)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := tokensResponse{Network: network, Version: reg.Version(), Tokens: make([]tokenDTO, 0, len(tokens))}
	for _, token := range tokens {
		out.Tokens = append(out.Tokens, tokenDTO{
			Index:    token.Index,
			Symbol:   token.Symbol,
			Address:  token.Address.Hex(),
			Decimals: token.Decimals,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
}

func statusOf(err error) (int, string) {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, "BadRequest"
	}
	code := market.CodeOf(err)
	switch market.KindOf(err) {
	case market.KindValidation:
		return http.StatusBadRequest, code
	case market.KindAuthorization:
		return http.StatusForbidden, code
	case market.KindConflict:
		return http.StatusConflict, code
	case market.KindNotFound:
		return http.StatusNotFound, code
	default:
		return http.StatusInternalServerError, code
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: body: %v", errBadRequest, err)
	}
	return nil
}

func callerOf(r *http.Request) (common.Address, error) {
	raw := strings.TrimSpace(r.Header.Get(CallerHeader))
	if raw == "" {
		return common.Address{}, fmt.Errorf("%w: missing %s header", errBadRequest, CallerHeader)
	}
	return parseAddress(CallerHeader, raw)
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %v", errBadRequest, err)
	}
	return id, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s: invalid address %q", errBadRequest, field, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseRaw(field, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s: invalid integer %q", errBadRequest, field, raw)
	}
	return v, nil
}
