// Package api exposes the market engine over HTTP JSON. The caller identity of
// every mutating request is taken from the X-Caller header, which the identity
// layer in front of this service sets after authenticating the wallet.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dgnmMarket/internal/market"
)

// CallerHeader carries the authenticated caller address.
const CallerHeader = "X-Caller"

type Server struct {
	engine   *market.Engine
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

func NewServer(engine *market.Engine, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, gatherer: gatherer, logger: logger}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/collection", s.handleGetCollection).Methods(http.MethodGet)
	r.HandleFunc("/collection/mint", s.handleMint).Methods(http.MethodPost)
	r.HandleFunc("/collection/state", s.handleSetState).Methods(http.MethodPost)

	r.HandleFunc("/nfts/{id:[0-9]+}", s.handleGetNFT).Methods(http.MethodGet)
	r.HandleFunc("/nfts/{id:[0-9]+}/transfer", s.handleTransfer).Methods(http.MethodPost)

	r.HandleFunc("/listings", s.handleListListings).Methods(http.MethodGet)
	r.HandleFunc("/listings", s.handleCreateListing).Methods(http.MethodPost)
	r.HandleFunc("/listings/{id:[0-9]+}", s.handleGetListing).Methods(http.MethodGet)
	r.HandleFunc("/listings/{id:[0-9]+}/buy", s.handleBuy).Methods(http.MethodPost)
	r.HandleFunc("/listings/{id:[0-9]+}/cancel", s.handleCancel).Methods(http.MethodPost)

	r.HandleFunc("/settlements", s.handleSettlements).Methods(http.MethodGet)
	r.HandleFunc("/vault", s.handleVault).Methods(http.MethodGet)
	r.HandleFunc("/vault/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	r.HandleFunc("/vault/collectors/{address}", s.handleCollector).Methods(http.MethodGet)
	r.HandleFunc("/tokens", s.handleTokens).Methods(http.MethodGet)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Code: "RouteNotFound", Message: "route not found"})
	})
	r.Use(s.logRequests)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "network": s.engine.Network()})
}
