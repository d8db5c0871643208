package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/engine"
	"github.com/uhyunpark/custodex/pkg/app/core/orderbook"
	"github.com/uhyunpark/custodex/pkg/app/core/transaction"
	"github.com/uhyunpark/custodex/pkg/app/dex"
	"github.com/uhyunpark/custodex/pkg/num"
)

const maxBodyBytes = 1 << 16

// Exchange is the part of dex.App the gateway serves
type Exchange interface {
	Submit(cmd *transaction.Command) (*dex.Result, error)
	Assets() iter.Seq[asset.Asset]
	BalanceOf(trader common.Address, ticker asset.Ticker) (num.Uint, error)
	Orders(ticker asset.Ticker, side orderbook.Side) ([]orderbook.Order, error)
	Levels(ticker asset.Ticker, side orderbook.Side) ([]orderbook.PriceLevel, error)
	LastSeq() uint64
	StateHash() common.Hash
}

type Options struct {
	// AdminToken guards asset registration and deposits. Empty disables both.
	AdminToken  string
	CORSOrigins []string
	// Gatherer is served at /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server handles REST API and WebSocket connections
type Server struct {
	exchange Exchange
	router   *mux.Router
	handler  http.Handler
	hub      *Hub
	opts     Options
	log      *zap.Logger
}

func NewServer(exchange Exchange, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		exchange: exchange,
		router:   mux.NewRouter(),
		hub:      NewHub(opts.Logger.Named("ws")),
		opts:     opts,
		log:      opts.Logger,
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	s.handler = c.Handler(s.router)
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Asset endpoints
	api.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	api.HandleFunc("/assets", s.admin(s.handleRegisterAsset)).Methods("POST")

	// Custody
	api.HandleFunc("/deposits", s.admin(s.handleDeposit)).Methods("POST")
	api.HandleFunc("/withdrawals", s.handleWithdraw).Methods("POST")

	// Trading
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/books/{ticker}/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/books/{ticker}/levels", s.handleGetLevels).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}/balances/{ticker}", s.handleGetBalance).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed, CORS-wrapped handler
func (s *Server) Handler() http.Handler { return s.handler }

// Hub returns the trade feed; hook Hub().BroadcastTrade to the exchange
func (s *Server) Hub() *Hub { return s.hub }

// Start serves addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api_listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// Middleware
// ==============================

// admin requires "Authorization: Bearer <AdminToken>"
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminToken == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "admin endpoints are disabled")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) != 1 {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid admin token")
			return
		}
		next(w, r)
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	response := []AssetInfo{}
	for a := range s.exchange.Assets() {
		response = append(response, newAssetInfo(a))
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req RegisterAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ticker, err := asset.NewTicker(req.Ticker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_ticker", err.Error())
		return
	}
	identifier, ok := hexAddress(req.Identifier)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_address", fmt.Sprintf("%q is not a hex address", req.Identifier))
		return
	}

	cmd := &transaction.Command{
		Type:          transaction.CmdRegisterAsset,
		RegisterAsset: &transaction.RegisterAssetPayload{Ticker: ticker, Identifier: identifier},
	}
	if _, err := s.submit(w, cmd); err != nil {
		return
	}
	s.log.Info("asset_registered", zap.String("ticker", req.Ticker), zap.String("identifier", identifier.Hex()))
	respondJSON(w, http.StatusCreated, newAssetInfo(asset.Asset{Ticker: ticker, Identifier: identifier}))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trader, ok := hexAddress(req.Trader)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_address", fmt.Sprintf("%q is not a hex address", req.Trader))
		return
	}
	ticker, err := asset.ParseTicker(req.Ticker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_ticker", err.Error())
		return
	}

	cmd := &transaction.Command{
		Type:    transaction.CmdDeposit,
		Deposit: &transaction.DepositPayload{Trader: trader, Ticker: ticker, Amount: req.Amount},
	}
	res, err := s.submit(w, cmd)
	if err != nil {
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{Status: "accepted", Seq: res.Seq})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	cmd, ok := decodeCommand(w, r, transaction.CmdWithdraw)
	if !ok {
		return
	}
	res, err := s.submit(w, cmd)
	if err != nil {
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{Status: "accepted", Seq: res.Seq})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	cmd, ok := decodeCommand(w, r, transaction.CmdLimitOrder, transaction.CmdMarketOrder)
	if !ok {
		return
	}
	res, err := s.submit(w, cmd)
	if err != nil {
		return
	}

	response := SubmitResponse{Status: "accepted", Seq: res.Seq, OrderID: res.OrderID}
	if cmd.Type == transaction.CmdLimitOrder {
		escrow := false
		response.Escrow = &escrow
	} else {
		response.Fills = make([]FillInfo, len(res.Fills))
		for i, f := range res.Fills {
			response.Fills[i] = FillInfo{
				CounterpartyOrderID: f.CounterpartyOrderID,
				Counterparty:        f.Counterparty.Hex(),
				Amount:              f.Amount,
				Price:               f.Price,
			}
		}
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	ticker, ok := tickerVar(w, r)
	if !ok {
		return
	}
	side, err := orderbook.ParseSide(r.URL.Query().Get("side"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_side", "side must be buy or sell")
		return
	}

	orders, err := s.exchange.Orders(ticker, side)
	if err != nil {
		s.respondSubmitError(w, err)
		return
	}
	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = newOrderInfo(o)
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetLevels(w http.ResponseWriter, r *http.Request) {
	ticker, ok := tickerVar(w, r)
	if !ok {
		return
	}
	bids, err := s.exchange.Levels(ticker, orderbook.Buy)
	if err != nil {
		s.respondSubmitError(w, err)
		return
	}
	asks, err := s.exchange.Levels(ticker, orderbook.Sell)
	if err != nil {
		s.respondSubmitError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, DepthSnapshot{
		Ticker: ticker.Text(),
		Bids:   newPriceLevels(bids),
		Asks:   newPriceLevels(asks),
		Seq:    s.exchange.LastSeq(),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := hexAddress(mux.Vars(r)["address"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_address", "")
		return
	}
	ticker, ok := tickerVar(w, r)
	if !ok {
		return
	}

	balance, err := s.exchange.BalanceOf(addr, ticker)
	if err != nil {
		s.respondSubmitError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, BalanceInfo{Address: addr.Hex(), Ticker: ticker.Text(), Balance: balance})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthStatus{
		Status:    "ok",
		LastSeq:   s.exchange.LastSeq(),
		StateHash: s.exchange.StateHash().Hex(),
	})
}

// ==============================
// Helper Functions
// ==============================

// submit sends cmd to the exchange and writes the error response on failure
func (s *Server) submit(w http.ResponseWriter, cmd *transaction.Command) (*dex.Result, error) {
	res, err := s.exchange.Submit(cmd)
	if err != nil {
		s.respondSubmitError(w, err)
		return nil, err
	}
	return res, nil
}

func (s *Server) respondSubmitError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request_failed", zap.Error(err))
	}
	respondError(w, status, code, err.Error())
}

// classify maps exchange errors to HTTP status and error code
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrAssetNotFound):
		return http.StatusNotFound, "asset_not_found"
	case errors.Is(err, engine.ErrAssetExists):
		return http.StatusConflict, "asset_exists"
	case errors.Is(err, engine.ErrInsufficientTokenBalance),
		errors.Is(err, engine.ErrInsufficientBaseBalance),
		errors.Is(err, engine.ErrInsufficientWithdrawableBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, engine.ErrInvalidAsset),
		errors.Is(err, engine.ErrInvalidTicker),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidPrice),
		errors.Is(err, engine.ErrInvalidSide),
		errors.Is(err, engine.ErrAmountOverflow):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, transaction.ErrInvalidSignature),
		errors.Is(err, dex.ErrStaleNonce):
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusInternalServerError, "internal_error"
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// decodeCommand reads a signed command envelope and checks its type
func decodeCommand(w http.ResponseWriter, r *http.Request, allowed ...transaction.CommandType) (*transaction.Command, bool) {
	var cmd transaction.Command
	if !decodeBody(w, r, &cmd) {
		return nil, false
	}
	typeOK := false
	for _, t := range allowed {
		typeOK = typeOK || cmd.Type == t
	}
	if !typeOK {
		respondError(w, http.StatusBadRequest, "invalid_type", fmt.Sprintf("unexpected command type %q", cmd.Type))
		return nil, false
	}
	if err := cmd.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_command", err.Error())
		return nil, false
	}
	return &cmd, true
}

func tickerVar(w http.ResponseWriter, r *http.Request) (asset.Ticker, bool) {
	ticker, err := asset.ParseTicker(mux.Vars(r)["ticker"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_ticker", err.Error())
		return ticker, false
	}
	return ticker, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code string, message string) {
	respondJSON(w, status, ErrorResponse{Error: code, Message: message})
}
