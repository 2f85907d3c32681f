package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/settlex/settlex/pkg/engine"
	"github.com/settlex/settlex/pkg/market"
	"github.com/settlex/settlex/pkg/oracle"
	"github.com/settlex/settlex/pkg/position"
	"github.com/settlex/settlex/pkg/vault"
)

// Server handles REST API and WebSocket connections
type Server struct {
	engine   *engine.Engine
	vault    *vault.Vault
	tokens   *position.Ledger
	registry *market.Registry
	resolver *oracle.Resolver
	router   *mux.Router
	hub      *Hub // WebSocket hub
	hubOnce  sync.Once
}

// NewServer creates a new API server over the settlement components.
func NewServer(eng *engine.Engine, v *vault.Vault, tokens *position.Ledger, registry *market.Registry, resolver *oracle.Resolver) *Server {
	s := &Server{
		engine:   eng,
		vault:    v,
		tokens:   tokens,
		registry: registry,
		resolver: resolver,
		router:   mux.NewRouter(),
		hub:      NewHub(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets", s.handleCreateMarket).Methods("POST")
	api.HandleFunc("/markets/{id}", s.handleGetMarket).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{address}/positions", s.handleGetPositions).Methods("GET")
	api.HandleFunc("/accounts/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/accounts/withdraw", s.handleWithdraw).Methods("POST")

	// Settlement endpoints
	api.HandleFunc("/fills", s.handleFill).Methods("POST")
	api.HandleFunc("/fills/{fingerprint}", s.handleGetFill).Methods("GET")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/claims", s.handleClaim).Methods("POST")
	api.HandleFunc("/resolutions", s.handleResolve).Methods("POST")

	// Admin endpoints
	api.HandleFunc("/admin/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/admin/fees", s.handleSetFees).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Handler returns the routed handler with CORS applied, for serving through
// a caller-owned http.Server. The WebSocket hub loop starts on first call.
func (s *Server) Handler() http.Handler {
	s.hubOnce.Do(func() {
		go s.hub.Run()
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) marketInfo(m *market.Market) MarketInfo {
	info := MarketInfo{
		ID:       m.ID,
		Question: m.Question,
		Outcomes: m.Outcomes,
		Deadline: m.Deadline,
		Status:   m.Status.String(),
		Resolved: s.resolver.IsResolved(m.ID),
		Locked:   s.vault.LockedTotal(m.ID),
	}
	if info.Resolved {
		if answer, err := s.resolver.Answer(m.ID); err == nil {
			info.Answer = &answer
		}
	}
	return info
}

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.registry.List()

	response := make([]MarketInfo, len(markets))
	for i, m := range markets {
		response[i] = s.marketInfo(m)
	}

	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	m, err := s.registry.Get(vars["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return
	}

	respondJSON(w, s.marketInfo(m))
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	m, err := market.NewMarket(req.ID, req.Question, req.Outcomes, req.Deadline)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid market", err.Error())
		return
	}
	if err := s.registry.Register(m); err != nil {
		respondError(w, http.StatusConflict, "registration failed", err.Error())
		return
	}

	log.Printf("[api] market created: %s (%d outcomes)", m.ID, m.Outcomes)
	respondJSON(w, s.marketInfo(m))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	respondJSON(w, AccountInfo{
		Address:   addr.Hex(),
		Available: s.vault.AvailableOf(addr),
	})
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	// Walk every registered market's outcome set; zero balances are elided.
	positions := make([]PositionInfo, 0)
	for _, m := range s.registry.List() {
		for outcome := uint8(0); outcome < m.Outcomes; outcome++ {
			token := position.TokenID(m.ID, outcome)
			balance := s.tokens.BalanceOf(addr, token)
			if balance == 0 {
				continue
			}
			positions = append(positions, PositionInfo{
				MarketID: m.ID,
				Outcome:  outcome,
				TokenID:  token.Hex(),
				Balance:  balance,
			})
		}
	}

	respondJSON(w, positions)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req BalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	if err := s.vault.Deposit(addr, req.Amount); err != nil {
		respondError(w, http.StatusBadRequest, "deposit failed", err.Error())
		return
	}

	log.Printf("[api] deposit: %s +%d", addr.Hex(), req.Amount)
	respondJSON(w, AccountInfo{Address: addr.Hex(), Available: s.vault.AvailableOf(addr)})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req BalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	if err := s.vault.Withdraw(addr, req.Amount); err != nil {
		respondError(w, http.StatusBadRequest, "withdrawal failed", err.Error())
		return
	}

	log.Printf("[api] withdrawal: %s -%d", addr.Hex(), req.Amount)
	respondJSON(w, AccountInfo{Address: addr.Hex(), Available: s.vault.AvailableOf(addr)})
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	buySig, err := hexutil.Decode(req.BuySignature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid buy signature encoding", err.Error())
		return
	}
	sellSig, err := hexutil.Decode(req.SellSignature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sell signature encoding", err.Error())
		return
	}

	receipt, err := s.engine.FillOrder(caller, &req.BuyOrder, buySig, &req.SellOrder, sellSig, req.FillAmount)
	if err != nil {
		respondError(w, settlementStatus(err), "fill rejected", err.Error())
		return
	}

	s.hub.BroadcastToChannel("fills:"+receipt.MarketID, FillUpdate{
		Type:         "fill",
		MarketID:     receipt.MarketID,
		Outcome:      receipt.Outcome,
		Amount:       receipt.FillAmount,
		Path:         string(receipt.Path),
		Buyer:        receipt.Buyer.Hex(),
		Seller:       receipt.Seller.Hex(),
		BuyerLocked:  receipt.BuyerLocked,
		SellerLocked: receipt.SellerLocked,
		Timestamp:    time.Now().UnixMilli(),
	})

	respondJSON(w, receipt)
}

func (s *Server) handleGetFill(w http.ResponseWriter, r *http.Request) {
	fpStr := mux.Vars(r)["fingerprint"]
	raw, err := hexutil.Decode(fpStr)
	if err != nil || len(raw) != common.HashLength {
		respondError(w, http.StatusBadRequest, "invalid fingerprint", "expected 32-byte hex hash")
		return
	}

	fp := engine.Fingerprint(common.BytesToHash(raw))
	respondJSON(w, FillStatus{
		Fingerprint: fp.Hex(),
		Filled:      s.engine.Filled(fp),
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature encoding", err.Error())
		return
	}

	if err := s.engine.CancelOrder(&req.Order, sig); err != nil {
		respondError(w, settlementStatus(err), "cancel rejected", err.Error())
		return
	}

	log.Printf("[api] order cancelled: market=%s maker=%s", req.Order.MarketID, req.Order.Maker.Hex())
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	receipt, err := s.engine.Claim(caller, req.MarketID, req.Outcome)
	if err != nil {
		respondError(w, settlementStatus(err), "claim rejected", err.Error())
		return
	}

	s.hub.BroadcastToChannel("claims:"+receipt.MarketID, ClaimUpdate{
		Type:      "claim",
		MarketID:  receipt.MarketID,
		Outcome:   receipt.Outcome,
		Claimant:  receipt.Claimant.Hex(),
		Released:  receipt.Released,
		Timestamp: time.Now().UnixMilli(),
	})

	respondJSON(w, receipt)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	if err := s.resolver.Resolve(caller, req.MarketID, req.Answer); err != nil {
		respondError(w, settlementStatus(err), "resolution rejected", err.Error())
		return
	}
	// Resolution ends trading in the market.
	if err := s.registry.SetStatus(req.MarketID, market.Settled); err != nil {
		log.Printf("[api] failed to settle market status: %v", err)
	}

	s.hub.BroadcastToChannel("resolutions:"+req.MarketID, ResolutionUpdate{
		Type:      "resolution",
		MarketID:  req.MarketID,
		Answer:    req.Answer,
		Timestamp: time.Now().UnixMilli(),
	})

	log.Printf("[api] market resolved: %s answer=%d", req.MarketID, req.Answer)
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	if err := s.engine.SetPaused(caller, req.Paused); err != nil {
		respondError(w, settlementStatus(err), "pause rejected", err.Error())
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleSetFees(w http.ResponseWriter, r *http.Request) {
	var req FeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	recipient, ok := parseAddress(w, req.FeeRecipient)
	if !ok {
		return
	}

	fees := engine.FeeConfig{
		TradeFeeBps:  req.TradeFeeBps,
		ClaimFeeBps:  req.ClaimFeeBps,
		FeeRecipient: recipient,
	}
	if err := s.engine.SetFees(caller, fees); err != nil {
		respondError(w, settlementStatus(err), "fee update rejected", err.Error())
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func parseAddress(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid address", raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// settlementStatus maps engine and oracle errors to HTTP status codes.
func settlementStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnauthorized), errors.Is(err, oracle.ErrNotAuthority):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrMarketNotResolved),
		errors.Is(err, engine.ErrOrderAmountExceeded),
		errors.Is(err, oracle.ErrAlreadyResolved),
		errors.Is(err, oracle.ErrNotMature):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
