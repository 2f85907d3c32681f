package api

import "github.com/settlex/settlex/pkg/engine"

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// MarketInfo represents a market's static configuration
type MarketInfo struct {
	ID       string `json:"id"`       // e.g., "election-2028"
	Question string `json:"question"` // Human-readable question
	Outcomes uint8  `json:"outcomes"` // Number of outcomes
	Deadline int64  `json:"deadline"` // Unix seconds, 0 = no deadline
	Status   string `json:"status"`   // "Active", "Paused", "Settled"
	Resolved bool   `json:"resolved"`
	Answer   *uint8 `json:"answer,omitempty"` // Winning outcome, once resolved
	Locked   int64  `json:"locked"`           // Collateral escrowed in the market pool
}

// AccountInfo represents an account's collateral balance
type AccountInfo struct {
	Address   string `json:"address"`
	Available int64  `json:"available"` // Spendable collateral units
}

// PositionInfo represents an outcome-token holding
type PositionInfo struct {
	MarketID string `json:"marketId"`
	Outcome  uint8  `json:"outcome"`
	TokenID  string `json:"tokenId"` // Derived token hash
	Balance  int64  `json:"balance"`
}

// FillStatus reports cumulative fill progress for an order fingerprint
type FillStatus struct {
	Fingerprint string `json:"fingerprint"`
	Filled      int64  `json:"filled"`
}

// ==============================
// REST Request Types
// ==============================

// FillRequest is the payload for POST /api/v1/fills: a matched pair of
// signed orders submitted by an operator.
type FillRequest struct {
	Caller        string       `json:"caller"` // Operator address
	BuyOrder      engine.Order `json:"buyOrder"`
	BuySignature  string       `json:"buySignature"` // Hex-encoded 65-byte signature
	SellOrder     engine.Order `json:"sellOrder"`
	SellSignature string       `json:"sellSignature"`
	FillAmount    int64        `json:"fillAmount"`
}

// CancelRequest is the payload for POST /api/v1/orders/cancel: the full
// order plus its maker signature, which doubles as proof of ownership.
type CancelRequest struct {
	Order     engine.Order `json:"order"`
	Signature string       `json:"signature"`
}

// ClaimRequest is the payload for POST /api/v1/claims
type ClaimRequest struct {
	Caller   string `json:"caller"` // Claimant address
	MarketID string `json:"marketId"`
	Outcome  uint8  `json:"outcome"`
}

// BalanceRequest is the payload for deposits and withdrawals
type BalanceRequest struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// ResolveRequest is the payload for POST /api/v1/resolutions
type ResolveRequest struct {
	Caller   string `json:"caller"` // Must be the resolution authority
	MarketID string `json:"marketId"`
	Answer   uint8  `json:"answer"`
}

// CreateMarketRequest is the payload for POST /api/v1/markets
type CreateMarketRequest struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Outcomes uint8  `json:"outcomes"`
	Deadline int64  `json:"deadline"`
}

// PauseRequest is the payload for POST /api/v1/admin/pause
type PauseRequest struct {
	Caller string `json:"caller"` // Must be the owner
	Paused bool   `json:"paused"`
}

// FeesRequest is the payload for POST /api/v1/admin/fees
type FeesRequest struct {
	Caller       string `json:"caller"` // Must be the owner
	TradeFeeBps  int64  `json:"tradeFeeBps"`
	ClaimFeeBps  int64  `json:"claimFeeBps"`
	FeeRecipient string `json:"feeRecipient"`
}

// StatusResponse is the generic acknowledgement for mutations
type StatusResponse struct {
	Status string `json:"status"` // "ok"
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["fills:election-2028", "resolutions:election-2028"]
}

// WSAck confirms a subscription change back to the requesting client.
// Channels the server refused (unknown topic prefix) come back in Rejected.
type WSAck struct {
	Type     string   `json:"type"` // "subscribed" or "unsubscribed"
	Channels []string `json:"channels"`
	Rejected []string `json:"rejected,omitempty"`
}

// FillUpdate is broadcast when a fill settles
type FillUpdate struct {
	Type         string `json:"type"` // "fill"
	MarketID     string `json:"marketId"`
	Outcome      uint8  `json:"outcome"`
	Amount       int64  `json:"amount"`
	Path         string `json:"path"` // "mint" or "swap"
	Buyer        string `json:"buyer"`
	Seller       string `json:"seller"`
	BuyerLocked  int64  `json:"buyerLocked"`
	SellerLocked int64  `json:"sellerLocked"`
	Timestamp    int64  `json:"timestamp"` // Unix milliseconds
}

// ResolutionUpdate is broadcast when a market resolves
type ResolutionUpdate struct {
	Type      string `json:"type"` // "resolution"
	MarketID  string `json:"marketId"`
	Answer    uint8  `json:"answer"`
	Timestamp int64  `json:"timestamp"`
}

// ClaimUpdate is broadcast when a claim pays out
type ClaimUpdate struct {
	Type      string `json:"type"` // "claim"
	MarketID  string `json:"marketId"`
	Outcome   uint8  `json:"outcome"`
	Claimant  string `json:"claimant"`
	Released  int64  `json:"released"`
	Timestamp int64  `json:"timestamp"`
}
