package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/settlex/settlex/pkg/crypto"
)

// PriceDenom is the price scale: a price of 10000 escrows one full
// collateral unit per share.
const PriceDenom = 10000

// FeeDenom is the fee-rate scale: a rate of 10000 is 100%.
const FeeDenom = 10000

// Side is the direction of an order.
type Side uint8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Fingerprint is the canonical EIP-712 digest of an order: the unique key
// for fill and cancellation tracking.
type Fingerprint = common.Hash

// Order is a signed trade intent. Orders are constructed and signed
// client-side and never stored verbatim; only their fingerprint survives in
// the fill ledger.
type Order struct {
	Maker      common.Address `json:"maker"`      // Order owner address
	MarketID   string         `json:"marketId"`   // Market being traded
	Outcome    uint8          `json:"outcome"`    // Outcome index being traded
	Side       Side           `json:"side"`       // 1 = buy, 2 = sell
	Amount     int64          `json:"amount"`     // Total quantity in shares
	Price      int64          `json:"price"`      // Collateral units per share, 0..PriceDenom
	Nonce      uint64         `json:"nonce"`      // Salt for fingerprint uniqueness
	Expiration int64          `json:"expiration"` // Unix seconds, 0 = no expiry
}

// IsBuy reports whether the order is on the buy side.
func (o *Order) IsBuy() bool {
	return o.Side == SideBuy
}

// Validate performs stateless sanity checks on a single order.
func (o *Order) Validate() error {
	if o.MarketID == "" {
		return fmt.Errorf("missing market id")
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("invalid side: %d", o.Side)
	}
	if o.Amount <= 0 {
		return fmt.Errorf("amount must be positive: %d", o.Amount)
	}
	if o.Price < 0 || o.Price > PriceDenom {
		return fmt.Errorf("price %d out of range [0, %d]", o.Price, PriceDenom)
	}
	return nil
}

// ToEIP712 converts the order to its typed-data form for hashing and signing.
func (o *Order) ToEIP712() *crypto.OrderEIP712 {
	return &crypto.OrderEIP712{
		MarketID:   o.MarketID,
		Outcome:    o.Outcome,
		Side:       uint8(o.Side),
		Amount:     big.NewInt(o.Amount),
		Price:      big.NewInt(o.Price),
		Nonce:      new(big.Int).SetUint64(o.Nonce),
		Expiration: big.NewInt(o.Expiration),
		Maker:      o.Maker,
	}
}
