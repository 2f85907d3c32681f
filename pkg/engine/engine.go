// Package engine is the order-matching settlement core: it verifies signed
// trade intents, turns matched pairs into outcome-token issuance or transfer,
// escrows collateral, applies fees, and pays out winners after resolution.
package engine

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// EscrowLedger is the slice of the vault the engine drives. Both mutating
// operations are atomic: the vault has writers outside the engine (deposits,
// withdrawals), so the engine never composes a settlement out of smaller
// vault calls that could be interleaved with one.
type EscrowLedger interface {
	LockTrade(market string, buyer, seller, feeRecipient common.Address, buyerLock, buyerFee, sellerLock, sellerFee int64) error
	ReleaseWithFee(market string, user common.Address, amount, fee int64, feeRecipient common.Address) error
	AvailableOf(user common.Address) int64
	LockedTotal(market string) int64
}

// OutcomeLedger is the slice of the token ledger the engine drives.
type OutcomeLedger interface {
	Mint(user common.Address, token common.Hash, amount int64) error
	MintBatch(user common.Address, tokens []common.Hash, amounts []int64) error
	Burn(user common.Address, token common.Hash, amount int64) error
	BurnBatch(user common.Address, tokens []common.Hash, amounts []int64) error
	BalanceOf(user common.Address, token common.Hash) int64
}

// Markets is the slice of the market registry the engine consults.
type Markets interface {
	OutcomeCount(id string) (uint8, error)
}

// Resolutions is the slice of the resolution authority the engine consults.
type Resolutions interface {
	IsResolved(marketID string) bool
	Answer(marketID string) (uint8, error)
}

// TokenIDFunc derives the outcome-token id for (market, outcome).
type TokenIDFunc func(market string, outcome uint8) common.Hash

// Authority is the explicit access-control capability injected into the
// engine: who owns it and which matcher addresses may submit fills.
type Authority struct {
	mu        sync.RWMutex
	owner     common.Address
	operators map[common.Address]bool
}

// NewAuthority creates an authority with the given owner and initial
// operator (matcher) set.
func NewAuthority(owner common.Address, operators ...common.Address) *Authority {
	a := &Authority{
		owner:     owner,
		operators: make(map[common.Address]bool),
	}
	for _, op := range operators {
		a.operators[op] = true
	}
	return a
}

// IsOwner reports whether addr is the engine owner.
func (a *Authority) IsOwner(addr common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return addr == a.owner
}

// IsOperator reports whether addr may submit matched fills.
func (a *Authority) IsOperator(addr common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.operators[addr]
}

// AddOperator grants the matcher role. Owner only.
func (a *Authority) AddOperator(caller, addr common.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return ErrUnauthorized
	}
	a.operators[addr] = true
	return nil
}

// RemoveOperator revokes the matcher role. Owner only.
func (a *Authority) RemoveOperator(caller, addr common.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return ErrUnauthorized
	}
	delete(a.operators, addr)
	return nil
}

// FeeConfig holds the fee parameters. Fees are only charged when the rate is
// non-zero and a recipient is set.
type FeeConfig struct {
	TradeFeeBps  int64          // Per-side fee on locked amount at fill time
	ClaimFeeBps  int64          // Fee on released amount at claim time
	FeeRecipient common.Address // Zero address disables fee collection
}

// SettlementPath tells how a fill was settled.
type SettlementPath string

const (
	// PathMint settles by minting a complete outcome set per unit: the
	// traded outcome to the buyer, every other outcome to the seller.
	PathMint SettlementPath = "mint"
	// PathSwap settles by moving existing inventory: burn from seller,
	// mint to buyer.
	PathSwap SettlementPath = "swap"
)

// FillReceipt reports what a successful fill did.
type FillReceipt struct {
	MarketID        string         `json:"marketId"`
	Outcome         uint8          `json:"outcome"`
	FillAmount      int64          `json:"fillAmount"`
	Path            SettlementPath `json:"path"`
	BuyFingerprint  Fingerprint    `json:"buyFingerprint"`
	SellFingerprint Fingerprint    `json:"sellFingerprint"`
	Buyer           common.Address `json:"buyer"`
	Seller          common.Address `json:"seller"`
	BuyerLocked     int64          `json:"buyerLocked"`
	SellerLocked    int64          `json:"sellerLocked"`
	BuyerFee        int64          `json:"buyerFee"`
	SellerFee       int64          `json:"sellerFee"`
}

// ClaimReceipt reports what a successful claim did.
type ClaimReceipt struct {
	MarketID string         `json:"marketId"`
	Outcome  uint8          `json:"outcome"`
	Claimant common.Address `json:"claimant"`
	Released int64          `json:"released"`
	Fee      int64          `json:"fee"`
}

// Engine orchestrates the fill ledger, escrow vault, token ledger, market
// registry and resolution authority. All state transitions execute serially
// under one mutex; a failed precondition leaves every ledger untouched.
type Engine struct {
	mu sync.Mutex

	verifier    *OrderVerifier
	fills       *FillLedger
	vault       EscrowLedger
	tokens      OutcomeLedger
	markets     Markets
	resolutions Resolutions
	tokenID     TokenIDFunc
	auth        *Authority

	fees   FeeConfig
	paused bool

	log *zap.SugaredLogger
}

// Deps bundles the collaborators the engine is constructed over. None of
// them holds a reference back to the engine.
type Deps struct {
	Verifier    *OrderVerifier
	Fills       *FillLedger
	Vault       EscrowLedger
	Tokens      OutcomeLedger
	Markets     Markets
	Resolutions Resolutions
	TokenID     TokenIDFunc
	Authority   *Authority
	Fees        FeeConfig
	Logger      *zap.SugaredLogger
}

// New creates a settlement engine.
func New(deps Deps) *Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		verifier:    deps.Verifier,
		fills:       deps.Fills,
		vault:       deps.Vault,
		tokens:      deps.Tokens,
		markets:     deps.Markets,
		resolutions: deps.Resolutions,
		tokenID:     deps.TokenID,
		auth:        deps.Authority,
		fees:        deps.Fees,
		log:         log,
	}
}

// Authority exposes the engine's access-control capability.
func (e *Engine) Authority() *Authority {
	return e.auth
}

// Fees returns the current fee configuration.
func (e *Engine) Fees() FeeConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees
}

// SetFees replaces the fee configuration. Owner only.
func (e *Engine) SetFees(caller common.Address, fees FeeConfig) error {
	if !e.auth.IsOwner(caller) {
		return ErrUnauthorized
	}
	if fees.TradeFeeBps < 0 || fees.TradeFeeBps > FeeDenom {
		return fmt.Errorf("trade fee %d out of range [0, %d]", fees.TradeFeeBps, FeeDenom)
	}
	if fees.ClaimFeeBps < 0 || fees.ClaimFeeBps > FeeDenom {
		return fmt.Errorf("claim fee %d out of range [0, %d]", fees.ClaimFeeBps, FeeDenom)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fees = fees
	return nil
}

// SetPaused flips the global pause flag. Owner only. While paused every
// state-mutating entry point rejects with ErrPaused.
func (e *Engine) SetPaused(caller common.Address, paused bool) error {
	if !e.auth.IsOwner(caller) {
		return ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
	e.log.Infow("pause_flag_set", "paused", paused)
	return nil
}

// Paused reports the pause flag.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Filled returns the cumulative filled amount for an order fingerprint.
func (e *Engine) Filled(fp Fingerprint) int64 {
	return e.fills.Filled(fp)
}

// tradeFee returns the fee charged on a locked amount, 0 when fees are off.
func (e *Engine) tradeFeeLocked(locked int64) int64 {
	if e.fees.TradeFeeBps == 0 || e.fees.FeeRecipient == (common.Address{}) {
		return 0
	}
	return locked * e.fees.TradeFeeBps / FeeDenom
}

func (e *Engine) claimFeeLocked(released int64) int64 {
	if e.fees.ClaimFeeBps == 0 || e.fees.FeeRecipient == (common.Address{}) {
		return 0
	}
	return released * e.fees.ClaimFeeBps / FeeDenom
}

// FillOrder settles a pre-matched buy/sell pair for fillAmount shares.
// Operator (matcher) role only. Preconditions are checked in a fixed
// sequence and any violation rejects the whole call before any ledger is
// touched.
func (e *Engine) FillOrder(caller common.Address, buy *Order, buySig []byte, sell *Order, sellSig []byte, fillAmount int64) (*FillReceipt, error) {
	if !e.auth.IsOperator(caller) {
		return nil, ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, ErrPaused
	}

	// 1-4: pair shape.
	if buy.MarketID != sell.MarketID {
		return nil, ErrMarketMismatch
	}
	if buy.Outcome != sell.Outcome {
		return nil, ErrOutcomeMismatch
	}
	if !buy.IsBuy() || sell.IsBuy() {
		return nil, ErrInvalidOrderPair
	}
	if buy.Price < sell.Price {
		return nil, ErrPriceNotCrossing
	}
	if fillAmount <= 0 {
		return nil, ErrZeroFillAmount
	}

	// 5: signatures, yielding fingerprints.
	buyFP, err := e.verifier.Verify(buy, buySig)
	if err != nil {
		return nil, err
	}
	sellFP, err := e.verifier.Verify(sell, sellSig)
	if err != nil {
		return nil, err
	}

	// 6: fill headroom on both sides.
	if e.fills.Filled(buyFP)+fillAmount > buy.Amount {
		return nil, fmt.Errorf("%w: buy order", ErrOrderAmountExceeded)
	}
	if e.fills.Filled(sellFP)+fillAmount > sell.Amount {
		return nil, fmt.Errorf("%w: sell order", ErrOrderAmountExceeded)
	}

	// Market shape, needed to enumerate the outcome set on the mint path.
	outcomes, err := e.markets.OutcomeCount(buy.MarketID)
	if err != nil {
		return nil, err
	}
	if buy.Outcome >= outcomes {
		return nil, fmt.Errorf("outcome %d out of range for %d outcomes", buy.Outcome, outcomes)
	}

	// Each side escrows its own declared price as cost basis; the two
	// locked amounts are deliberately not reconciled to a shared clearing
	// price.
	buyerLocked := fillAmount * buy.Price
	sellerLocked := fillAmount * sell.Price
	buyerFee := e.tradeFeeLocked(buyerLocked)
	sellerFee := e.tradeFeeLocked(sellerLocked)

	if avail := e.vault.AvailableOf(buy.Maker); avail < buyerLocked+buyerFee {
		return nil, fmt.Errorf("buyer collateral: have %d, need %d", avail, buyerLocked+buyerFee)
	}
	if avail := e.vault.AvailableOf(sell.Maker); avail < sellerLocked+sellerFee {
		return nil, fmt.Errorf("seller collateral: have %d, need %d", avail, sellerLocked+sellerFee)
	}

	// Settlement path: decided solely by the seller's pre-trade inventory
	// of the traded outcome token.
	tradedToken := e.tokenID(buy.MarketID, buy.Outcome)
	path := PathMint
	if e.tokens.BalanceOf(sell.Maker, tradedToken) >= fillAmount {
		path = PathSwap
	}

	// Collateral escrows first. Deposits and withdrawals mutate the vault
	// outside this mutex, so the availability check above is advisory and
	// the atomic LockTrade is the authoritative gate: if it fails, no
	// ledger has moved yet and the call rejects cleanly.
	if err := e.vault.LockTrade(buy.MarketID, buy.Maker, sell.Maker,
		e.fees.FeeRecipient, buyerLocked, buyerFee, sellerLocked, sellerFee); err != nil {
		return nil, err
	}

	// The fill and token ledgers have no writers outside this mutex and
	// their capacity was checked above, so the calls below cannot fail.
	if err := e.fills.Fill(buyFP, fillAmount, buy.Amount); err != nil {
		return nil, err
	}
	if err := e.fills.Fill(sellFP, fillAmount, sell.Amount); err != nil {
		return nil, err
	}

	switch path {
	case PathSwap:
		if err := e.tokens.Burn(sell.Maker, tradedToken, fillAmount); err != nil {
			return nil, err
		}
		if err := e.tokens.Mint(buy.Maker, tradedToken, fillAmount); err != nil {
			return nil, err
		}
	case PathMint:
		if err := e.tokens.Mint(buy.Maker, tradedToken, fillAmount); err != nil {
			return nil, err
		}
		otherTokens := make([]common.Hash, 0, outcomes-1)
		otherAmounts := make([]int64, 0, outcomes-1)
		for i := uint8(0); i < outcomes; i++ {
			if i == buy.Outcome {
				continue
			}
			otherTokens = append(otherTokens, e.tokenID(buy.MarketID, i))
			otherAmounts = append(otherAmounts, fillAmount)
		}
		if err := e.tokens.MintBatch(sell.Maker, otherTokens, otherAmounts); err != nil {
			return nil, err
		}
	}

	receipt := &FillReceipt{
		MarketID:        buy.MarketID,
		Outcome:         buy.Outcome,
		FillAmount:      fillAmount,
		Path:            path,
		BuyFingerprint:  buyFP,
		SellFingerprint: sellFP,
		Buyer:           buy.Maker,
		Seller:          sell.Maker,
		BuyerLocked:     buyerLocked,
		SellerLocked:    sellerLocked,
		BuyerFee:        buyerFee,
		SellerFee:       sellerFee,
	}

	e.log.Infow("order_filled",
		"market", receipt.MarketID,
		"outcome", receipt.Outcome,
		"amount", receipt.FillAmount,
		"path", receipt.Path,
		"buyer", receipt.Buyer.Hex(),
		"seller", receipt.Seller.Hex(),
		"buyer_locked", receipt.BuyerLocked,
		"seller_locked", receipt.SellerLocked,
	)

	return receipt, nil
}

// CancelOrder irreversibly blocks all future fills for the order by
// exhausting its fingerprint. Only the maker can produce the required
// signature, so ownership is enforced by verification itself.
func (e *Engine) CancelOrder(order *Order, signature []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return ErrPaused
	}

	fp, err := e.verifier.Verify(order, signature)
	if err != nil {
		return err
	}

	if err := e.fills.Exhaust(fp, order.Amount); err != nil {
		return err
	}

	e.log.Infow("order_cancelled", "market", order.MarketID, "maker", order.Maker.Hex(), "fingerprint", fp.Hex())
	return nil
}

// Claim pays out the caller's entire winning-token balance for a resolved
// market: releases that quantity from the market's locked pool to the
// caller's available balance, deducts the claim fee, and burns the tokens so
// the same position can never be claimed twice.
func (e *Engine) Claim(caller common.Address, marketID string, outcome uint8) (*ClaimReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, ErrPaused
	}

	if !e.resolutions.IsResolved(marketID) {
		return nil, ErrMarketNotResolved
	}
	answer, err := e.resolutions.Answer(marketID)
	if err != nil {
		return nil, err
	}
	if answer != outcome {
		return nil, ErrAnswerMismatch
	}

	token := e.tokenID(marketID, outcome)
	balance := e.tokens.BalanceOf(caller, token)
	if balance <= 0 {
		return nil, ErrNoWinningBalance
	}

	// The fee is carved out of the released amount in one vault call so a
	// racing withdrawal can never strand a payout half-applied.
	fee := e.claimFeeLocked(balance)
	if err := e.vault.ReleaseWithFee(marketID, caller, balance, fee, e.fees.FeeRecipient); err != nil {
		return nil, err
	}

	if err := e.tokens.Burn(caller, token, balance); err != nil {
		return nil, err
	}

	receipt := &ClaimReceipt{
		MarketID: marketID,
		Outcome:  outcome,
		Claimant: caller,
		Released: balance,
		Fee:      fee,
	}

	e.log.Infow("claim_paid",
		"market", marketID,
		"outcome", outcome,
		"claimant", caller.Hex(),
		"released", balance,
		"fee", fee,
	)

	return receipt, nil
}
