package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/settlex/settlex/pkg/crypto"
	"github.com/settlex/settlex/pkg/market"
	"github.com/settlex/settlex/pkg/oracle"
	"github.com/settlex/settlex/pkg/position"
	"github.com/settlex/settlex/pkg/vault"
)

const testMarket = "election-2028"

type harness struct {
	engine   *Engine
	verifier *OrderVerifier
	vault    *vault.Vault
	tokens   *position.Ledger
	registry *market.Registry
	resolver *oracle.Resolver

	owner    *crypto.Signer
	operator *crypto.Signer
	oracle   *crypto.Signer
	buyer    *crypto.Signer
	seller   *crypto.Signer
}

func newHarness(t *testing.T, fees FeeConfig) *harness {
	t.Helper()

	keys := make([]*crypto.Signer, 5)
	for i := range keys {
		k, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		keys[i] = k
	}
	owner, operator, oracleKey, buyer, seller := keys[0], keys[1], keys[2], keys[3], keys[4]

	clock := frozenClock{t: time.Unix(1_900_000_000, 0)}
	registry := market.NewRegistryWithClock(clock)
	m, err := market.NewMarket(testMarket, "Who wins?", 2, clock.t.Unix()-1)
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	if err := registry.Register(m); err != nil {
		t.Fatalf("register market: %v", err)
	}

	resolver := oracle.New(oracleKey.Address(), registry)
	v := vault.New()
	tokens := position.New()
	verifier := NewOrderVerifierWithClock(crypto.DefaultDomain(), clock)

	eng := New(Deps{
		Verifier:    verifier,
		Fills:       NewFillLedger(),
		Vault:       v,
		Tokens:      tokens,
		Markets:     registry,
		Resolutions: resolver,
		TokenID:     position.TokenID,
		Authority:   NewAuthority(owner.Address(), operator.Address()),
		Fees:        fees,
	})

	return &harness{
		engine:   eng,
		verifier: verifier,
		vault:    v,
		tokens:   tokens,
		registry: registry,
		resolver: resolver,
		owner:    owner,
		operator: operator,
		oracle:   oracleKey,
		buyer:    buyer,
		seller:   seller,
	}
}

func (h *harness) sign(t *testing.T, signer *crypto.Signer, order *Order) []byte {
	t.Helper()
	hash, err := h.verifier.signer.HashOrder(order.ToEIP712())
	if err != nil {
		t.Fatalf("hash order: %v", err)
	}
	sig, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("sign order: %v", err)
	}
	return sig
}

func (h *harness) buyOrder(price, amount int64) *Order {
	return &Order{
		Maker:    h.buyer.Address(),
		MarketID: testMarket,
		Outcome:  0,
		Side:     SideBuy,
		Amount:   amount,
		Price:    price,
		Nonce:    1,
	}
}

func (h *harness) sellOrder(price, amount int64) *Order {
	return &Order{
		Maker:    h.seller.Address(),
		MarketID: testMarket,
		Outcome:  0,
		Side:     SideSell,
		Amount:   amount,
		Price:    price,
		Nonce:    1,
	}
}

func (h *harness) fill(t *testing.T, buy, sell *Order, amount int64) (*FillReceipt, error) {
	t.Helper()
	return h.engine.FillOrder(h.operator.Address(),
		buy, h.sign(t, h.buyer, buy),
		sell, h.sign(t, h.seller, sell),
		amount)
}

func TestFillMintPath(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	buy := h.buyOrder(6000, 100)
	sell := h.sellOrder(6000, 100)

	receipt, err := h.fill(t, buy, sell, 100)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if receipt.Path != PathMint {
		t.Errorf("path = %s, want mint", receipt.Path)
	}

	// Buyer got the traded outcome, seller got the complementary one.
	if got := h.tokens.BalanceOf(h.buyer.Address(), position.TokenID(testMarket, 0)); got != 100 {
		t.Errorf("buyer outcome-0 balance = %d, want 100", got)
	}
	if got := h.tokens.BalanceOf(h.seller.Address(), position.TokenID(testMarket, 1)); got != 100 {
		t.Errorf("seller outcome-1 balance = %d, want 100", got)
	}
	if got := h.tokens.BalanceOf(h.seller.Address(), position.TokenID(testMarket, 0)); got != 0 {
		t.Errorf("seller outcome-0 balance = %d, want 0", got)
	}

	// Each side escrows its own declared price.
	if receipt.BuyerLocked != 600_000 || receipt.SellerLocked != 600_000 {
		t.Errorf("locked = (%d, %d), want (600000, 600000)", receipt.BuyerLocked, receipt.SellerLocked)
	}
	if got := h.vault.LockedTotal(testMarket); got != 1_200_000 {
		t.Errorf("market pool = %d, want 1200000", got)
	}
	if got := h.vault.AvailableOf(h.buyer.Address()); got != 400_000 {
		t.Errorf("buyer available = %d, want 400000", got)
	}
}

func TestFillSwapPath(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	// Seller already holds the traded outcome: inventory moves, no new set
	// is minted.
	h.tokens.Mint(h.seller.Address(), position.TokenID(testMarket, 0), 150)

	receipt, err := h.fill(t, h.buyOrder(5000, 100), h.sellOrder(4000, 100), 100)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if receipt.Path != PathSwap {
		t.Errorf("path = %s, want swap", receipt.Path)
	}

	if got := h.tokens.BalanceOf(h.buyer.Address(), position.TokenID(testMarket, 0)); got != 100 {
		t.Errorf("buyer balance = %d, want 100", got)
	}
	if got := h.tokens.BalanceOf(h.seller.Address(), position.TokenID(testMarket, 0)); got != 50 {
		t.Errorf("seller remaining balance = %d, want 50", got)
	}
	if got := h.tokens.BalanceOf(h.seller.Address(), position.TokenID(testMarket, 1)); got != 0 {
		t.Errorf("seller outcome-1 balance = %d, want 0 on swap path", got)
	}

	// At crossed prices each side escrows its own declared price, so the
	// two locks differ and the pool holds their sum.
	if receipt.BuyerLocked != 500_000 {
		t.Errorf("buyer locked = %d, want 500000 (100 x 5000)", receipt.BuyerLocked)
	}
	if receipt.SellerLocked != 400_000 {
		t.Errorf("seller locked = %d, want 400000 (100 x 4000)", receipt.SellerLocked)
	}
	if receipt.BuyerLocked == receipt.SellerLocked {
		t.Error("crossed-price fill locked the same amount on both sides")
	}
	if got := h.vault.LockedTotal(testMarket); got != 900_000 {
		t.Errorf("market pool = %d, want 900000", got)
	}
	if got := h.vault.AvailableOf(h.buyer.Address()); got != 500_000 {
		t.Errorf("buyer available = %d, want 500000", got)
	}
	if got := h.vault.AvailableOf(h.seller.Address()); got != 600_000 {
		t.Errorf("seller available = %d, want 600000", got)
	}
}

func TestFillPartialInventoryTakesMintPath(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	// 99 of 100 needed: path choice is all-or-nothing on inventory.
	h.tokens.Mint(h.seller.Address(), position.TokenID(testMarket, 0), 99)

	receipt, err := h.fill(t, h.buyOrder(5000, 100), h.sellOrder(5000, 100), 100)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if receipt.Path != PathMint {
		t.Errorf("path = %s, want mint with insufficient inventory", receipt.Path)
	}
	// Pre-existing inventory is untouched on the mint path.
	if got := h.tokens.BalanceOf(h.seller.Address(), position.TokenID(testMarket, 0)); got != 99 {
		t.Errorf("seller outcome-0 balance = %d, want 99", got)
	}
}

func TestFillPreconditionOrdering(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	cases := []struct {
		name    string
		buy     func(h *harness) *Order
		sell    func(h *harness) *Order
		amount  int64
		wantErr error
	}{
		{
			name: "market mismatch",
			buy:  func(h *harness) *Order { return h.buyOrder(6000, 100) },
			sell: func(h *harness) *Order {
				o := h.sellOrder(6000, 100)
				o.MarketID = "other-market"
				return o
			},
			amount:  10,
			wantErr: ErrMarketMismatch,
		},
		{
			name: "outcome mismatch",
			buy:  func(h *harness) *Order { return h.buyOrder(6000, 100) },
			sell: func(h *harness) *Order {
				o := h.sellOrder(6000, 100)
				o.Outcome = 1
				return o
			},
			amount:  10,
			wantErr: ErrOutcomeMismatch,
		},
		{
			name: "two buys",
			buy:  func(h *harness) *Order { return h.buyOrder(6000, 100) },
			sell: func(h *harness) *Order {
				o := h.sellOrder(6000, 100)
				o.Side = SideBuy
				return o
			},
			amount:  10,
			wantErr: ErrInvalidOrderPair,
		},
		{
			name:    "prices not crossing",
			buy:     func(h *harness) *Order { return h.buyOrder(4000, 100) },
			sell:    func(h *harness) *Order { return h.sellOrder(5000, 100) },
			amount:  10,
			wantErr: ErrPriceNotCrossing,
		},
		{
			name:    "zero fill amount",
			buy:     func(h *harness) *Order { return h.buyOrder(6000, 100) },
			sell:    func(h *harness) *Order { return h.sellOrder(6000, 100) },
			amount:  0,
			wantErr: ErrZeroFillAmount,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buy, sell := tc.buy(h), tc.sell(h)
			_, err := h.fill(t, buy, sell, tc.amount)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestFillRejectsForgedSignature(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	buy := h.buyOrder(6000, 100)
	sell := h.sellOrder(6000, 100)
	// Seller's signature produced by the buyer's key.
	_, err := h.engine.FillOrder(h.operator.Address(),
		buy, h.sign(t, h.buyer, buy),
		sell, h.sign(t, h.buyer, sell),
		10)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("error = %v, want ErrInvalidSignature", err)
	}
	// Nothing moved.
	if got := h.vault.LockedTotal(testMarket); got != 0 {
		t.Errorf("pool after rejected fill = %d, want 0", got)
	}
	if got := h.engine.Filled(mustFingerprint(t, h, buy)); got != 0 {
		t.Errorf("buy filled after rejected fill = %d, want 0", got)
	}
}

func mustFingerprint(t *testing.T, h *harness, order *Order) Fingerprint {
	t.Helper()
	hash, err := h.verifier.signer.HashOrder(order.ToEIP712())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	var fp Fingerprint
	copy(fp[:], hash)
	return fp
}

func TestFillRequiresOperator(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	buy := h.buyOrder(6000, 100)
	sell := h.sellOrder(6000, 100)

	_, err := h.engine.FillOrder(h.buyer.Address(),
		buy, h.sign(t, h.buyer, buy),
		sell, h.sign(t, h.seller, sell),
		10)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-operator fill error = %v, want ErrUnauthorized", err)
	}
}

func TestFillHeadroomAcrossPartialFills(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 10_000_000)
	h.vault.Deposit(h.seller.Address(), 10_000_000)

	buy := h.buyOrder(6000, 100)
	sell := h.sellOrder(6000, 300)

	if _, err := h.fill(t, buy, sell, 60); err != nil {
		t.Fatalf("first partial fill: %v", err)
	}
	if _, err := h.fill(t, buy, sell, 40); err != nil {
		t.Fatalf("fill to exact buy amount: %v", err)
	}

	// Buy side is exhausted even though the sell side has headroom left.
	if _, err := h.fill(t, buy, sell, 1); !errors.Is(err, ErrOrderAmountExceeded) {
		t.Errorf("overfill error = %v, want ErrOrderAmountExceeded", err)
	}
	if got := h.engine.Filled(mustFingerprint(t, h, sell)); got != 100 {
		t.Errorf("sell filled = %d, want 100", got)
	}
}

func TestFillRejectsInsufficientCollateral(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	// Buyer needs 100 * 6000 = 600000 but has one unit less.
	h.vault.Deposit(h.buyer.Address(), 599_999)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	buy := h.buyOrder(6000, 100)
	sell := h.sellOrder(6000, 100)
	if _, err := h.fill(t, buy, sell, 100); err == nil {
		t.Fatal("expected collateral rejection")
	}

	// Full ledger state is untouched on rejection.
	if got := h.engine.Filled(mustFingerprint(t, h, sell)); got != 0 {
		t.Errorf("sell filled after rejected fill = %d, want 0", got)
	}
	if got := h.tokens.BalanceOf(h.buyer.Address(), position.TokenID(testMarket, 0)); got != 0 {
		t.Errorf("buyer balance after rejected fill = %d, want 0", got)
	}
	if got := h.vault.AvailableOf(h.buyer.Address()); got != 599_999 {
		t.Errorf("buyer available after rejected fill = %d, want 599999", got)
	}
}

// yankingVault drains the victim's balance immediately before the escrow
// step, standing in for a withdrawal that lands between the engine's
// availability check and the vault's lock.
type yankingVault struct {
	*vault.Vault
	victim common.Address
	drain  int64
	fired  bool
}

func (y *yankingVault) LockTrade(market string, buyer, seller, feeRecipient common.Address, buyerLock, buyerFee, sellerLock, sellerFee int64) error {
	if !y.fired {
		y.fired = true
		if err := y.Vault.Withdraw(y.victim, y.drain); err != nil {
			return err
		}
	}
	return y.Vault.LockTrade(market, buyer, seller, feeRecipient, buyerLock, buyerFee, sellerLock, sellerFee)
}

func TestFillAtomicUnderConcurrentWithdrawal(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 600_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	fills := NewFillLedger()
	eng := New(Deps{
		Verifier:    h.verifier,
		Fills:       fills,
		Vault:       &yankingVault{Vault: h.vault, victim: h.buyer.Address(), drain: 600_000},
		Tokens:      h.tokens,
		Markets:     h.registry,
		Resolutions: h.resolver,
		TokenID:     position.TokenID,
		Authority:   NewAuthority(h.owner.Address(), h.operator.Address()),
	})

	buy := h.buyOrder(6000, 100)
	sell := h.sellOrder(6000, 100)
	_, err := eng.FillOrder(h.operator.Address(),
		buy, h.sign(t, h.buyer, buy),
		sell, h.sign(t, h.seller, sell),
		100)
	if !errors.Is(err, vault.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}

	// The rejected fill left no trace in any ledger: no fill counted, no
	// tokens minted, no collateral moved.
	if got := fills.Filled(mustFingerprint(t, h, buy)); got != 0 {
		t.Errorf("buy filled = %d, want 0", got)
	}
	if got := fills.Filled(mustFingerprint(t, h, sell)); got != 0 {
		t.Errorf("sell filled = %d, want 0", got)
	}
	if got := h.tokens.BalanceOf(h.buyer.Address(), position.TokenID(testMarket, 0)); got != 0 {
		t.Errorf("buyer token balance = %d, want 0", got)
	}
	if got := h.tokens.BalanceOf(h.seller.Address(), position.TokenID(testMarket, 1)); got != 0 {
		t.Errorf("seller token balance = %d, want 0", got)
	}
	if got := h.vault.LockedTotal(testMarket); got != 0 {
		t.Errorf("market pool = %d, want 0", got)
	}
	if got := h.vault.AvailableOf(h.seller.Address()); got != 1_000_000 {
		t.Errorf("seller available = %d, want 1000000", got)
	}
}

func TestFillChargesTradeFees(t *testing.T) {
	recipient := common.HexToAddress("0xfee0000000000000000000000000000000000fee")
	h := newHarness(t, FeeConfig{
		TradeFeeBps:  1000, // 10%
		FeeRecipient: recipient,
	})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	receipt, err := h.fill(t, h.buyOrder(6000, 100), h.sellOrder(6000, 100), 100)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}

	if receipt.BuyerFee != 60_000 || receipt.SellerFee != 60_000 {
		t.Errorf("fees = (%d, %d), want (60000, 60000)", receipt.BuyerFee, receipt.SellerFee)
	}
	if got := h.vault.AvailableOf(recipient); got != 120_000 {
		t.Errorf("recipient balance = %d, want 120000", got)
	}
	// Buyer paid lock + fee out of available.
	if got := h.vault.AvailableOf(h.buyer.Address()); got != 340_000 {
		t.Errorf("buyer available = %d, want 340000", got)
	}
	// Fees do not inflate the market pool.
	if got := h.vault.LockedTotal(testMarket); got != 1_200_000 {
		t.Errorf("market pool = %d, want 1200000", got)
	}
}

func TestCancelBlocksFutureFills(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	buy := h.buyOrder(6000, 100)
	if err := h.engine.CancelOrder(buy, h.sign(t, h.buyer, buy)); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := h.fill(t, buy, h.sellOrder(6000, 100), 1)
	if !errors.Is(err, ErrOrderAmountExceeded) {
		t.Errorf("fill after cancel error = %v, want ErrOrderAmountExceeded", err)
	}

	// Second cancel of the same order fails.
	if err := h.engine.CancelOrder(buy, h.sign(t, h.buyer, buy)); !errors.Is(err, ErrOrderAmountExceeded) {
		t.Errorf("double cancel error = %v, want ErrOrderAmountExceeded", err)
	}
}

func TestCancelAfterPartialFill(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	buy := h.buyOrder(6000, 100)
	sell := h.sellOrder(6000, 100)
	if _, err := h.fill(t, buy, sell, 30); err != nil {
		t.Fatalf("partial fill: %v", err)
	}
	if err := h.engine.CancelOrder(buy, h.sign(t, h.buyer, buy)); err != nil {
		t.Fatalf("cancel after partial fill: %v", err)
	}
	if got := h.engine.Filled(mustFingerprint(t, h, buy)); got != 100 {
		t.Errorf("filled after cancel = %d, want full amount 100", got)
	}
}

func TestCancelRejectsForgedSignature(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	buy := h.buyOrder(6000, 100)
	err := h.engine.CancelOrder(buy, h.sign(t, h.seller, buy))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("forged cancel error = %v, want ErrInvalidSignature", err)
	}
}

func TestClaimLifecycle(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	if _, err := h.fill(t, h.buyOrder(6000, 100), h.sellOrder(6000, 100), 100); err != nil {
		t.Fatalf("fill: %v", err)
	}

	// Before resolution no claim goes through.
	if _, err := h.engine.Claim(h.buyer.Address(), testMarket, 0); !errors.Is(err, ErrMarketNotResolved) {
		t.Errorf("pre-resolution claim error = %v, want ErrMarketNotResolved", err)
	}

	if err := h.resolver.Resolve(h.oracle.Address(), testMarket, 0); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Losing side has no winning balance.
	if _, err := h.engine.Claim(h.seller.Address(), testMarket, 0); !errors.Is(err, ErrNoWinningBalance) {
		t.Errorf("losing claim error = %v, want ErrNoWinningBalance", err)
	}
	// Claiming the non-answer outcome fails even with a balance.
	if _, err := h.engine.Claim(h.seller.Address(), testMarket, 1); !errors.Is(err, ErrAnswerMismatch) {
		t.Errorf("wrong-outcome claim error = %v, want ErrAnswerMismatch", err)
	}

	receipt, err := h.engine.Claim(h.buyer.Address(), testMarket, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if receipt.Released != 100 {
		t.Errorf("released = %d, want 100", receipt.Released)
	}
	if got := h.vault.AvailableOf(h.buyer.Address()); got != 400_100 {
		t.Errorf("buyer available after claim = %d, want 400100", got)
	}
	if got := h.tokens.BalanceOf(h.buyer.Address(), position.TokenID(testMarket, 0)); got != 0 {
		t.Errorf("winning tokens not burned: balance = %d", got)
	}

	// The burn makes a second claim impossible.
	if _, err := h.engine.Claim(h.buyer.Address(), testMarket, 0); !errors.Is(err, ErrNoWinningBalance) {
		t.Errorf("double claim error = %v, want ErrNoWinningBalance", err)
	}
}

func TestClaimChargesClaimFee(t *testing.T) {
	recipient := common.HexToAddress("0xfee0000000000000000000000000000000000fee")
	h := newHarness(t, FeeConfig{ClaimFeeBps: 500, FeeRecipient: recipient})
	h.vault.Deposit(h.buyer.Address(), 10_000_000)
	h.vault.Deposit(h.seller.Address(), 10_000_000)

	if _, err := h.fill(t, h.buyOrder(6000, 10000), h.sellOrder(6000, 10000), 1000); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := h.resolver.Resolve(h.oracle.Address(), testMarket, 0); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	receipt, err := h.engine.Claim(h.buyer.Address(), testMarket, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if receipt.Released != 1000 || receipt.Fee != 50 {
		t.Errorf("claim = (released %d, fee %d), want (1000, 50)", receipt.Released, receipt.Fee)
	}
	if got := h.vault.AvailableOf(recipient); got != 50 {
		t.Errorf("recipient balance = %d, want 50", got)
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	if err := h.engine.SetPaused(h.buyer.Address(), true); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner pause error = %v, want ErrUnauthorized", err)
	}
	if err := h.engine.SetPaused(h.owner.Address(), true); err != nil {
		t.Fatalf("pause: %v", err)
	}

	buy := h.buyOrder(6000, 100)
	sell := h.sellOrder(6000, 100)
	if _, err := h.fill(t, buy, sell, 10); !errors.Is(err, ErrPaused) {
		t.Errorf("paused fill error = %v, want ErrPaused", err)
	}
	if err := h.engine.CancelOrder(buy, h.sign(t, h.buyer, buy)); !errors.Is(err, ErrPaused) {
		t.Errorf("paused cancel error = %v, want ErrPaused", err)
	}
	if _, err := h.engine.Claim(h.buyer.Address(), testMarket, 0); !errors.Is(err, ErrPaused) {
		t.Errorf("paused claim error = %v, want ErrPaused", err)
	}

	if err := h.engine.SetPaused(h.owner.Address(), false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := h.fill(t, buy, sell, 10); err != nil {
		t.Errorf("fill after unpause: %v", err)
	}
}

func TestOperatorManagement(t *testing.T) {
	h := newHarness(t, FeeConfig{})
	h.vault.Deposit(h.buyer.Address(), 1_000_000)
	h.vault.Deposit(h.seller.Address(), 1_000_000)

	auth := h.engine.Authority()
	newOp := common.HexToAddress("0x1111111111111111111111111111111111111111")

	if err := auth.AddOperator(h.buyer.Address(), newOp); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner add error = %v, want ErrUnauthorized", err)
	}
	if err := auth.AddOperator(h.owner.Address(), newOp); err != nil {
		t.Fatalf("add operator: %v", err)
	}
	if !auth.IsOperator(newOp) {
		t.Error("added operator not recognized")
	}

	if err := auth.RemoveOperator(h.owner.Address(), h.operator.Address()); err != nil {
		t.Fatalf("remove operator: %v", err)
	}
	buy := h.buyOrder(6000, 100)
	sell := h.sellOrder(6000, 100)
	_, err := h.engine.FillOrder(h.operator.Address(),
		buy, h.sign(t, h.buyer, buy),
		sell, h.sign(t, h.seller, sell),
		10)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("removed operator fill error = %v, want ErrUnauthorized", err)
	}
}

func TestSetFeesValidation(t *testing.T) {
	h := newHarness(t, FeeConfig{})

	if err := h.engine.SetFees(h.buyer.Address(), FeeConfig{TradeFeeBps: 100}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner set fees error = %v, want ErrUnauthorized", err)
	}
	if err := h.engine.SetFees(h.owner.Address(), FeeConfig{TradeFeeBps: FeeDenom + 1}); err == nil {
		t.Error("expected rejection of out-of-range trade fee")
	}
	if err := h.engine.SetFees(h.owner.Address(), FeeConfig{ClaimFeeBps: -1}); err == nil {
		t.Error("expected rejection of negative claim fee")
	}

	want := FeeConfig{TradeFeeBps: 200, ClaimFeeBps: 100, FeeRecipient: h.owner.Address()}
	if err := h.engine.SetFees(h.owner.Address(), want); err != nil {
		t.Fatalf("set fees: %v", err)
	}
	if got := h.engine.Fees(); got != want {
		t.Errorf("fees = %+v, want %+v", got, want)
	}
}
