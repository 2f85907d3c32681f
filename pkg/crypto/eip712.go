package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain is the domain separator for EIP-712 typed data.
// It scopes signatures to one logical deployment so an order signed for one
// engine can never be replayed against another.
type EIP712Domain struct {
	Name              string         // Protocol name ("Settlex")
	Version           string         // Protocol version ("1")
	ChainID           *big.Int       // Chain ID (1337 for local dev)
	VerifyingContract common.Address // Zero address for off-chain settlement
}

// OrderEIP712 is the typed order payload users sign in their wallets.
// The fingerprint of an order is the EIP-712 digest over exactly these
// fields in exactly this sequence.
type OrderEIP712 struct {
	MarketID   string         // Market identifier (e.g., "eth-above-5k-2026")
	Outcome    uint8          // Outcome index being traded
	Side       uint8          // 1 = Buy, 2 = Sell
	Amount     *big.Int       // Total order quantity in shares
	Price      *big.Int       // Collateral units escrowed per share (0..10000)
	Nonce      *big.Int       // Salt so identical orders hash distinctly
	Expiration *big.Int       // Unix seconds, 0 = no expiry
	Maker      common.Address // Order owner address
}

// EIP712Signer hashes and verifies orders under a fixed domain.
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer creates a signer bound to the given domain.
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the default Settlex signing domain.
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "Settlex",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

// DomainForChain returns the Settlex signing domain for a specific chain ID.
func DomainForChain(chainID int64) EIP712Domain {
	d := DefaultDomain()
	d.ChainID = big.NewInt(chainID)
	return d
}

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "marketId", Type: "string"},
		{Name: "outcome", Type: "uint8"},
		{Name: "side", Type: "uint8"},
		{Name: "amount", Type: "uint256"},
		{Name: "price", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "expiration", Type: "uint256"},
		{Name: "maker", Type: "address"},
	},
}

// HashOrder computes the EIP-712 digest of an order.
// The digest doubles as the order's fingerprint for fill tracking.
func (e *EIP712Signer) HashOrder(order *OrderEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"marketId":   order.MarketID,
			"outcome":    fmt.Sprintf("%d", order.Outcome),
			"side":       fmt.Sprintf("%d", order.Side),
			"amount":     order.Amount.String(),
			"price":      order.Price.String(),
			"nonce":      order.Nonce.String(),
			"expiration": order.Expiration.String(),
			"maker":      order.Maker.Hex(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	digest := crypto.Keccak256Hash(rawData)

	return digest.Bytes(), nil
}

// SignOrder signs an order and returns the 65-byte signature.
func (e *EIP712Signer) SignOrder(signer *Signer, order *OrderEIP712) ([]byte, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	return signature, nil
}

// RecoverOrderSigner recovers the address that signed an order.
func (e *EIP712Signer) RecoverOrderSigner(order *OrderEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash order: %w", err)
	}

	return RecoverAddress(hash, signature)
}

// VerifyOrderSignature checks that signature was created by the order's maker.
func (e *EIP712Signer) VerifyOrderSignature(order *OrderEIP712, signature []byte) (bool, error) {
	recoveredAddr, err := e.RecoverOrderSigner(order, signature)
	if err != nil {
		return false, err
	}
	return recoveredAddr == order.Maker, nil
}
