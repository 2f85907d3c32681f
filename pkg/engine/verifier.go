package engine

import (
	"fmt"

	"github.com/settlex/settlex/pkg/crypto"
	"github.com/settlex/settlex/pkg/util"
)

// OrderVerifier validates a signed order: expiration gate, canonical EIP-712
// fingerprint, signer recovery, maker match. Pure validation, no state.
type OrderVerifier struct {
	signer *crypto.EIP712Signer
	clock  util.Clock
}

// NewOrderVerifier creates a verifier for the given signing domain.
func NewOrderVerifier(domain crypto.EIP712Domain) *OrderVerifier {
	return NewOrderVerifierWithClock(domain, util.RealClock{})
}

// NewOrderVerifierWithClock creates a verifier with an injected clock so
// tests can pin expiration behavior.
func NewOrderVerifierWithClock(domain crypto.EIP712Domain, clock util.Clock) *OrderVerifier {
	return &OrderVerifier{
		signer: crypto.NewEIP712Signer(domain),
		clock:  clock,
	}
}

// Verify checks an order and its signature, returning the order's
// fingerprint on success. The fingerprint is the fill ledger key.
func (v *OrderVerifier) Verify(order *Order, signature []byte) (Fingerprint, error) {
	if err := order.Validate(); err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if order.Expiration != 0 && v.clock.Now().Unix() > order.Expiration {
		return Fingerprint{}, ErrOrderExpired
	}

	hash, err := v.signer.HashOrder(order.ToEIP712())
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to hash order: %w", err)
	}

	recovered, err := crypto.RecoverAddress(hash, signature)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if recovered != order.Maker {
		return Fingerprint{}, fmt.Errorf("%w: recovered %s, maker %s",
			ErrInvalidSignature, recovered.Hex(), order.Maker.Hex())
	}

	var fp Fingerprint
	copy(fp[:], hash)
	return fp, nil
}
