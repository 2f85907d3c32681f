package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/settlex/settlex/pkg/crypto"
	"github.com/settlex/settlex/pkg/engine"
)

func main() {
	// Step 1: Generate or load key
	fmt.Println("Generating new keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Create order
	order := &engine.Order{
		Maker:      signer.Address(),
		MarketID:   "eth-above-5k-2026",
		Outcome:    0, // YES
		Side:       engine.SideBuy,
		Amount:     100,
		Price:      6000, // 0.60 collateral per share
		Nonce:      1,
		Expiration: 0, // No expiry
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Market: %s\n", order.MarketID)
	fmt.Printf("  Outcome: %d\n", order.Outcome)
	fmt.Printf("  Side: %s\n", order.Side)
	fmt.Printf("  Amount: %d\n", order.Amount)
	fmt.Printf("  Price: %d / %d\n", order.Price, engine.PriceDenom)
	fmt.Printf("  Maker: %s\n\n", order.Maker.Hex())

	// Step 3: Sign order with EIP-712
	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	signature, err := eip712Signer.SignOrder(signer, order.ToEIP712())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Signature: 0x%x\n\n", signature)

	// Step 4: Serialize signed order to JSON
	signed := struct {
		Order     *engine.Order `json:"order"`
		Signature string        `json:"signature"`
	}{
		Order:     order,
		Signature: fmt.Sprintf("0x%x", signature),
	}

	orderJSON, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Order (JSON):")
	fmt.Println(string(orderJSON))
	fmt.Println()

	// Step 5: Verify signature
	fmt.Println("Verifying signature...")
	verifier := engine.NewOrderVerifier(crypto.DefaultDomain())
	fingerprint, err := verifier.Verify(order, signature)
	if err != nil {
		fmt.Printf("✗ Signature INVALID: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Signature VALID")
	fmt.Printf("  Fingerprint: %s\n\n", fingerprint.Hex())

	// Step 6: Show how the order reaches the engine
	fmt.Println("An operator submits a matched pair to Settlex:")
	fmt.Println("  POST http://localhost:8080/api/v1/fills")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body: { caller, buyOrder, buySignature, sellOrder, sellSignature, fillAmount }")
}
