package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Server struct {
	ListenAddr string // REST/WebSocket listen address
	DataDir    string // Pebble database root, empty = in-memory only
}

type Signing struct {
	ChainID int64 // EIP-712 domain chain id
}

type Roles struct {
	Owner     string   // Engine owner address (hex)
	Operators []string // Matcher addresses allowed to submit fills
	Oracle    string   // Resolution authority address
}

type Fees struct {
	TradeFeeBps  int64  // Per-side fee on escrowed collateral at fill time
	ClaimFeeBps  int64  // Fee on released collateral at claim time
	FeeRecipient string // Hex address, empty disables fee collection
}

type Config struct {
	Server  Server
	Signing Signing
	Roles   Roles
	Fees    Fees
}

func Default() Config {
	return Config{
		Server: Server{
			ListenAddr: ":8080",
			DataDir:    "data",
		},
		Signing: Signing{
			ChainID: 1337,
		},
		Fees: Fees{
			TradeFeeBps: 0,
			ClaimFeeBps: 0,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Server.ListenAddr = getEnv("LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.DataDir = getEnv("DATA_DIR", cfg.Server.DataDir)

	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.Signing.ChainID = id
		}
	}

	cfg.Roles.Owner = getEnv("OWNER_ADDRESS", cfg.Roles.Owner)
	cfg.Roles.Oracle = getEnv("ORACLE_ADDRESS", cfg.Roles.Oracle)

	// Operators from comma-separated list, e.g. "0xabc...,0xdef..."
	if ops := os.Getenv("OPERATOR_ADDRESSES"); ops != "" {
		parts := strings.Split(ops, ",")
		cfg.Roles.Operators = cfg.Roles.Operators[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Roles.Operators = append(cfg.Roles.Operators, p)
			}
		}
	}

	if bps := os.Getenv("TRADE_FEE_BPS"); bps != "" {
		if v, err := strconv.ParseInt(bps, 10, 64); err == nil {
			cfg.Fees.TradeFeeBps = v
		}
	}
	if bps := os.Getenv("CLAIM_FEE_BPS"); bps != "" {
		if v, err := strconv.ParseInt(bps, 10, 64); err == nil {
			cfg.Fees.ClaimFeeBps = v
		}
	}
	cfg.Fees.FeeRecipient = getEnv("FEE_RECIPIENT", cfg.Fees.FeeRecipient)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
