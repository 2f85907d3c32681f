package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/settlex/settlex/params"
	"github.com/settlex/settlex/pkg/api"
	"github.com/settlex/settlex/pkg/crypto"
	"github.com/settlex/settlex/pkg/engine"
	"github.com/settlex/settlex/pkg/market"
	"github.com/settlex/settlex/pkg/oracle"
	"github.com/settlex/settlex/pkg/position"
	"github.com/settlex/settlex/pkg/storage"
	"github.com/settlex/settlex/pkg/util"
	"github.com/settlex/settlex/pkg/vault"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/node.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- Roles ----
	if !common.IsHexAddress(cfg.Roles.Owner) {
		sugar.Fatalw("invalid_owner_address", "value", cfg.Roles.Owner)
	}
	if !common.IsHexAddress(cfg.Roles.Oracle) {
		sugar.Fatalw("invalid_oracle_address", "value", cfg.Roles.Oracle)
	}
	owner := common.HexToAddress(cfg.Roles.Owner)
	oracleAddr := common.HexToAddress(cfg.Roles.Oracle)

	var operators []common.Address
	for _, raw := range cfg.Roles.Operators {
		if !common.IsHexAddress(raw) {
			sugar.Fatalw("invalid_operator_address", "value", raw)
		}
		operators = append(operators, common.HexToAddress(raw))
	}
	if len(operators) == 0 {
		sugar.Warn("no operators configured, fills will be rejected until one is added")
	}

	// ---- Storage-backed ledgers ----
	dataDir := cfg.Server.DataDir
	v, err := vault.NewWithPath(filepath.Join(dataDir, "vault"))
	if err != nil {
		sugar.Fatalw("vault_open_failed", "err", err)
	}
	defer v.Close()

	tokens, err := position.NewWithPath(filepath.Join(dataDir, "positions"))
	if err != nil {
		sugar.Fatalw("position_ledger_open_failed", "err", err)
	}
	defer tokens.Close()

	fills, err := engine.NewFillLedgerWithPath(filepath.Join(dataDir, "fills"))
	if err != nil {
		sugar.Fatalw("fill_ledger_open_failed", "err", err)
	}
	defer fills.Close()

	catalog, err := storage.NewMarketStore(filepath.Join(dataDir, "markets"))
	if err != nil {
		sugar.Fatalw("market_store_open_failed", "err", err)
	}
	defer catalog.Close()

	registry, err := market.NewRegistryWithCatalog(catalog)
	if err != nil {
		sugar.Fatalw("market_catalog_load_failed", "err", err)
	}
	sugar.Infow("markets_loaded", "count", registry.Count())

	// Optional demo market for local development.
	if os.Getenv("SEED_DEMO_MARKET") == "true" && !registry.Exists("demo-binary") {
		m, err := market.NewMarket("demo-binary", "Demo: will the coin land heads?", 2, 0)
		if err == nil {
			err = registry.Register(m)
		}
		if err != nil {
			sugar.Warnw("demo_market_seed_failed", "err", err)
		} else {
			sugar.Infow("demo_market_seeded", "id", "demo-binary")
		}
	}

	resolver, err := oracle.NewWithPath(oracleAddr, registry, filepath.Join(dataDir, "resolutions"))
	if err != nil {
		sugar.Fatalw("resolver_open_failed", "err", err)
	}
	defer resolver.Close()

	// ---- Fees ----
	fees := engine.FeeConfig{
		TradeFeeBps: cfg.Fees.TradeFeeBps,
		ClaimFeeBps: cfg.Fees.ClaimFeeBps,
	}
	if cfg.Fees.FeeRecipient != "" {
		if !common.IsHexAddress(cfg.Fees.FeeRecipient) {
			sugar.Fatalw("invalid_fee_recipient", "value", cfg.Fees.FeeRecipient)
		}
		fees.FeeRecipient = common.HexToAddress(cfg.Fees.FeeRecipient)
	}

	// ---- Settlement engine ----
	eng := engine.New(engine.Deps{
		Verifier:    engine.NewOrderVerifier(crypto.DomainForChain(cfg.Signing.ChainID)),
		Fills:       fills,
		Vault:       v,
		Tokens:      tokens,
		Markets:     registry,
		Resolutions: resolver,
		TokenID:     position.TokenID,
		Authority:   engine.NewAuthority(owner, operators...),
		Fees:        fees,
		Logger:      sugar,
	})

	sugar.Infow("engine_initialized",
		"chain_id", cfg.Signing.ChainID,
		"owner", owner.Hex(),
		"oracle", oracleAddr.Hex(),
		"operators", len(operators),
		"trade_fee_bps", fees.TradeFeeBps,
		"claim_fee_bps", fees.ClaimFeeBps,
	)

	// ---- API Server ----
	apiServer := api.NewServer(eng, v, tokens, registry, resolver)

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Server.ListenAddr)
		if err := apiServer.Start(cfg.Server.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// Block until interrupted; ledgers flush on the deferred closes.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	sugar.Infow("node_shutting_down", "signal", sig.String())
}
