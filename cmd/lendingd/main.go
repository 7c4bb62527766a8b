package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"lendingpool/config"
	"lendingpool/core/events"
	"lendingpool/core/state"
	"lendingpool/crypto"
	"lendingpool/native/lending"
	"lendingpool/observability/logging"
	"lendingpool/oracle"
	"lendingpool/rpc"
	"lendingpool/rpc/modules"
	"lendingpool/storage"
)

const (
	operatorPassEnv = "LENDING_OPERATOR_PASS"
	authTokenEnv    = "LENDING_RPC_TOKEN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LENDING_ENV"))
	logger := logging.Setup("lendingd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	operatorKey, err := crypto.LoadOrCreateOperatorKey(cfg.OperatorKeystorePath, os.Getenv(operatorPassEnv))
	if err != nil {
		logger.Error("failed to load operator key", slog.Any("error", err))
		os.Exit(1)
	}
	admin := operatorKey.PubKey().Address()
	adminCap := crypto.NewAdminCap(admin)
	logger.Info("operator key loaded", "address", admin.String())

	manager := state.NewManager(db)
	emitter := events.LogEmitter{Logger: logger}

	registry := lending.NewRegistry(admin)
	priceOracle := oracle.New(admin)
	if err := hydrate(manager, registry, priceOracle); err != nil {
		logger.Error("failed to restore stored state", slog.Any("error", err))
		os.Exit(1)
	}
	registry.SetStore(manager)
	registry.SetEmitter(emitter)
	priceOracle.SetStore(manager)
	priceOracle.SetEmitter(emitter)

	listed, err := seedAssets(cfg, adminCap, registry, priceOracle)
	if err != nil {
		logger.Error("failed to seed configured assets", slog.Any("error", err))
		os.Exit(1)
	}
	if listed > 0 {
		logger.Info("listed configured assets", "count", listed)
	}

	book := lending.NewTokenBook(admin)
	engine := lending.NewEngine(admin, registry, priceOracle, book)
	engine.SetState(manager)
	engine.SetEmitter(emitter)

	facade := lending.NewFacade()
	if err := facade.Initialize(engine); err != nil {
		logger.Error("failed to initialize pool", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Oracle.Enabled {
		feeder := buildFeeder(cfg, adminCap, priceOracle, logger)
		if feeder != nil {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go feeder.Run(ctx)
			logger.Info("price feeder started", "intervalSeconds", cfg.Oracle.RefreshSeconds)
		}
	}

	authToken := strings.TrimSpace(os.Getenv(authTokenEnv))
	if authToken == "" {
		authToken = cfg.RPCAuthToken
	}
	if authToken == "" {
		logger.Warn("no RPC auth token configured; administrative methods are disabled")
	}

	module := modules.NewLendingModule(facade, engine, priceOracle, book, adminCap)
	server := rpc.NewServer(module, authToken, logger)

	logger.Info("lending pool initialised and running")
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

// hydrate replays stored collateral configurations and oracle entries into
// the in-memory registries before write-through is enabled.
func hydrate(manager *state.Manager, registry *lending.Registry, priceOracle *oracle.Oracle) error {
	if err := manager.CollateralConfigs(func(asset crypto.Address, cfg lending.CollateralConfig) error {
		return registry.Restore(asset, cfg)
	}); err != nil {
		return fmt.Errorf("restore collateral configs: %w", err)
	}
	if err := manager.PriceEntries(func(asset crypto.Address, entry oracle.Entry) error {
		return priceOracle.Restore(asset, entry)
	}); err != nil {
		return fmt.Errorf("restore oracle entries: %w", err)
	}
	return nil
}

// buildFeeder assembles the refresh loop over every configured asset with a
// feed identifier. Returns nil when nothing is refreshable.
func buildFeeder(cfg *config.Config, cap crypto.AdminCap, priceOracle *oracle.Oracle, logger *slog.Logger) *oracle.Feeder {
	assets := make([]oracle.FeedAsset, 0, len(cfg.Assets))
	for _, assetCfg := range cfg.Assets {
		if strings.TrimSpace(assetCfg.FeedID) == "" {
			continue
		}
		asset, err := assetCfg.AssetAddress()
		if err != nil {
			logger.Warn("skipping feed for invalid asset", "symbol", assetCfg.Symbol, slog.Any("error", err))
			continue
		}
		assets = append(assets, oracle.FeedAsset{Asset: asset, FeedID: assetCfg.FeedID})
	}
	if len(assets) == 0 {
		return nil
	}
	feed := oracle.NewCoinGeckoFeed(nil, cfg.Oracle.Endpoint)
	interval := time.Duration(cfg.Oracle.RefreshSeconds) * time.Second
	return oracle.NewFeeder(priceOracle, cap, feed, assets, interval, logger)
}

// seedAssets lists any configured asset not already known, returning how many
// were newly listed. Assets restored from storage win over the config file.
func seedAssets(cfg *config.Config, cap crypto.AdminCap, registry *lending.Registry, priceOracle *oracle.Oracle) (int, error) {
	listed := 0
	for _, assetCfg := range cfg.Assets {
		asset, err := assetCfg.AssetAddress()
		if err != nil {
			return listed, err
		}
		price, err := assetCfg.Price()
		if err != nil {
			return listed, err
		}
		err = priceOracle.AddAsset(cap, asset, price, assetCfg.Decimals)
		if errors.Is(err, oracle.ErrDuplicateAsset) {
			continue
		}
		if err != nil {
			return listed, fmt.Errorf("seed oracle %s: %w", assetCfg.Symbol, err)
		}
		if err := registry.AddAsset(cap, asset, assetCfg.LtvBps, assetCfg.LiquidationThresholdBps); err != nil && !errors.Is(err, lending.ErrDuplicateAsset) {
			return listed, fmt.Errorf("seed registry %s: %w", assetCfg.Symbol, err)
		}
		listed++
	}
	return listed, nil
}
