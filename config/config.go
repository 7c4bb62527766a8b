package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"lendingpool/crypto"
)

// AssetConfig describes one asset the pool lists at boot: its identifier, the
// oracle seed quote and the collateral risk parameters.
type AssetConfig struct {
	Symbol string `toml:"Symbol"`
	// Address is the 20-byte asset identifier, hex encoded with an optional
	// 0x prefix.
	Address string `toml:"Address"`
	// Decimals is the precision of the asset's native smallest unit.
	Decimals uint8 `toml:"Decimals"`
	// PriceUSD is the seed price as an integer scaled by 10^8.
	PriceUSD string `toml:"PriceUSD"`
	// LtvBps and LiquidationThresholdBps are the risk parameters in basis
	// points.
	LtvBps                  uint64 `toml:"LtvBps"`
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps"`
	// FeedID is the external feed identifier used to refresh this asset's
	// quote. Empty means the seed price is never refreshed automatically.
	FeedID string `toml:"FeedID,omitempty"`
}

// AssetAddress decodes the configured identifier into an asset address.
func (a AssetConfig) AssetAddress() (crypto.Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(a.Address), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: asset %s: invalid address %q: %w", a.Symbol, a.Address, err)
	}
	if len(raw) != crypto.AddressLength {
		return crypto.Address{}, fmt.Errorf("config: asset %s: address must be %d bytes, got %d", a.Symbol, crypto.AddressLength, len(raw))
	}
	return crypto.NewAddress(crypto.AssetPrefix, raw), nil
}

// Price parses the seed quote into an integer.
func (a AssetConfig) Price() (*big.Int, error) {
	price, ok := new(big.Int).SetString(strings.TrimSpace(a.PriceUSD), 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("config: asset %s: invalid price %q", a.Symbol, a.PriceUSD)
	}
	return price, nil
}

// OracleConfig controls the external price refresh loop.
type OracleConfig struct {
	// Enabled starts the feeder; seed prices stay static otherwise.
	Enabled bool `toml:"Enabled"`
	// Endpoint overrides the public feed URL; empty uses the default.
	Endpoint string `toml:"Endpoint,omitempty"`
	// RefreshSeconds is the poll interval. Values below 1 are clamped.
	RefreshSeconds uint64 `toml:"RefreshSeconds"`
}

type Config struct {
	RPCAddress           string        `toml:"RPCAddress"`
	RPCAuthToken         string        `toml:"RPCAuthToken"`
	DataDir              string        `toml:"DataDir"`
	OperatorKeystorePath string        `toml:"OperatorKeystorePath"`
	Oracle               OracleConfig  `toml:"Oracle"`
	Assets               []AssetConfig `toml:"Assets"`
}

// Load reads the configuration at path, creating a default file (with a
// freshly generated operator keystore) when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.OperatorKeystorePath == "" {
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Validate checks structural consistency without touching the filesystem.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for _, asset := range c.Assets {
		addr, err := asset.AssetAddress()
		if err != nil {
			return err
		}
		if _, err := asset.Price(); err != nil {
			return err
		}
		if asset.LtvBps > asset.LiquidationThresholdBps || asset.LiquidationThresholdBps > 10_000 {
			return fmt.Errorf("config: asset %s: ltv %d bps exceeds threshold %d bps or threshold exceeds 100%%",
				asset.Symbol, asset.LtvBps, asset.LiquidationThresholdBps)
		}
		key := string(addr.Bytes())
		if _, dup := seen[key]; dup {
			return fmt.Errorf("config: asset %s: duplicate address %s", asset.Symbol, asset.Address)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := defaultKeystorePath(configPath)
	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	cfg.OperatorKeystorePath = keystorePath
	return persist(configPath, cfg)
}

// DefaultAssets is the asset set written into a freshly created
// configuration file.
func DefaultAssets() []AssetConfig {
	return []AssetConfig{
		{
			Symbol:                  "WETH",
			Address:                 "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			Decimals:                18,
			PriceUSD:                "200000000000",
			LtvBps:                  7500,
			LiquidationThresholdBps: 8000,
			FeedID:                  "ethereum",
		},
		{
			Symbol:                  "USDC",
			Address:                 "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Decimals:                6,
			PriceUSD:                "100000000",
			LtvBps:                  8000,
			LiquidationThresholdBps: 8500,
			FeedID:                  "usd-coin",
		},
		{
			Symbol:                  "USDT",
			Address:                 "0xdAC17F958D2ee523a2206206994597C13D831ec7",
			Decimals:                6,
			PriceUSD:                "100000000",
			LtvBps:                  7500,
			LiquidationThresholdBps: 8000,
			FeedID:                  "tether",
		},
		{
			Symbol:                  "DAI",
			Address:                 "0x6B175474E89094C44Da98b954EedeAC495271d0F",
			Decimals:                18,
			PriceUSD:                "100000000",
			LtvBps:                  7500,
			LiquidationThresholdBps: 8000,
			FeedID:                  "dai",
		},
		{
			Symbol:                  "WBTC",
			Address:                 "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599",
			Decimals:                8,
			PriceUSD:                "3000000000000",
			LtvBps:                  7000,
			LiquidationThresholdBps: 7500,
			FeedID:                  "wrapped-bitcoin",
		},
	}
}

func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:           ":8545",
		DataDir:              "./lending-data",
		OperatorKeystorePath: keystorePath,
		Oracle:               OracleConfig{Enabled: false, RefreshSeconds: 300},
		Assets:               DefaultAssets(),
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
