package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"lendingpool/crypto"
	"lendingpool/native/lending"
	"lendingpool/oracle"
	"lendingpool/storage"
)

var (
	positionPrefix   = []byte("lending/position/")
	liquidityPrefix  = []byte("lending/liquidity/")
	collateralPrefix = []byte("lending/collateral/")
	pricePrefix      = []byte("oracle/price/")
)

func positionKey(user, asset crypto.Address) []byte {
	buf := make([]byte, 0, len(positionPrefix)+2*crypto.AddressLength)
	buf = append(buf, positionPrefix...)
	buf = append(buf, user.Bytes()...)
	buf = append(buf, asset.Bytes()...)
	return buf
}

func liquidityKey(asset crypto.Address) []byte {
	buf := make([]byte, 0, len(liquidityPrefix)+crypto.AddressLength)
	buf = append(buf, liquidityPrefix...)
	buf = append(buf, asset.Bytes()...)
	return buf
}

func collateralKey(asset crypto.Address) []byte {
	buf := make([]byte, 0, len(collateralPrefix)+crypto.AddressLength)
	buf = append(buf, collateralPrefix...)
	buf = append(buf, asset.Bytes()...)
	return buf
}

func priceKey(asset crypto.Address) []byte {
	buf := make([]byte, 0, len(pricePrefix)+crypto.AddressLength)
	buf = append(buf, pricePrefix...)
	buf = append(buf, asset.Bytes()...)
	return buf
}

// Stored records keep big.Int fields as decimal strings so the encoding stays
// stable across library versions.
type storedPosition struct {
	User     [crypto.AddressLength]byte
	Asset    [crypto.AddressLength]byte
	Supplied string
	Borrowed string
	RateMode uint8
}

type storedAmount struct {
	Amount string
}

type storedCollateralConfig struct {
	LtvBps                  uint64
	LiquidationThresholdBps uint64
	Enabled                 bool
}

type storedPriceEntry struct {
	Price         string
	AssetDecimals uint8
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("state: invalid stored amount %q", value)
	}
	return amount, nil
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

// Manager is the persistence layer shared by the pool engine, the collateral
// registry and the price oracle. All records are RLP encoded under typed key
// prefixes in one key-value database.
type Manager struct {
	db storage.Database
}

// NewManager wraps the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// GetPosition loads the principal position for a (user, asset) pair. Absent
// positions return nil with no error.
func (m *Manager) GetPosition(user, asset crypto.Address) (*lending.UserPosition, error) {
	var stored storedPosition
	ok, err := m.get(positionKey(user, asset), &stored)
	if err != nil || !ok {
		return nil, err
	}
	supplied, err := parseAmount(stored.Supplied)
	if err != nil {
		return nil, err
	}
	borrowed, err := parseAmount(stored.Borrowed)
	if err != nil {
		return nil, err
	}
	return &lending.UserPosition{
		User:     crypto.NewAddress(crypto.AccountPrefix, append([]byte{}, stored.User[:]...)),
		Asset:    crypto.NewAddress(crypto.AssetPrefix, append([]byte{}, stored.Asset[:]...)),
		Supplied: supplied,
		Borrowed: borrowed,
		RateMode: lending.InterestRateMode(stored.RateMode),
	}, nil
}

// PutPosition stores a principal position.
func (m *Manager) PutPosition(pos *lending.UserPosition) error {
	if pos == nil {
		return fmt.Errorf("state: nil position")
	}
	stored := storedPosition{
		Supplied: amountString(pos.Supplied),
		Borrowed: amountString(pos.Borrowed),
		RateMode: uint8(pos.RateMode),
	}
	copy(stored.User[:], pos.User.Bytes())
	copy(stored.Asset[:], pos.Asset.Bytes())
	return m.put(positionKey(pos.User, pos.Asset), stored)
}

// GetLiquidity loads the pool liquidity for an asset; nil when never funded.
func (m *Manager) GetLiquidity(asset crypto.Address) (*big.Int, error) {
	var stored storedAmount
	ok, err := m.get(liquidityKey(asset), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return parseAmount(stored.Amount)
}

// PutLiquidity stores the pool liquidity for an asset.
func (m *Manager) PutLiquidity(asset crypto.Address, amount *big.Int) error {
	return m.put(liquidityKey(asset), storedAmount{Amount: amountString(amount)})
}

// PutCollateralConfig stores the risk parameters for a listed asset.
func (m *Manager) PutCollateralConfig(asset crypto.Address, cfg lending.CollateralConfig) error {
	return m.put(collateralKey(asset), storedCollateralConfig{
		LtvBps:                  cfg.LtvBps,
		LiquidationThresholdBps: cfg.LiquidationThresholdBps,
		Enabled:                 cfg.Enabled,
	})
}

// CollateralConfigs walks every stored collateral configuration in ascending
// asset order. Used at boot to rehydrate the registry.
func (m *Manager) CollateralConfigs(fn func(asset crypto.Address, cfg lending.CollateralConfig) error) error {
	var walkErr error
	err := m.db.IteratePrefix(collateralPrefix, func(key, value []byte) bool {
		raw := key[len(collateralPrefix):]
		if len(raw) != crypto.AddressLength {
			walkErr = fmt.Errorf("state: malformed collateral key %q", key)
			return false
		}
		var stored storedCollateralConfig
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			walkErr = fmt.Errorf("state: decode collateral %q: %w", key, err)
			return false
		}
		asset := crypto.NewAddress(crypto.AssetPrefix, append([]byte{}, raw...))
		walkErr = fn(asset, lending.CollateralConfig{
			LtvBps:                  stored.LtvBps,
			LiquidationThresholdBps: stored.LiquidationThresholdBps,
			Enabled:                 stored.Enabled,
		})
		return walkErr == nil
	})
	if err != nil {
		return err
	}
	return walkErr
}

// PutPriceEntry stores the oracle quote for a registered asset.
func (m *Manager) PutPriceEntry(asset crypto.Address, entry oracle.Entry) error {
	return m.put(priceKey(asset), storedPriceEntry{
		Price:         amountString(entry.Price),
		AssetDecimals: entry.AssetDecimals,
	})
}

// PriceEntries walks every stored oracle entry in ascending asset order. Used
// at boot to rehydrate the oracle.
func (m *Manager) PriceEntries(fn func(asset crypto.Address, entry oracle.Entry) error) error {
	var walkErr error
	err := m.db.IteratePrefix(pricePrefix, func(key, value []byte) bool {
		raw := key[len(pricePrefix):]
		if len(raw) != crypto.AddressLength {
			walkErr = fmt.Errorf("state: malformed price key %q", key)
			return false
		}
		var stored storedPriceEntry
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			walkErr = fmt.Errorf("state: decode price %q: %w", key, err)
			return false
		}
		price, err := parseAmount(stored.Price)
		if err != nil {
			walkErr = err
			return false
		}
		asset := crypto.NewAddress(crypto.AssetPrefix, append([]byte{}, raw...))
		walkErr = fn(asset, oracle.Entry{Price: price, AssetDecimals: stored.AssetDecimals})
		return walkErr == nil
	})
	if err != nil {
		return err
	}
	return walkErr
}
