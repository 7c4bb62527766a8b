package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lendingpool/crypto"
	"lendingpool/native/lending"
	"lendingpool/oracle"
	"lendingpool/storage"
)

func makeAddress(prefix crypto.AddressPrefix, suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(prefix, raw)
}

func TestPositionRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	user := makeAddress(crypto.AccountPrefix, 0x10)
	asset := makeAddress(crypto.AssetPrefix, 0xA1)

	missing, err := manager.GetPosition(user, asset)
	require.NoError(t, err)
	require.Nil(t, missing)

	pos := &lending.UserPosition{
		User:     user,
		Asset:    asset,
		Supplied: big.NewInt(1_000_000_000_000_000_000),
		Borrowed: big.NewInt(500_000_000),
		RateMode: lending.InterestRateModeVariable,
	}
	require.NoError(t, manager.PutPosition(pos))

	loaded, err := manager.GetPosition(user, asset)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, user.Bytes(), loaded.User.Bytes())
	require.Equal(t, asset.Bytes(), loaded.Asset.Bytes())
	require.Zero(t, pos.Supplied.Cmp(loaded.Supplied))
	require.Zero(t, pos.Borrowed.Cmp(loaded.Borrowed))
	require.Equal(t, lending.InterestRateModeVariable, loaded.RateMode)
}

func TestPositionNilAmounts(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	user := makeAddress(crypto.AccountPrefix, 0x10)
	asset := makeAddress(crypto.AssetPrefix, 0xA1)

	require.NoError(t, manager.PutPosition(&lending.UserPosition{User: user, Asset: asset}))

	loaded, err := manager.GetPosition(user, asset)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Zero(t, loaded.Supplied.Sign())
	require.Zero(t, loaded.Borrowed.Sign())
}

func TestLiquidityRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	asset := makeAddress(crypto.AssetPrefix, 0xA1)

	missing, err := manager.GetLiquidity(asset)
	require.NoError(t, err)
	require.Nil(t, missing)

	amount := new(big.Int)
	amount.SetString("123456789012345678901234567890", 10)
	require.NoError(t, manager.PutLiquidity(asset, amount))

	loaded, err := manager.GetLiquidity(asset)
	require.NoError(t, err)
	require.Zero(t, amount.Cmp(loaded))
}

func TestCollateralConfigWalk(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	configs := map[byte]lending.CollateralConfig{
		0xA1: {LtvBps: 7500, LiquidationThresholdBps: 8000, Enabled: true},
		0xB2: {LtvBps: 8000, LiquidationThresholdBps: 8500, Enabled: false},
	}
	for suffix, cfg := range configs {
		require.NoError(t, manager.PutCollateralConfig(makeAddress(crypto.AssetPrefix, suffix), cfg))
	}

	seen := make(map[byte]lending.CollateralConfig)
	require.NoError(t, manager.CollateralConfigs(func(asset crypto.Address, cfg lending.CollateralConfig) error {
		require.Equal(t, crypto.AssetPrefix, asset.Prefix())
		seen[asset.Bytes()[crypto.AddressLength-1]] = cfg
		return nil
	}))
	require.Equal(t, configs, seen)
}

func TestPriceEntryWalk(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	entries := map[byte]oracle.Entry{
		0xA1: {Price: big.NewInt(2000_0000_0000), AssetDecimals: 18},
		0xB2: {Price: big.NewInt(1_0000_0000), AssetDecimals: 6},
	}
	for suffix, entry := range entries {
		require.NoError(t, manager.PutPriceEntry(makeAddress(crypto.AssetPrefix, suffix), entry))
	}

	seen := make(map[byte]oracle.Entry)
	require.NoError(t, manager.PriceEntries(func(asset crypto.Address, entry oracle.Entry) error {
		require.Equal(t, crypto.AssetPrefix, asset.Prefix())
		seen[asset.Bytes()[crypto.AddressLength-1]] = entry
		return nil
	}))
	require.Len(t, seen, len(entries))
	for suffix, want := range entries {
		got, ok := seen[suffix]
		require.True(t, ok)
		require.Zero(t, want.Price.Cmp(got.Price))
		require.Equal(t, want.AssetDecimals, got.AssetDecimals)
	}
}

func TestPutOverwrites(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	asset := makeAddress(crypto.AssetPrefix, 0xA1)

	require.NoError(t, manager.PutLiquidity(asset, big.NewInt(100)))
	require.NoError(t, manager.PutLiquidity(asset, big.NewInt(250)))

	loaded, err := manager.GetLiquidity(asset)
	require.NoError(t, err)
	require.Zero(t, big.NewInt(250).Cmp(loaded))
}
