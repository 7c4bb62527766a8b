package oracle

import (
	"errors"
	"math/big"
	"testing"

	"lendingpool/crypto"
)

func makeAddress(prefix crypto.AddressPrefix, suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(prefix, raw)
}

func newTestOracle() (*Oracle, crypto.AdminCap) {
	admin := makeAddress(crypto.AccountPrefix, 0x01)
	return New(admin), crypto.NewAdminCap(admin)
}

func TestAddAssetAndGetPrice(t *testing.T) {
	o, adminCap := newTestOracle()
	asset := makeAddress(crypto.AssetPrefix, 0xA1)
	price := big.NewInt(2000_0000_0000)

	if err := o.AddAsset(adminCap, asset, price, 18); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	got, decimals, err := o.GetPrice(asset)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if got.Cmp(price) != 0 {
		t.Fatalf("expected price %s, got %s", price, got)
	}
	if decimals != 18 {
		t.Fatalf("expected 18 decimals, got %d", decimals)
	}

	// The returned price is a copy; mutating it must not poison the oracle.
	got.SetInt64(1)
	again, _, err := o.GetPrice(asset)
	if err != nil {
		t.Fatalf("get price again: %v", err)
	}
	if again.Cmp(price) != 0 {
		t.Fatalf("stored price mutated through returned pointer: %s", again)
	}
}

func TestAddAssetRejectsDuplicate(t *testing.T) {
	o, adminCap := newTestOracle()
	asset := makeAddress(crypto.AssetPrefix, 0xA1)

	if err := o.AddAsset(adminCap, asset, big.NewInt(100), 6); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	err := o.AddAsset(adminCap, asset, big.NewInt(200), 8)
	if !errors.Is(err, ErrDuplicateAsset) {
		t.Fatalf("expected ErrDuplicateAsset, got %v", err)
	}
	// The original quote and decimals are untouched.
	price, decimals, err := o.GetPrice(asset)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if price.Cmp(big.NewInt(100)) != 0 || decimals != 6 {
		t.Fatalf("duplicate registration overwrote entry: price %s decimals %d", price, decimals)
	}
}

func TestAddAssetValidation(t *testing.T) {
	o, adminCap := newTestOracle()
	asset := makeAddress(crypto.AssetPrefix, 0xA1)

	if err := o.AddAsset(adminCap, crypto.Address{}, big.NewInt(100), 6); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if err := o.AddAsset(adminCap, asset, nil, 6); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for nil, got %v", err)
	}
	if err := o.AddAsset(adminCap, asset, big.NewInt(0), 6); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero, got %v", err)
	}
	if err := o.AddAsset(adminCap, asset, big.NewInt(-5), 6); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for negative, got %v", err)
	}
}

func TestSetPriceMovesQuote(t *testing.T) {
	o, adminCap := newTestOracle()
	asset := makeAddress(crypto.AssetPrefix, 0xA1)

	if err := o.AddAsset(adminCap, asset, big.NewInt(2000_0000_0000), 18); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	if err := o.SetPrice(adminCap, asset, big.NewInt(1800_0000_0000)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	price, decimals, err := o.GetPrice(asset)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if price.Cmp(big.NewInt(1800_0000_0000)) != 0 {
		t.Fatalf("expected updated price, got %s", price)
	}
	if decimals != 18 {
		t.Fatalf("decimals changed by SetPrice: %d", decimals)
	}
}

func TestSetPriceUnknownAsset(t *testing.T) {
	o, adminCap := newTestOracle()
	asset := makeAddress(crypto.AssetPrefix, 0xA1)

	err := o.SetPrice(adminCap, asset, big.NewInt(100))
	if !errors.Is(err, ErrAssetNotSupported) {
		t.Fatalf("expected ErrAssetNotSupported, got %v", err)
	}
}

func TestCapabilityGatesMutations(t *testing.T) {
	o, _ := newTestOracle()
	stranger := crypto.NewAdminCap(makeAddress(crypto.AccountPrefix, 0x77))
	asset := makeAddress(crypto.AssetPrefix, 0xA1)

	if err := o.AddAsset(stranger, asset, big.NewInt(100), 6); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on AddAsset, got %v", err)
	}
	if err := o.SetPrice(stranger, asset, big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on SetPrice, got %v", err)
	}
}

func TestGetPriceUnknownAsset(t *testing.T) {
	o, _ := newTestOracle()
	_, _, err := o.GetPrice(makeAddress(crypto.AssetPrefix, 0x99))
	if !errors.Is(err, ErrAssetNotSupported) {
		t.Fatalf("expected ErrAssetNotSupported, got %v", err)
	}
}

func TestSupportedAssetsRegistrationOrder(t *testing.T) {
	o, adminCap := newTestOracle()
	suffixes := []byte{0xC3, 0xA1, 0xB2}
	for _, suffix := range suffixes {
		asset := makeAddress(crypto.AssetPrefix, suffix)
		if err := o.AddAsset(adminCap, asset, big.NewInt(100), 6); err != nil {
			t.Fatalf("register %x: %v", suffix, err)
		}
	}
	assets := o.SupportedAssets()
	if len(assets) != len(suffixes) {
		t.Fatalf("expected %d assets, got %d", len(suffixes), len(assets))
	}
	for i, suffix := range suffixes {
		if assets[i].Bytes()[crypto.AddressLength-1] != suffix {
			t.Fatalf("expected suffix %x at position %d", suffix, i)
		}
	}
}

func TestRestoreRehydratesEntry(t *testing.T) {
	o, _ := newTestOracle()
	asset := makeAddress(crypto.AssetPrefix, 0xA1)
	entry := Entry{Price: big.NewInt(2000_0000_0000), AssetDecimals: 18}

	if err := o.Restore(asset, entry); err != nil {
		t.Fatalf("restore: %v", err)
	}
	price, decimals, err := o.GetPrice(asset)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if price.Cmp(entry.Price) != 0 || decimals != 18 {
		t.Fatalf("restored entry mismatch: %s/%d", price, decimals)
	}
	if err := o.Restore(asset, entry); !errors.Is(err, ErrDuplicateAsset) {
		t.Fatalf("expected ErrDuplicateAsset on second restore, got %v", err)
	}
}
