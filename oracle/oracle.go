package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"lendingpool/core/events"
	"lendingpool/crypto"
)

// PriceDecimals is the fixed precision of every quoted price: prices are
// integers scaled by 10^8, USD denominated.
const PriceDecimals = 8

var (
	ErrNotConfigured     = errors.New("oracle: not configured")
	ErrAssetNotSupported = errors.New("oracle: asset not supported")
	ErrDuplicateAsset    = errors.New("oracle: asset already registered")
	ErrInvalidPrice      = errors.New("oracle: price must be positive")
	ErrInvalidAddress    = errors.New("oracle: invalid address")
	ErrUnauthorized      = errors.New("oracle: unauthorized")
)

// Entry holds the quote and unit metadata for one registered asset.
type Entry struct {
	// Price is the USD price scaled by 10^PriceDecimals.
	Price *big.Int
	// AssetDecimals is the precision of the asset's native smallest unit,
	// recorded at registration and immutable afterwards.
	AssetDecimals uint8
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	clone := Entry{AssetDecimals: e.AssetDecimals}
	if e.Price != nil {
		clone.Price = new(big.Int).Set(e.Price)
	}
	return clone
}

// Store persists oracle entries so quotes survive a restart. Implemented by
// the state manager; nil disables write-through.
type Store interface {
	PutPriceEntry(asset crypto.Address, entry Entry) error
}

// Oracle is a manually-fed price source keyed by asset address. Registration
// and price updates go through the administrative capability; reads are
// lock-free for callers beyond the internal RWMutex. Iteration order is
// registration order.
type Oracle struct {
	mu      sync.RWMutex
	admin   crypto.Address
	order   []crypto.Address
	entries map[[crypto.AddressLength]byte]Entry
	store   Store
	emitter events.Emitter
}

// New constructs an empty oracle administered by the given operator address.
func New(admin crypto.Address) *Oracle {
	return &Oracle{
		admin:   admin,
		entries: make(map[[crypto.AddressLength]byte]Entry),
		emitter: events.NoopEmitter{},
	}
}

// SetStore wires the optional write-through persistence backend.
func (o *Oracle) SetStore(store Store) {
	if o == nil {
		return
	}
	o.mu.Lock()
	o.store = store
	o.mu.Unlock()
}

// SetEmitter wires the price-update event sink. A nil emitter restores the
// no-op.
func (o *Oracle) SetEmitter(emitter events.Emitter) {
	if o == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	o.mu.Lock()
	o.emitter = emitter
	o.mu.Unlock()
}

func entryKey(asset crypto.Address) [crypto.AddressLength]byte {
	var key [crypto.AddressLength]byte
	copy(key[:], asset.Bytes())
	return key
}

// AddAsset registers an asset with its initial price and native-unit
// precision. A second registration of the same asset fails with
// ErrDuplicateAsset; use SetPrice to move an existing quote.
func (o *Oracle) AddAsset(cap crypto.AdminCap, asset crypto.Address, price *big.Int, assetDecimals uint8) error {
	if o == nil {
		return ErrNotConfigured
	}
	if !cap.Authorizes(o.admin) {
		return ErrUnauthorized
	}
	if asset.IsZero() {
		return ErrInvalidAddress
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	entry := Entry{Price: new(big.Int).Set(price), AssetDecimals: assetDecimals}

	o.mu.Lock()
	defer o.mu.Unlock()
	key := entryKey(asset)
	if _, exists := o.entries[key]; exists {
		return ErrDuplicateAsset
	}
	if o.store != nil {
		if err := o.store.PutPriceEntry(asset, entry); err != nil {
			return err
		}
	}
	o.entries[key] = entry
	o.order = append(o.order, asset)
	o.emitter.Emit(events.LendingPriceUpdated{Asset: asset, Price: entry.Price})
	return nil
}

// SetPrice moves the quote for a registered asset. The asset's decimals are
// fixed at registration and cannot change here.
func (o *Oracle) SetPrice(cap crypto.AdminCap, asset crypto.Address, price *big.Int) error {
	if o == nil {
		return ErrNotConfigured
	}
	if !cap.Authorizes(o.admin) {
		return ErrUnauthorized
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	key := entryKey(asset)
	entry, exists := o.entries[key]
	if !exists {
		return fmt.Errorf("%w: %s", ErrAssetNotSupported, asset.String())
	}
	entry.Price = new(big.Int).Set(price)
	if o.store != nil {
		if err := o.store.PutPriceEntry(asset, entry); err != nil {
			return err
		}
	}
	o.entries[key] = entry
	o.emitter.Emit(events.LendingPriceUpdated{Asset: asset, Price: entry.Price})
	return nil
}

// Restore rehydrates a stored entry at boot, bypassing the capability check,
// write-through and event emission.
func (o *Oracle) Restore(asset crypto.Address, entry Entry) error {
	if o == nil {
		return ErrNotConfigured
	}
	if asset.IsZero() {
		return ErrInvalidAddress
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	key := entryKey(asset)
	if _, exists := o.entries[key]; exists {
		return ErrDuplicateAsset
	}
	o.entries[key] = entry.Clone()
	o.order = append(o.order, asset)
	return nil
}

// GetPrice returns the current price and the asset's native-unit precision.
// The returned price is a defensive copy.
func (o *Oracle) GetPrice(asset crypto.Address) (*big.Int, uint8, error) {
	if o == nil {
		return nil, 0, ErrNotConfigured
	}
	o.mu.RLock()
	entry, exists := o.entries[entryKey(asset)]
	o.mu.RUnlock()
	if !exists || entry.Price == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrAssetNotSupported, asset.String())
	}
	return new(big.Int).Set(entry.Price), entry.AssetDecimals, nil
}

// SupportedAssets returns the registered assets in registration order.
func (o *Oracle) SupportedAssets() []crypto.Address {
	if o == nil {
		return nil
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]crypto.Address{}, o.order...)
}
