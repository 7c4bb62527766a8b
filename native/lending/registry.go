package lending

import (
	"fmt"
	"sync"

	"lendingpool/core/events"
	"lendingpool/crypto"
)

// RegistryStore persists collateral configurations so the registry survives a
// restart. Implemented by the state manager; nil disables write-through.
type RegistryStore interface {
	PutCollateralConfig(asset crypto.Address, cfg CollateralConfig) error
}

// Registry is the collateral-risk registry: one CollateralConfig per listed
// asset, mutated only through the administrative capability and read on every
// hot-path operation. Iteration order is insertion order so borrowing-power
// sweeps stay deterministic.
type Registry struct {
	mu      sync.RWMutex
	admin   crypto.Address
	order   []crypto.Address
	configs map[[crypto.AddressLength]byte]CollateralConfig
	store   RegistryStore
	emitter events.Emitter
}

// NewRegistry constructs a registry administered by the given operator
// address.
func NewRegistry(admin crypto.Address) *Registry {
	return &Registry{
		admin:   admin,
		configs: make(map[[crypto.AddressLength]byte]CollateralConfig),
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter wires the listing-event sink. A nil emitter restores the no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if r == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.mu.Lock()
	r.emitter = emitter
	r.mu.Unlock()
}

// SetStore wires the optional write-through persistence backend.
func (r *Registry) SetStore(store RegistryStore) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.store = store
	r.mu.Unlock()
}

func assetKey(asset crypto.Address) [crypto.AddressLength]byte {
	var key [crypto.AddressLength]byte
	copy(key[:], asset.Bytes())
	return key
}

// AddAsset lists an asset with its risk parameters. Fails with
// ErrInvalidConfig when the LTV exceeds the liquidation threshold or either
// exceeds 100%, and with ErrDuplicateAsset on a second listing.
func (r *Registry) AddAsset(cap crypto.AdminCap, asset crypto.Address, ltvBps, liquidationThresholdBps uint64) error {
	if r == nil {
		return errNilState
	}
	if !cap.Authorizes(r.admin) {
		return ErrUnauthorized
	}
	if asset.IsZero() {
		return ErrInvalidAddress
	}
	if ltvBps > liquidationThresholdBps || liquidationThresholdBps > 10_000 {
		return fmt.Errorf("%w: ltv %d bps, threshold %d bps", ErrInvalidConfig, ltvBps, liquidationThresholdBps)
	}
	cfg := CollateralConfig{LtvBps: ltvBps, LiquidationThresholdBps: liquidationThresholdBps, Enabled: true}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := assetKey(asset)
	if _, exists := r.configs[key]; exists {
		return ErrDuplicateAsset
	}
	if r.store != nil {
		if err := r.store.PutCollateralConfig(asset, cfg); err != nil {
			return err
		}
	}
	r.configs[key] = cfg
	r.order = append(r.order, asset)
	r.emitter.Emit(events.LendingAssetListed{
		Asset:                   asset,
		LtvBps:                  ltvBps,
		LiquidationThresholdBps: liquidationThresholdBps,
	})
	return nil
}

// SetEnabled toggles an asset's participation without dropping its
// configuration.
func (r *Registry) SetEnabled(cap crypto.AdminCap, asset crypto.Address, enabled bool) error {
	if r == nil {
		return errNilState
	}
	if !cap.Authorizes(r.admin) {
		return ErrUnauthorized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := assetKey(asset)
	cfg, exists := r.configs[key]
	if !exists {
		return ErrAssetNotSupported
	}
	cfg.Enabled = enabled
	if r.store != nil {
		if err := r.store.PutCollateralConfig(asset, cfg); err != nil {
			return err
		}
	}
	r.configs[key] = cfg
	return nil
}

// Restore rehydrates a stored configuration at boot, bypassing the
// capability check and write-through. Duplicate restores are rejected the
// same way duplicate listings are.
func (r *Registry) Restore(asset crypto.Address, cfg CollateralConfig) error {
	if r == nil {
		return errNilState
	}
	if asset.IsZero() {
		return ErrInvalidAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := assetKey(asset)
	if _, exists := r.configs[key]; exists {
		return ErrDuplicateAsset
	}
	r.configs[key] = cfg
	r.order = append(r.order, asset)
	return nil
}

// Config returns the configuration for an asset, failing with
// ErrAssetNotSupported when the asset is unlisted or disabled.
func (r *Registry) Config(asset crypto.Address) (CollateralConfig, error) {
	if r == nil {
		return CollateralConfig{}, errNilState
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, exists := r.configs[assetKey(asset)]
	if !exists || !cfg.Enabled {
		return CollateralConfig{}, ErrAssetNotSupported
	}
	return cfg, nil
}

// Listing returns the stored configuration for an asset whether or not it is
// enabled, reporting whether the asset has ever been listed. Display surfaces
// use it so disabled assets keep showing their risk parameters.
func (r *Registry) Listing(asset crypto.Address) (CollateralConfig, bool) {
	if r == nil {
		return CollateralConfig{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, exists := r.configs[assetKey(asset)]
	return cfg, exists
}

// Assets returns the listed assets in insertion order, including disabled
// entries. Callers filter through Config.
func (r *Registry) Assets() []crypto.Address {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]crypto.Address{}, r.order...)
}
