package lending

import (
	"fmt"
	"math/big"

	"lendingpool/crypto"
)

// PriceSource resolves the oracle entry for an asset: an 8-decimal price and
// the asset's native decimal precision. A missing or unsupported asset must
// fail, never report zero.
type PriceSource interface {
	GetPrice(asset crypto.Address) (price *big.Int, assetDecimals uint8, err error)
}

// powerAdjustment lets withdraw recompute capacity as if part of a supplied
// balance were already gone.
type powerAdjustment struct {
	asset  crypto.Address
	amount *big.Int
}

// computePower sweeps the registry's asset list (insertion order, so the
// result is deterministic for a given snapshot) and aggregates the user's
// collateral and debt values in 8-decimal base units. Every conversion floors
// so borrowing power is never overstated. Callers hold the engine lock.
func (e *Engine) computePower(user crypto.Address, adj *powerAdjustment) (*BorrowingPower, error) {
	power := &BorrowingPower{
		TotalCollateralValue:      big.NewInt(0),
		TotalDebtValue:            big.NewInt(0),
		MaxBorrowValue:            big.NewInt(0),
		AvailableBorrowValue:      big.NewInt(0),
		LiquidationThresholdValue: big.NewInt(0),
	}

	assets := e.registry.Assets()
	for _, asset := range assets {
		pos, err := e.state.GetPosition(user, asset)
		if err != nil {
			return nil, err
		}
		if pos == nil {
			continue
		}

		supplied := big.NewInt(0)
		if pos.Supplied != nil {
			supplied.Set(pos.Supplied)
		}
		if adj != nil && adj.asset.Equal(asset) {
			supplied.Sub(supplied, adj.amount)
			if supplied.Sign() < 0 {
				supplied.SetInt64(0)
			}
		}

		if supplied.Sign() > 0 {
			cfg, cfgErr := e.registry.Config(asset)
			if cfgErr == nil {
				price, decimals, priceErr := e.prices.GetPrice(asset)
				if priceErr != nil {
					return nil, fmt.Errorf("%w: %s", ErrAssetNotSupported, asset.String())
				}
				value := valueInBase(supplied, price, decimals)
				power.TotalCollateralValue.Add(power.TotalCollateralValue, value)
				power.MaxBorrowValue.Add(power.MaxBorrowValue, applyBps(value, cfg.LtvBps))
				power.LiquidationThresholdValue.Add(power.LiquidationThresholdValue, applyBps(value, cfg.LiquidationThresholdBps))
			}
		}

		if pos.Borrowed != nil && pos.Borrowed.Sign() > 0 {
			price, decimals, priceErr := e.prices.GetPrice(asset)
			if priceErr != nil {
				return nil, fmt.Errorf("%w: %s", ErrAssetNotSupported, asset.String())
			}
			power.TotalDebtValue.Add(power.TotalDebtValue, valueInBase(pos.Borrowed, price, decimals))
		}
	}

	available := new(big.Int).Sub(power.MaxBorrowValue, power.TotalDebtValue)
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	power.AvailableBorrowValue = available

	for _, asset := range assets {
		cfg, cfgErr := e.registry.Config(asset)
		if cfgErr != nil || !cfg.Enabled {
			continue
		}
		price, decimals, priceErr := e.prices.GetPrice(asset)
		if priceErr != nil {
			continue
		}
		liquidity, err := e.state.GetLiquidity(asset)
		if err != nil {
			return nil, err
		}
		if liquidity == nil || liquidity.Sign() <= 0 {
			continue
		}
		// The min with pool liquidity is essential: borrowing power alone
		// must never imply more than the pool actually holds.
		maxBorrow := amountFromBase(available, price, decimals)
		if maxBorrow.Cmp(liquidity) > 0 {
			maxBorrow = new(big.Int).Set(liquidity)
		}
		power.PerAssetMaxBorrow = append(power.PerAssetMaxBorrow, AssetAmount{Asset: asset, Amount: maxBorrow})
	}

	return power, nil
}

// accountData folds a power snapshot into the aggregate view, adding the
// value-weighted average LTV / liquidation threshold and the wad health
// factor. Callers hold the engine lock.
func (e *Engine) accountData(user crypto.Address) (*AccountData, error) {
	power, err := e.computePower(user, nil)
	if err != nil {
		return nil, err
	}

	weightedLtv := big.NewInt(0)
	weightedThreshold := big.NewInt(0)
	for _, asset := range e.registry.Assets() {
		cfg, cfgErr := e.registry.Config(asset)
		if cfgErr != nil {
			continue
		}
		pos, posErr := e.state.GetPosition(user, asset)
		if posErr != nil {
			return nil, posErr
		}
		if pos == nil || pos.Supplied == nil || pos.Supplied.Sign() <= 0 {
			continue
		}
		price, decimals, priceErr := e.prices.GetPrice(asset)
		if priceErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotSupported, asset.String())
		}
		value := valueInBase(pos.Supplied, price, decimals)
		weightedLtv.Add(weightedLtv, new(big.Int).Mul(value, new(big.Int).SetUint64(cfg.LtvBps)))
		weightedThreshold.Add(weightedThreshold, new(big.Int).Mul(value, new(big.Int).SetUint64(cfg.LiquidationThresholdBps)))
	}

	healthFactor := new(big.Int).Set(MaxHealthFactor)
	if power.TotalDebtValue.Sign() > 0 {
		healthFactor = new(big.Int).Mul(power.LiquidationThresholdValue, wad)
		healthFactor.Quo(healthFactor, power.TotalDebtValue)
	}

	return &AccountData{
		TotalCollateralValue:        power.TotalCollateralValue,
		TotalDebtValue:              power.TotalDebtValue,
		AvailableBorrowValue:        power.AvailableBorrowValue,
		CurrentLiquidationThreshold: weightedBps(weightedThreshold, power.TotalCollateralValue),
		Ltv:                         weightedBps(weightedLtv, power.TotalCollateralValue),
		HealthFactor:                healthFactor,
	}, nil
}
