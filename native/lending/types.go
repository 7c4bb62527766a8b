package lending

import (
	"math/big"

	"lendingpool/crypto"
)

// InterestRateMode tags each loan with the rate regime the borrower selected.
// The tag is stored with the position and carried on events; no accrual is
// derived from it in this engine.
type InterestRateMode uint8

const (
	InterestRateModeStable   InterestRateMode = 1
	InterestRateModeVariable InterestRateMode = 2
)

// Valid reports whether the mode is a member of the closed enum.
func (m InterestRateMode) Valid() bool {
	return m == InterestRateModeStable || m == InterestRateModeVariable
}

func (m InterestRateMode) String() string {
	switch m {
	case InterestRateModeStable:
		return "stable"
	case InterestRateModeVariable:
		return "variable"
	default:
		return "invalid"
	}
}

// CollateralConfig holds the per-asset risk parameters. Entries are created
// and updated only through the administrative capability; ordinary operations
// read them on the hot path.
type CollateralConfig struct {
	// LtvBps caps borrow capacity granted per unit of collateral value,
	// expressed in basis points.
	LtvBps uint64
	// LiquidationThresholdBps marks where a position becomes eligible for
	// liquidation, expressed in basis points. Tracked, not enforced here.
	LiquidationThresholdBps uint64
	// Enabled gates whether the asset participates in any operation.
	Enabled bool
}

// UserPosition maintains the principal balances for one (user, asset) pair.
// Amounts are denominated in the asset's native smallest unit.
type UserPosition struct {
	User     crypto.Address
	Asset    crypto.Address
	Supplied *big.Int
	Borrowed *big.Int
	// RateMode records the mode selected on the most recent borrow. Zero
	// until the first borrow.
	RateMode InterestRateMode
}

// Clone returns a deep copy so callers cannot mutate shared pointers.
func (p *UserPosition) Clone() *UserPosition {
	if p == nil {
		return nil
	}
	clone := &UserPosition{User: p.User, Asset: p.Asset, RateMode: p.RateMode}
	if p.Supplied != nil {
		clone.Supplied = new(big.Int).Set(p.Supplied)
	}
	if p.Borrowed != nil {
		clone.Borrowed = new(big.Int).Set(p.Borrowed)
	}
	return clone
}

// AssetAmount pairs an asset identifier with a native-unit amount.
type AssetAmount struct {
	Asset  crypto.Address
	Amount *big.Int
}

// BorrowingPower summarises a user's collateral standing in 8-decimal base
// units (the oracle price precision).
type BorrowingPower struct {
	// TotalCollateralValue is the unweighted value of all supplied, enabled,
	// priced assets.
	TotalCollateralValue *big.Int
	// TotalDebtValue is the value of all outstanding borrows.
	TotalDebtValue *big.Int
	// MaxBorrowValue is the LTV-weighted borrow capacity.
	MaxBorrowValue *big.Int
	// AvailableBorrowValue is max(0, MaxBorrowValue - TotalDebtValue).
	AvailableBorrowValue *big.Int
	// LiquidationThresholdValue is the threshold-weighted collateral value
	// backing the health factor.
	LiquidationThresholdValue *big.Int
	// PerAssetMaxBorrow lists, for every borrowable asset, the smaller of the
	// headroom converted at the current price and the pool's liquidity.
	PerAssetMaxBorrow []AssetAmount
}

// AccountData is the aggregate view served to callers, mirroring the shape of
// the public getUserAccountData surface.
type AccountData struct {
	TotalCollateralValue *big.Int
	TotalDebtValue       *big.Int
	AvailableBorrowValue *big.Int
	// CurrentLiquidationThreshold is the collateral-value-weighted average
	// threshold in basis points; zero when nothing is supplied.
	CurrentLiquidationThreshold uint64
	// Ltv is the collateral-value-weighted average LTV in basis points.
	Ltv uint64
	// HealthFactor is a wad-scaled (1e18) ratio of threshold-weighted
	// collateral to debt. MaxHealthFactor when there is no debt.
	HealthFactor *big.Int
}

