package modules

import (
	"errors"
	"math/big"
	"net/http"
	"time"

	"lendingpool/crypto"
	"lendingpool/native/lending"
	"lendingpool/observability"
	"lendingpool/oracle"
)

// LendingModule adapts the pool facade and its administrative surfaces to the
// JSON-RPC layer. Business errors are translated to ModuleError values with
// stable HTTP statuses so handlers never inspect sentinel errors themselves.
type LendingModule struct {
	facade   *lending.Facade
	engine   *lending.Engine
	oracle   *oracle.Oracle
	book     *lending.TokenBook
	adminCap crypto.AdminCap
	metrics  *observability.PoolMetrics
}

// NewLendingModule wires the module to the pool facade, the engine used for
// display reads and funding, the price oracle, and the token book backing the
// administrative faucet.
func NewLendingModule(facade *lending.Facade, engine *lending.Engine, priceOracle *oracle.Oracle, book *lending.TokenBook, adminCap crypto.AdminCap) *LendingModule {
	return &LendingModule{
		facade:   facade,
		engine:   engine,
		oracle:   priceOracle,
		book:     book,
		adminCap: adminCap,
		metrics:  observability.Pool(),
	}
}

func (m *LendingModule) moduleUnavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "lending module not available"}
}

func (m *LendingModule) wrapError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	status := http.StatusInternalServerError
	code := codeServerError
	switch {
	case errors.Is(err, lending.ErrInvalidAddress),
		errors.Is(err, lending.ErrInvalidAmount),
		errors.Is(err, lending.ErrInvalidInterestRateMode),
		errors.Is(err, lending.ErrInvalidConfig),
		errors.Is(err, oracle.ErrInvalidPrice),
		errors.Is(err, oracle.ErrInvalidAddress):
		status = http.StatusBadRequest
		code = codeInvalidParams
	case errors.Is(err, lending.ErrAssetNotSupported),
		errors.Is(err, oracle.ErrAssetNotSupported):
		status = http.StatusNotFound
		code = codeInvalidParams
	case errors.Is(err, lending.ErrDuplicateAsset),
		errors.Is(err, oracle.ErrDuplicateAsset),
		errors.Is(err, lending.ErrInsufficientSupply),
		errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrInsufficientLiquidity),
		errors.Is(err, lending.ErrNoOutstandingDebt),
		errors.Is(err, lending.ErrWithdrawalExceedsCollateral),
		errors.Is(err, lending.ErrTransferFailed):
		status = http.StatusConflict
		code = codeServerError
	case errors.Is(err, lending.ErrUnauthorized), errors.Is(err, oracle.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeUnauthorized
	case errors.Is(err, lending.ErrPoolNotInitialized):
		status = http.StatusServiceUnavailable
		code = codeServerError
	}
	return &ModuleError{HTTPStatus: status, Code: code, Message: err.Error()}
}

func (m *LendingModule) recordLiquidity(asset crypto.Address) {
	liquidity, err := m.engine.PoolLiquidity(asset)
	if err != nil {
		return
	}
	m.metrics.RecordLiquidity(asset.String(), liquidity)
}

// Supply credits onBehalfOf's supplied principal with funds pulled from the
// caller.
func (m *LendingModule) Supply(caller, asset crypto.Address, amount *big.Int, onBehalfOf crypto.Address) *ModuleError {
	if m == nil || m.facade == nil {
		return m.moduleUnavailable()
	}
	start := time.Now()
	err := m.facade.Supply(caller, asset, amount, onBehalfOf)
	m.metrics.Observe("supply", time.Since(start), err)
	if err != nil {
		return m.wrapError(err)
	}
	m.recordLiquidity(asset)
	return nil
}

// Withdraw releases supplied principal to the recipient, returning the amount
// withdrawn.
func (m *LendingModule) Withdraw(caller, asset crypto.Address, amount *big.Int, to crypto.Address) (*big.Int, *ModuleError) {
	if m == nil || m.facade == nil {
		return nil, m.moduleUnavailable()
	}
	start := time.Now()
	withdrawn, err := m.facade.Withdraw(caller, asset, amount, to)
	m.metrics.Observe("withdraw", time.Since(start), err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	m.recordLiquidity(asset)
	return withdrawn, nil
}

// Borrow draws down pool liquidity against the caller's collateral.
func (m *LendingModule) Borrow(caller, asset crypto.Address, amount *big.Int, mode lending.InterestRateMode, to crypto.Address) *ModuleError {
	if m == nil || m.facade == nil {
		return m.moduleUnavailable()
	}
	start := time.Now()
	err := m.facade.Borrow(caller, asset, amount, mode, to)
	m.metrics.Observe("borrow", time.Since(start), err)
	if err != nil {
		return m.wrapError(err)
	}
	m.recordLiquidity(asset)
	return nil
}

// Repay reduces onBehalfOf's debt, returning the amount actually settled.
func (m *LendingModule) Repay(caller, asset crypto.Address, amount *big.Int, mode lending.InterestRateMode, onBehalfOf crypto.Address) (*big.Int, *ModuleError) {
	if m == nil || m.facade == nil {
		return nil, m.moduleUnavailable()
	}
	start := time.Now()
	repaid, err := m.facade.Repay(caller, asset, amount, mode, onBehalfOf)
	m.metrics.Observe("repay", time.Since(start), err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	m.recordLiquidity(asset)
	return repaid, nil
}

// GetUserAccountData returns the aggregate account view.
func (m *LendingModule) GetUserAccountData(user crypto.Address) (*lending.AccountData, *ModuleError) {
	if m == nil || m.facade == nil {
		return nil, m.moduleUnavailable()
	}
	data, err := m.facade.GetUserAccountData(user)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return data, nil
}

// GetBorrowableAssets returns the borrowing-power breakdown.
func (m *LendingModule) GetBorrowableAssets(user crypto.Address) (*lending.BorrowingPower, *ModuleError) {
	if m == nil || m.facade == nil {
		return nil, m.moduleUnavailable()
	}
	power, err := m.facade.GetBorrowableAssets(user)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return power, nil
}

// GetUserSupply returns the supplied principal for a (user, asset) pair.
func (m *LendingModule) GetUserSupply(user, asset crypto.Address) (*big.Int, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	supplied, err := m.engine.UserSupply(user, asset)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return supplied, nil
}

// GetUserBorrow returns the outstanding borrowed principal for a (user,
// asset) pair.
func (m *LendingModule) GetUserBorrow(user, asset crypto.Address) (*big.Int, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	borrowed, err := m.engine.UserBorrow(user, asset)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return borrowed, nil
}

// AssetInfo is the per-asset listing detail served by SupportedAssets.
type AssetInfo struct {
	Asset                   crypto.Address
	Price                   *big.Int
	AssetDecimals           uint8
	LtvBps                  uint64
	LiquidationThresholdBps uint64
	Enabled                 bool
	Liquidity               *big.Int
}

// SupportedAssets lists every registered asset with its quote, risk
// parameters and pool liquidity, in listing order.
func (m *LendingModule) SupportedAssets() ([]AssetInfo, *ModuleError) {
	if m == nil || m.engine == nil || m.oracle == nil {
		return nil, m.moduleUnavailable()
	}
	registry := m.engine.Registry()
	infos := make([]AssetInfo, 0)
	for _, asset := range registry.Assets() {
		info := AssetInfo{Asset: asset}
		// Disabled assets stay visible with their stored risk parameters.
		if cfg, listed := registry.Listing(asset); listed {
			info.Enabled = cfg.Enabled
			info.LtvBps = cfg.LtvBps
			info.LiquidationThresholdBps = cfg.LiquidationThresholdBps
		}
		if price, decimals, err := m.oracle.GetPrice(asset); err == nil {
			info.Price = price
			info.AssetDecimals = decimals
		}
		if liquidity, err := m.engine.PoolLiquidity(asset); err == nil {
			info.Liquidity = liquidity
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// AddAsset registers an asset with the oracle and lists it in the collateral
// registry in one administrative step.
func (m *LendingModule) AddAsset(asset crypto.Address, price *big.Int, assetDecimals uint8, ltvBps, liquidationThresholdBps uint64) *ModuleError {
	if m == nil || m.engine == nil || m.oracle == nil {
		return m.moduleUnavailable()
	}
	if err := m.oracle.AddAsset(m.adminCap, asset, price, assetDecimals); err != nil {
		return m.wrapError(err)
	}
	if err := m.engine.Registry().AddAsset(m.adminCap, asset, ltvBps, liquidationThresholdBps); err != nil {
		return m.wrapError(err)
	}
	return nil
}

// SetPrice moves the oracle quote for a registered asset.
func (m *LendingModule) SetPrice(asset crypto.Address, price *big.Int) *ModuleError {
	if m == nil || m.oracle == nil {
		return m.moduleUnavailable()
	}
	if err := m.oracle.SetPrice(m.adminCap, asset, price); err != nil {
		return m.wrapError(err)
	}
	return nil
}

// SetAssetEnabled toggles an asset's participation.
func (m *LendingModule) SetAssetEnabled(asset crypto.Address, enabled bool) *ModuleError {
	if m == nil || m.engine == nil {
		return m.moduleUnavailable()
	}
	if err := m.engine.Registry().SetEnabled(m.adminCap, asset, enabled); err != nil {
		return m.wrapError(err)
	}
	return nil
}

// Mint issues tokens to an account through the administrative faucet so
// supplies and pool funding can be exercised without external token rails.
func (m *LendingModule) Mint(holder, asset crypto.Address, amount *big.Int) *ModuleError {
	if m == nil || m.book == nil {
		return m.moduleUnavailable()
	}
	if err := m.book.Faucet(m.adminCap, asset, holder, amount); err != nil {
		return m.wrapError(err)
	}
	return nil
}

// FundPool tops up the pool reserve for an asset.
func (m *LendingModule) FundPool(funder, asset crypto.Address, amount *big.Int) *ModuleError {
	if m == nil || m.engine == nil {
		return m.moduleUnavailable()
	}
	start := time.Now()
	err := m.engine.FundPool(m.adminCap, funder, asset, amount)
	m.metrics.Observe("fundPool", time.Since(start), err)
	if err != nil {
		return m.wrapError(err)
	}
	m.recordLiquidity(asset)
	return nil
}
