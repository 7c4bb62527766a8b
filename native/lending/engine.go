package lending

import (
	"fmt"
	"math/big"
	"sync"

	"lendingpool/core/events"
	"lendingpool/crypto"
)

// engineState is the persistence boundary for the ledger: per-user, per-asset
// principal positions plus per-asset pool liquidity. Implementations must
// return nil (not an error) for absent positions.
type engineState interface {
	GetPosition(user, asset crypto.Address) (*UserPosition, error)
	PutPosition(pos *UserPosition) error
	GetLiquidity(asset crypto.Address) (*big.Int, error)
	PutLiquidity(asset crypto.Address, amount *big.Int) error
}

// Engine orchestrates the four state transitions of the pool: supply,
// withdraw, borrow and repay. Every mutating call executes under a single
// write lock so no operation can observe a torn ledger; display reads share a
// read lock and therefore see consistent snapshots. Validation and capacity
// checks all run before the first ledger write.
type Engine struct {
	mu        sync.RWMutex
	state     engineState
	registry  *Registry
	prices    PriceSource
	transfers TransferBackend
	emitter   events.Emitter
	admin     crypto.Address
}

// NewEngine constructs an engine over the given risk registry, price source
// and value-transfer backend. The admin address gates reserve funding.
func NewEngine(admin crypto.Address, registry *Registry, prices PriceSource, transfers TransferBackend) *Engine {
	return &Engine{
		registry:  registry,
		prices:    prices,
		transfers: transfers,
		emitter:   events.NoopEmitter{},
		admin:     admin,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

// SetEmitter wires the success-event sink. A nil emitter restores the no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.registry == nil || e.prices == nil || e.transfers == nil {
		return errNilState
	}
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e *Engine) ensurePosition(user, asset crypto.Address) (*UserPosition, error) {
	pos, err := e.state.GetPosition(user, asset)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &UserPosition{User: user, Asset: asset}
	}
	if pos.Supplied == nil {
		pos.Supplied = big.NewInt(0)
	}
	if pos.Borrowed == nil {
		pos.Borrowed = big.NewInt(0)
	}
	return pos, nil
}

func (e *Engine) liquidity(asset crypto.Address) (*big.Int, error) {
	amount, err := e.state.GetLiquidity(asset)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(amount), nil
}

// requireListed enforces referential consistency: an operation may only touch
// an asset that is enabled in the registry and priced by the oracle.
func (e *Engine) requireListed(asset crypto.Address) (CollateralConfig, *big.Int, uint8, error) {
	cfg, err := e.registry.Config(asset)
	if err != nil {
		return CollateralConfig{}, nil, 0, err
	}
	price, decimals, err := e.prices.GetPrice(asset)
	if err != nil {
		return CollateralConfig{}, nil, 0, fmt.Errorf("%w: %s", ErrAssetNotSupported, asset.String())
	}
	return cfg, price, decimals, nil
}

// Supply pulls amount of asset from the caller into the pool and credits the
// supplied principal of onBehalfOf.
func (e *Engine) Supply(caller, asset crypto.Address, amount *big.Int, onBehalfOf crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller.IsZero() || asset.IsZero() || onBehalfOf.IsZero() {
		return ErrInvalidAddress
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, _, _, err := e.requireListed(asset); err != nil {
		return err
	}
	pos, err := e.ensurePosition(onBehalfOf, asset)
	if err != nil {
		return err
	}
	liquidity, err := e.liquidity(asset)
	if err != nil {
		return err
	}

	if err := e.transfers.Pull(asset, caller, amount); err != nil {
		return err
	}

	pos.Supplied = new(big.Int).Add(pos.Supplied, amount)
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutLiquidity(asset, new(big.Int).Add(liquidity, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingSupplied{User: onBehalfOf, Asset: asset, Amount: amount})
	return nil
}

// Withdraw releases supplied principal back to the recipient. The withdrawal
// is rejected when it exceeds the caller's supplied balance, when the pool
// lacks the liquidity, or when removing the collateral would leave the
// caller's outstanding debt uncovered. Returns the amount withdrawn.
func (e *Engine) Withdraw(caller, asset crypto.Address, amount *big.Int, to crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller.IsZero() || asset.IsZero() || to.IsZero() {
		return nil, ErrInvalidAddress
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.ensurePosition(caller, asset)
	if err != nil {
		return nil, err
	}
	if pos.Supplied.Cmp(amount) < 0 {
		return nil, ErrInsufficientSupply
	}
	liquidity, err := e.liquidity(asset)
	if err != nil {
		return nil, err
	}
	if liquidity.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	// Recompute capacity as if the withdrawal already happened; the remaining
	// collateral must still cover the debt.
	projected, err := e.computePower(caller, &powerAdjustment{asset: asset, amount: amount})
	if err != nil {
		return nil, err
	}
	if projected.MaxBorrowValue.Cmp(projected.TotalDebtValue) < 0 {
		return nil, ErrWithdrawalExceedsCollateral
	}

	if err := e.transfers.Push(asset, to, amount); err != nil {
		return nil, err
	}

	pos.Supplied = new(big.Int).Sub(pos.Supplied, amount)
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutLiquidity(asset, new(big.Int).Sub(liquidity, amount)); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.LendingWithdrawn{User: caller, Asset: asset, Amount: amount, To: to})
	return new(big.Int).Set(amount), nil
}

// Borrow draws down pool liquidity against the caller's collateral. The
// collateral-capacity check runs before the liquidity check so a request
// above capacity fails with ErrInsufficientCollateral regardless of how much
// the pool holds.
func (e *Engine) Borrow(caller, asset crypto.Address, amount *big.Int, mode InterestRateMode, to crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !mode.Valid() {
		return ErrInvalidInterestRateMode
	}
	if caller.IsZero() || asset.IsZero() || to.IsZero() {
		return ErrInvalidAddress
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, price, decimals, err := e.requireListed(asset)
	if err != nil {
		return err
	}

	power, err := e.computePower(caller, nil)
	if err != nil {
		return err
	}
	maxByCollateral := amountFromBase(power.AvailableBorrowValue, price, decimals)
	if amount.Cmp(maxByCollateral) > 0 {
		return ErrInsufficientCollateral
	}

	liquidity, err := e.liquidity(asset)
	if err != nil {
		return err
	}
	if liquidity.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}

	pos, err := e.ensurePosition(caller, asset)
	if err != nil {
		return err
	}

	if err := e.transfers.Push(asset, to, amount); err != nil {
		return err
	}

	pos.Borrowed = new(big.Int).Add(pos.Borrowed, amount)
	pos.RateMode = mode
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutLiquidity(asset, new(big.Int).Sub(liquidity, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingBorrowed{User: caller, Asset: asset, Amount: amount, Mode: mode.String()})
	return nil
}

// Repay pulls funds from the caller to reduce onBehalfOf's outstanding debt.
// The requested amount is resolved to min(requested, borrowed) before the
// transfer, so passing MaxRepayAmount clears the debt exactly and the caller
// is never charged more than what is owed. Returns the resolved amount.
func (e *Engine) Repay(caller, asset crypto.Address, amount *big.Int, mode InterestRateMode, onBehalfOf crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !mode.Valid() {
		return nil, ErrInvalidInterestRateMode
	}
	if caller.IsZero() || asset.IsZero() || onBehalfOf.IsZero() {
		return nil, ErrInvalidAddress
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.ensurePosition(onBehalfOf, asset)
	if err != nil {
		return nil, err
	}
	if pos.Borrowed.Sign() == 0 {
		return nil, ErrNoOutstandingDebt
	}

	resolved := new(big.Int).Set(amount)
	if resolved.Cmp(pos.Borrowed) > 0 {
		resolved.Set(pos.Borrowed)
	}

	liquidity, err := e.liquidity(asset)
	if err != nil {
		return nil, err
	}

	if err := e.transfers.Pull(asset, caller, resolved); err != nil {
		return nil, err
	}

	pos.Borrowed = new(big.Int).Sub(pos.Borrowed, resolved)
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutLiquidity(asset, new(big.Int).Add(liquidity, resolved)); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.LendingRepaid{User: onBehalfOf, Asset: asset, Amount: resolved, Mode: mode.String()})
	return resolved, nil
}

// FundPool tops up the pool's reserve for an asset from an external funder.
// The liquidity increase is not attributed to any user position.
func (e *Engine) FundPool(cap crypto.AdminCap, funder, asset crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !cap.Authorizes(e.admin) {
		return ErrUnauthorized
	}
	if funder.IsZero() || asset.IsZero() {
		return ErrInvalidAddress
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, _, _, err := e.requireListed(asset); err != nil {
		return err
	}
	liquidity, err := e.liquidity(asset)
	if err != nil {
		return err
	}

	if err := e.transfers.Pull(asset, funder, amount); err != nil {
		return err
	}

	if err := e.state.PutLiquidity(asset, new(big.Int).Add(liquidity, amount)); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingPoolFunded{Funder: funder, Asset: asset, Amount: amount})
	return nil
}

// AccountData serves the aggregate account view from a consistent snapshot.
func (e *Engine) AccountData(user crypto.Address) (*AccountData, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if user.IsZero() {
		return nil, ErrInvalidAddress
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.accountData(user)
}

// BorrowableAssets reports the user's borrowing power including the
// per-asset maximum borrowable amounts.
func (e *Engine) BorrowableAssets(user crypto.Address) (*BorrowingPower, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if user.IsZero() {
		return nil, ErrInvalidAddress
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.computePower(user, nil)
}

// UserSupply returns the supplied principal for a (user, asset) pair.
func (e *Engine) UserSupply(user, asset crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if user.IsZero() || asset.IsZero() {
		return nil, ErrInvalidAddress
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	pos, err := e.ensurePosition(user, asset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pos.Supplied), nil
}

// UserBorrow returns the outstanding borrowed principal for a (user, asset)
// pair.
func (e *Engine) UserBorrow(user, asset crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if user.IsZero() || asset.IsZero() {
		return nil, ErrInvalidAddress
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	pos, err := e.ensurePosition(user, asset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pos.Borrowed), nil
}

// PoolLiquidity returns the available pool liquidity for an asset.
func (e *Engine) PoolLiquidity(asset crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.liquidity(asset)
}

// Registry exposes the collateral registry for read access by callers that
// need the listed-asset order.
func (e *Engine) Registry() *Registry {
	if e == nil {
		return nil
	}
	return e.registry
}
