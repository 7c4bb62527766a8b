package lending

import (
	"math/big"
	"sync"

	"lendingpool/crypto"
)

// Facade fronts the engine with input sanitation and the initialization gate.
// It performs no arithmetic and owns no ledger state: callers go through it so
// parameter validation and the one-way Uninitialized -> Initialized lifecycle
// live in exactly one place.
type Facade struct {
	mu   sync.RWMutex
	pool *Engine
}

// NewFacade constructs an uninitialized facade. Every operation fails with
// ErrPoolNotInitialized until Initialize is called.
func NewFacade() *Facade {
	return &Facade{}
}

// Initialize wires the pool engine. The transition is one-way: once
// initialized the reference never changes and cannot be cleared.
func (f *Facade) Initialize(pool *Engine) error {
	if f == nil {
		return errNilState
	}
	if pool == nil {
		return ErrPoolNotInitialized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pool == nil {
		f.pool = pool
	}
	return nil
}

// Initialized reports whether the pool reference has been configured.
func (f *Facade) Initialized() bool {
	if f == nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pool != nil
}

func (f *Facade) engine() (*Engine, error) {
	if f == nil {
		return nil, errNilState
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.pool == nil {
		return nil, ErrPoolNotInitialized
	}
	return f.pool, nil
}

func validateParties(addrs ...crypto.Address) error {
	for _, addr := range addrs {
		if addr.IsZero() {
			return ErrInvalidAddress
		}
	}
	return nil
}

// Supply validates and forwards a supply call.
func (f *Facade) Supply(caller, asset crypto.Address, amount *big.Int, onBehalfOf crypto.Address) error {
	pool, err := f.engine()
	if err != nil {
		return err
	}
	if err := validateParties(caller, asset, onBehalfOf); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	return pool.Supply(caller, asset, amount, onBehalfOf)
}

// Withdraw validates and forwards a withdraw call, returning the amount
// actually withdrawn.
func (f *Facade) Withdraw(caller, asset crypto.Address, amount *big.Int, to crypto.Address) (*big.Int, error) {
	pool, err := f.engine()
	if err != nil {
		return nil, err
	}
	if err := validateParties(caller, asset, to); err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	return pool.Withdraw(caller, asset, amount, to)
}

// Borrow validates and forwards a borrow call.
func (f *Facade) Borrow(caller, asset crypto.Address, amount *big.Int, mode InterestRateMode, to crypto.Address) error {
	pool, err := f.engine()
	if err != nil {
		return err
	}
	if err := validateParties(caller, asset, to); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	return pool.Borrow(caller, asset, amount, mode, to)
}

// Repay validates and forwards a repay call. The "repay everything" sentinel
// is clamped to the outstanding debt inside the executor, so the unbounded
// request value never travels further than this boundary.
func (f *Facade) Repay(caller, asset crypto.Address, amount *big.Int, mode InterestRateMode, onBehalfOf crypto.Address) (*big.Int, error) {
	pool, err := f.engine()
	if err != nil {
		return nil, err
	}
	if err := validateParties(caller, asset, onBehalfOf); err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	return pool.Repay(caller, asset, amount, mode, onBehalfOf)
}

// GetUserAccountData forwards the aggregate account view.
func (f *Facade) GetUserAccountData(user crypto.Address) (*AccountData, error) {
	pool, err := f.engine()
	if err != nil {
		return nil, err
	}
	if err := validateParties(user); err != nil {
		return nil, err
	}
	return pool.AccountData(user)
}

// GetBorrowableAssets forwards the borrowing-power view.
func (f *Facade) GetBorrowableAssets(user crypto.Address) (*BorrowingPower, error) {
	pool, err := f.engine()
	if err != nil {
		return nil, err
	}
	if err := validateParties(user); err != nil {
		return nil, err
	}
	return pool.BorrowableAssets(user)
}
