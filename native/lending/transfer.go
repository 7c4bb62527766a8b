package lending

import (
	"errors"
	"math/big"
	"sync"

	"lendingpool/crypto"
)

// ErrTransferFailed wraps failures reported by the value-transfer backend.
var ErrTransferFailed = errors.New("lending: value transfer failed")

// TransferBackend is the atomic value-transfer primitive the executor calls.
// A transfer either fully succeeds before the ledger commits or the whole
// operation is rejected; the backend must not partially apply.
type TransferBackend interface {
	// Pull moves amount of asset from the holder into the pool account.
	Pull(asset, from crypto.Address, amount *big.Int) error
	// Push moves amount of asset from the pool account to the recipient.
	Push(asset, to crypto.Address, amount *big.Int) error
}

// TokenBook is an in-process TransferBackend keeping per-asset, per-holder
// token balances. It stands in for external token rails in the daemon and in
// tests; Faucet is the capability-gated issuance entry point.
type TokenBook struct {
	mu       sync.Mutex
	poolAddr crypto.Address
	balances map[[crypto.AddressLength]byte]map[[crypto.AddressLength]byte]*big.Int
}

// NewTokenBook constructs a token book whose pool side is held by poolAddr.
func NewTokenBook(poolAddr crypto.Address) *TokenBook {
	return &TokenBook{
		poolAddr: poolAddr,
		balances: make(map[[crypto.AddressLength]byte]map[[crypto.AddressLength]byte]*big.Int),
	}
}

func (b *TokenBook) balanceLocked(asset, holder crypto.Address) *big.Int {
	holders, ok := b.balances[assetKey(asset)]
	if !ok {
		return nil
	}
	return holders[assetKey(holder)]
}

func (b *TokenBook) creditLocked(asset, holder crypto.Address, amount *big.Int) {
	key := assetKey(asset)
	holders, ok := b.balances[key]
	if !ok {
		holders = make(map[[crypto.AddressLength]byte]*big.Int)
		b.balances[key] = holders
	}
	current := holders[assetKey(holder)]
	if current == nil {
		current = big.NewInt(0)
	}
	holders[assetKey(holder)] = new(big.Int).Add(current, amount)
}

func (b *TokenBook) debitLocked(asset, holder crypto.Address, amount *big.Int) error {
	current := b.balanceLocked(asset, holder)
	if current == nil || current.Cmp(amount) < 0 {
		return ErrTransferFailed
	}
	b.balances[assetKey(asset)][assetKey(holder)] = new(big.Int).Sub(current, amount)
	return nil
}

// Mint credits freshly issued tokens to the holder.
func (b *TokenBook) Mint(asset, holder crypto.Address, amount *big.Int) {
	if b == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	b.mu.Lock()
	b.creditLocked(asset, holder, amount)
	b.mu.Unlock()
}

// Faucet is the administrative issuance entry point: it credits tokens to a
// holder so accounts can be funded without external rails. Only the
// capability bound to the pool operator may issue.
func (b *TokenBook) Faucet(cap crypto.AdminCap, asset, holder crypto.Address, amount *big.Int) error {
	if b == nil {
		return ErrTransferFailed
	}
	if !cap.Authorizes(b.poolAddr) {
		return ErrUnauthorized
	}
	if asset.IsZero() || holder.IsZero() {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	b.creditLocked(asset, holder, amount)
	b.mu.Unlock()
	return nil
}

// BalanceOf reports the holder's token balance for the asset.
func (b *TokenBook) BalanceOf(asset, holder crypto.Address) *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.balanceLocked(asset, holder)
	if current == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(current)
}

// Pull implements TransferBackend.
func (b *TokenBook) Pull(asset, from crypto.Address, amount *big.Int) error {
	if b == nil {
		return ErrTransferFailed
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.debitLocked(asset, from, amount); err != nil {
		return err
	}
	b.creditLocked(asset, b.poolAddr, amount)
	return nil
}

// Push implements TransferBackend.
func (b *TokenBook) Push(asset, to crypto.Address, amount *big.Int) error {
	if b == nil {
		return ErrTransferFailed
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.debitLocked(asset, b.poolAddr, amount); err != nil {
		return err
	}
	b.creditLocked(asset, to, amount)
	return nil
}
