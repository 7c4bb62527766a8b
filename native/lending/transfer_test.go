package lending

import (
	"errors"
	"math/big"
	"testing"

	"lendingpool/crypto"
)

func TestTokenBookPullPushConservation(t *testing.T) {
	pool := makeAddress(crypto.AccountPrefix, 0x01)
	book := NewTokenBook(pool)
	asset := makeAddress(crypto.AssetPrefix, 0xA1)
	holder := makeAddress(crypto.AccountPrefix, 0x10)
	recipient := makeAddress(crypto.AccountPrefix, 0x11)

	book.Mint(asset, holder, big.NewInt(1000))

	if err := book.Pull(asset, holder, big.NewInt(400)); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if got := book.BalanceOf(asset, holder); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("holder balance after pull: %s", got)
	}
	if got := book.BalanceOf(asset, pool); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("pool balance after pull: %s", got)
	}

	if err := book.Push(asset, recipient, big.NewInt(150)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got := book.BalanceOf(asset, recipient); got.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("recipient balance after push: %s", got)
	}
	if got := book.BalanceOf(asset, pool); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("pool balance after push: %s", got)
	}

	total := new(big.Int)
	for _, addr := range []crypto.Address{holder, recipient, pool} {
		total.Add(total, book.BalanceOf(asset, addr))
	}
	if total.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("token supply not conserved: %s", total)
	}
}

func TestTokenBookInsufficientBalance(t *testing.T) {
	pool := makeAddress(crypto.AccountPrefix, 0x01)
	book := NewTokenBook(pool)
	asset := makeAddress(crypto.AssetPrefix, 0xA1)
	holder := makeAddress(crypto.AccountPrefix, 0x10)

	book.Mint(asset, holder, big.NewInt(100))

	if err := book.Pull(asset, holder, big.NewInt(101)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed pulling above balance, got %v", err)
	}
	if got := book.BalanceOf(asset, holder); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed pull mutated balance: %s", got)
	}
	if err := book.Push(asset, holder, big.NewInt(1)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed pushing from empty pool, got %v", err)
	}
}

func TestTokenBookFaucetRequiresCapability(t *testing.T) {
	pool := makeAddress(crypto.AccountPrefix, 0x01)
	book := NewTokenBook(pool)
	asset := makeAddress(crypto.AssetPrefix, 0xA1)
	holder := makeAddress(crypto.AccountPrefix, 0x10)

	stranger := crypto.NewAdminCap(makeAddress(crypto.AccountPrefix, 0x77))
	if err := book.Faucet(stranger, asset, holder, big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger capability, got %v", err)
	}
	if got := book.BalanceOf(asset, holder); got.Sign() != 0 {
		t.Fatalf("unauthorized faucet credited balance: %s", got)
	}

	operator := crypto.NewAdminCap(pool)
	if err := book.Faucet(operator, asset, crypto.Address{}, big.NewInt(100)); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero holder, got %v", err)
	}
	if err := book.Faucet(operator, asset, holder, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}

	if err := book.Faucet(operator, asset, holder, big.NewInt(250)); err != nil {
		t.Fatalf("faucet: %v", err)
	}
	if got := book.BalanceOf(asset, holder); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("faucet balance mismatch: %s", got)
	}
	if err := book.Pull(asset, holder, big.NewInt(250)); err != nil {
		t.Fatalf("pull of issued funds: %v", err)
	}
}

func TestTokenBookRejectsInvalidAmounts(t *testing.T) {
	pool := makeAddress(crypto.AccountPrefix, 0x01)
	book := NewTokenBook(pool)
	asset := makeAddress(crypto.AssetPrefix, 0xA1)
	holder := makeAddress(crypto.AccountPrefix, 0x10)

	if err := book.Pull(asset, holder, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero pull, got %v", err)
	}
	if err := book.Push(asset, holder, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative push, got %v", err)
	}
	book.Mint(asset, holder, big.NewInt(-10))
	if got := book.BalanceOf(asset, holder); got.Sign() != 0 {
		t.Fatalf("negative mint credited balance: %s", got)
	}
}
