package lending

import (
	"errors"
	"math/big"
	"testing"

	"lendingpool/crypto"
)

func TestFacadeRejectsBeforeInitialize(t *testing.T) {
	facade := NewFacade()
	user := makeAddress(crypto.AccountPrefix, 0x10)
	asset := makeAddress(crypto.AssetPrefix, 0xA1)
	amount := big.NewInt(100)

	if err := facade.Supply(user, asset, amount, user); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("supply: expected ErrPoolNotInitialized, got %v", err)
	}
	if _, err := facade.Withdraw(user, asset, amount, user); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("withdraw: expected ErrPoolNotInitialized, got %v", err)
	}
	if err := facade.Borrow(user, asset, amount, InterestRateModeVariable, user); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("borrow: expected ErrPoolNotInitialized, got %v", err)
	}
	if _, err := facade.Repay(user, asset, amount, InterestRateModeVariable, user); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("repay: expected ErrPoolNotInitialized, got %v", err)
	}
	if _, err := facade.GetUserAccountData(user); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("account data: expected ErrPoolNotInitialized, got %v", err)
	}
	if _, err := facade.GetBorrowableAssets(user); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("borrowable assets: expected ErrPoolNotInitialized, got %v", err)
	}
}

func TestFacadeInitializeIsOneWay(t *testing.T) {
	env := newTestEnv(t)
	facade := NewFacade()

	if facade.Initialized() {
		t.Fatal("facade reports initialized before Initialize")
	}
	if err := facade.Initialize(nil); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("expected nil engine rejected, got %v", err)
	}
	if err := facade.Initialize(env.engine); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !facade.Initialized() {
		t.Fatal("facade not initialized after Initialize")
	}

	// A second engine must not displace the first.
	other := NewEngine(env.admin, env.registry, env.prices, env.book)
	other.SetState(newMockEngineState())
	if err := facade.Initialize(other); err != nil {
		t.Fatalf("second initialize: %v", err)
	}

	supplier := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, supplier, wei(1))
	if err := facade.Supply(supplier, env.weth, wei(1), supplier); err != nil {
		t.Fatalf("supply through facade: %v", err)
	}
	supplied, err := env.engine.UserSupply(supplier, env.weth)
	if err != nil {
		t.Fatalf("user supply: %v", err)
	}
	if supplied.Cmp(wei(1)) != 0 {
		t.Fatalf("expected supply landed on the first engine, got %s", supplied)
	}
}

func TestFacadeValidatesParties(t *testing.T) {
	env := newTestEnv(t)
	facade := NewFacade()
	if err := facade.Initialize(env.engine); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	user := makeAddress(crypto.AccountPrefix, 0x10)
	var zero crypto.Address

	if err := facade.Supply(zero, env.weth, wei(1), user); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero caller, got %v", err)
	}
	if err := facade.Supply(user, env.weth, wei(1), zero); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero beneficiary, got %v", err)
	}
	if _, err := facade.Withdraw(user, zero, wei(1), user); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero asset, got %v", err)
	}
	if err := facade.Supply(user, env.weth, nil, user); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil amount, got %v", err)
	}
	if _, err := facade.GetUserAccountData(zero); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero account, got %v", err)
	}
}
