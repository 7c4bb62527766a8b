package lending

import (
	"errors"
	"math/big"
	"testing"

	"lendingpool/crypto"
)

type mockEngineState struct {
	positions map[string]*UserPosition
	liquidity map[string]*big.Int
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		positions: make(map[string]*UserPosition),
		liquidity: make(map[string]*big.Int),
	}
}

func (m *mockEngineState) posKey(user, asset crypto.Address) string {
	return string(user.Bytes()) + "/" + string(asset.Bytes())
}

func (m *mockEngineState) GetPosition(user, asset crypto.Address) (*UserPosition, error) {
	return m.positions[m.posKey(user, asset)].Clone(), nil
}

func (m *mockEngineState) PutPosition(pos *UserPosition) error {
	m.positions[m.posKey(pos.User, pos.Asset)] = pos.Clone()
	return nil
}

func (m *mockEngineState) GetLiquidity(asset crypto.Address) (*big.Int, error) {
	stored := m.liquidity[string(asset.Bytes())]
	if stored == nil {
		return nil, nil
	}
	return new(big.Int).Set(stored), nil
}

func (m *mockEngineState) PutLiquidity(asset crypto.Address, amount *big.Int) error {
	m.liquidity[string(asset.Bytes())] = new(big.Int).Set(amount)
	return nil
}

type priceEntry struct {
	price    *big.Int
	decimals uint8
}

type mockPriceSource struct {
	entries map[string]priceEntry
}

func newMockPriceSource() *mockPriceSource {
	return &mockPriceSource{entries: make(map[string]priceEntry)}
}

func (m *mockPriceSource) set(asset crypto.Address, price int64, decimals uint8) {
	m.entries[string(asset.Bytes())] = priceEntry{price: big.NewInt(price), decimals: decimals}
}

func (m *mockPriceSource) GetPrice(asset crypto.Address) (*big.Int, uint8, error) {
	entry, ok := m.entries[string(asset.Bytes())]
	if !ok {
		return nil, 0, errors.New("price not found")
	}
	return new(big.Int).Set(entry.price), entry.decimals, nil
}

func makeAddress(prefix crypto.AddressPrefix, suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(prefix, raw)
}

type testEnv struct {
	admin    crypto.Address
	adminCap crypto.AdminCap
	registry *Registry
	prices   *mockPriceSource
	book     *TokenBook
	state    *mockEngineState
	engine   *Engine

	weth crypto.Address
	usdc crypto.Address
}

// Prices follow the 8-decimal convention: WETH at $2000 with LTV 75% /
// threshold 80%, USDC at $1 with LTV 80% / threshold 85%.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	admin := makeAddress(crypto.AccountPrefix, 0x01)
	env := &testEnv{
		admin:    admin,
		adminCap: crypto.NewAdminCap(admin),
		registry: NewRegistry(admin),
		prices:   newMockPriceSource(),
		book:     NewTokenBook(admin),
		state:    newMockEngineState(),
		weth:     makeAddress(crypto.AssetPrefix, 0xE1),
		usdc:     makeAddress(crypto.AssetPrefix, 0xE2),
	}
	env.engine = NewEngine(admin, env.registry, env.prices, env.book)
	env.engine.SetState(env.state)

	env.listAsset(t, env.weth, 2000_0000_0000, 18, 7500, 8000)
	env.listAsset(t, env.usdc, 1_0000_0000, 6, 8000, 8500)
	return env
}

func (env *testEnv) listAsset(t *testing.T, asset crypto.Address, price int64, decimals uint8, ltvBps, thresholdBps uint64) {
	t.Helper()
	env.prices.set(asset, price, decimals)
	if err := env.registry.AddAsset(env.adminCap, asset, ltvBps, thresholdBps); err != nil {
		t.Fatalf("list asset: %v", err)
	}
}

func (env *testEnv) fund(t *testing.T, asset crypto.Address, amount *big.Int) {
	t.Helper()
	funder := makeAddress(crypto.AccountPrefix, 0xF0)
	env.book.Mint(asset, funder, amount)
	if err := env.engine.FundPool(env.adminCap, funder, asset, amount); err != nil {
		t.Fatalf("fund pool: %v", err)
	}
}

func wei(eth int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(eth), big.NewInt(1_000_000_000_000_000_000))
}

func usdcUnits(dollars int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(dollars), big.NewInt(1_000_000))
}

func TestSupplyCreditsPositionAndLiquidity(t *testing.T) {
	env := newTestEnv(t)
	supplier := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, supplier, wei(2))

	if err := env.engine.Supply(supplier, env.weth, wei(1), supplier); err != nil {
		t.Fatalf("supply: %v", err)
	}

	supplied, err := env.engine.UserSupply(supplier, env.weth)
	if err != nil {
		t.Fatalf("user supply: %v", err)
	}
	if supplied.Cmp(wei(1)) != 0 {
		t.Fatalf("expected supplied 1 WETH, got %s", supplied)
	}
	liquidity, err := env.engine.PoolLiquidity(env.weth)
	if err != nil {
		t.Fatalf("pool liquidity: %v", err)
	}
	if liquidity.Cmp(wei(1)) != 0 {
		t.Fatalf("expected liquidity 1 WETH, got %s", liquidity)
	}
	if balance := env.book.BalanceOf(env.weth, supplier); balance.Cmp(wei(1)) != 0 {
		t.Fatalf("expected supplier token balance 1 WETH, got %s", balance)
	}
}

func TestSupplyUnlistedAssetRejected(t *testing.T) {
	env := newTestEnv(t)
	supplier := makeAddress(crypto.AccountPrefix, 0x10)
	unknown := makeAddress(crypto.AssetPrefix, 0x99)
	env.book.Mint(unknown, supplier, big.NewInt(100))

	err := env.engine.Supply(supplier, unknown, big.NewInt(100), supplier)
	if !errors.Is(err, ErrAssetNotSupported) {
		t.Fatalf("expected ErrAssetNotSupported, got %v", err)
	}
}

func TestSupplyRejectsInvalidAmount(t *testing.T) {
	env := newTestEnv(t)
	supplier := makeAddress(crypto.AccountPrefix, 0x10)
	if err := env.engine.Supply(supplier, env.weth, big.NewInt(0), supplier); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := env.engine.Supply(supplier, env.weth, big.NewInt(-5), supplier); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestWithdrawRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	supplier := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, supplier, wei(1))

	if err := env.engine.Supply(supplier, env.weth, wei(1), supplier); err != nil {
		t.Fatalf("supply: %v", err)
	}
	withdrawn, err := env.engine.Withdraw(supplier, env.weth, wei(1), supplier)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn.Cmp(wei(1)) != 0 {
		t.Fatalf("expected withdrawn 1 WETH, got %s", withdrawn)
	}
	if balance := env.book.BalanceOf(env.weth, supplier); balance.Cmp(wei(1)) != 0 {
		t.Fatalf("expected full token balance back, got %s", balance)
	}
	liquidity, _ := env.engine.PoolLiquidity(env.weth)
	if liquidity.Sign() != 0 {
		t.Fatalf("expected liquidity drained, got %s", liquidity)
	}
}

func TestWithdrawInsufficientSupplyNoMutation(t *testing.T) {
	env := newTestEnv(t)
	supplier := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, supplier, wei(1))
	if err := env.engine.Supply(supplier, env.weth, wei(1), supplier); err != nil {
		t.Fatalf("supply: %v", err)
	}

	_, err := env.engine.Withdraw(supplier, env.weth, wei(2), supplier)
	if !errors.Is(err, ErrInsufficientSupply) {
		t.Fatalf("expected ErrInsufficientSupply, got %v", err)
	}
	supplied, _ := env.engine.UserSupply(supplier, env.weth)
	if supplied.Cmp(wei(1)) != 0 {
		t.Fatalf("expected supplied unchanged, got %s", supplied)
	}
}

func TestBorrowAgainstCollateral(t *testing.T) {
	env := newTestEnv(t)
	borrower := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, borrower, wei(1))

	if err := env.engine.Supply(borrower, env.weth, wei(1), borrower); err != nil {
		t.Fatalf("supply: %v", err)
	}
	env.fund(t, env.usdc, usdcUnits(2000))

	// 1 WETH at $2000 with 75% LTV grants $1500 of capacity.
	if err := env.engine.Borrow(borrower, env.usdc, usdcUnits(1000), InterestRateModeVariable, borrower); err != nil {
		t.Fatalf("borrow 1000 USDC: %v", err)
	}
	if balance := env.book.BalanceOf(env.usdc, borrower); balance.Cmp(usdcUnits(1000)) != 0 {
		t.Fatalf("expected 1000 USDC delivered, got %s", balance)
	}

	err := env.engine.Borrow(borrower, env.usdc, usdcUnits(600), InterestRateModeVariable, borrower)
	if !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestBorrowWithoutCollateral(t *testing.T) {
	env := newTestEnv(t)
	borrower := makeAddress(crypto.AccountPrefix, 0x10)
	env.fund(t, env.usdc, usdcUnits(2000))

	err := env.engine.Borrow(borrower, env.usdc, usdcUnits(1), InterestRateModeVariable, borrower)
	if !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestBorrowLiquidityBound(t *testing.T) {
	env := newTestEnv(t)
	borrower := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, borrower, wei(1))
	if err := env.engine.Supply(borrower, env.weth, wei(1), borrower); err != nil {
		t.Fatalf("supply: %v", err)
	}
	env.fund(t, env.usdc, usdcUnits(500))

	// Capacity covers $1500 but the pool only holds 500 USDC.
	err := env.engine.Borrow(borrower, env.usdc, usdcUnits(1000), InterestRateModeVariable, borrower)
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestBorrowInvalidRateMode(t *testing.T) {
	env := newTestEnv(t)
	borrower := makeAddress(crypto.AccountPrefix, 0x10)
	err := env.engine.Borrow(borrower, env.usdc, usdcUnits(1), InterestRateMode(3), borrower)
	if !errors.Is(err, ErrInvalidInterestRateMode) {
		t.Fatalf("expected ErrInvalidInterestRateMode, got %v", err)
	}
}

func TestWithdrawExceedsCollateralBlocked(t *testing.T) {
	env := newTestEnv(t)
	borrower := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, borrower, wei(1))
	if err := env.engine.Supply(borrower, env.weth, wei(1), borrower); err != nil {
		t.Fatalf("supply: %v", err)
	}
	env.fund(t, env.usdc, usdcUnits(2000))
	if err := env.engine.Borrow(borrower, env.usdc, usdcUnits(1000), InterestRateModeVariable, borrower); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// Dropping to 0.1 WETH would leave $150 of capacity against $1000 debt.
	ninetyPercent := new(big.Int).Mul(big.NewInt(9), new(big.Int).Quo(wei(1), big.NewInt(10)))
	_, err := env.engine.Withdraw(borrower, env.weth, ninetyPercent, borrower)
	if !errors.Is(err, ErrWithdrawalExceedsCollateral) {
		t.Fatalf("expected ErrWithdrawalExceedsCollateral, got %v", err)
	}

	// Dropping to 0.8 WETH keeps $1200 of capacity, still above the debt.
	twentyPercent := new(big.Int).Quo(wei(1), big.NewInt(5))
	if _, err := env.engine.Withdraw(borrower, env.weth, twentyPercent, borrower); err != nil {
		t.Fatalf("withdraw within capacity: %v", err)
	}
}

func TestRepayPartial(t *testing.T) {
	env := newTestEnv(t)
	borrower := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, borrower, wei(1))
	if err := env.engine.Supply(borrower, env.weth, wei(1), borrower); err != nil {
		t.Fatalf("supply: %v", err)
	}
	env.fund(t, env.usdc, usdcUnits(2000))
	if err := env.engine.Borrow(borrower, env.usdc, usdcUnits(1000), InterestRateModeVariable, borrower); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	repaid, err := env.engine.Repay(borrower, env.usdc, usdcUnits(400), InterestRateModeVariable, borrower)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid.Cmp(usdcUnits(400)) != 0 {
		t.Fatalf("expected repaid 400 USDC, got %s", repaid)
	}
	borrowed, _ := env.engine.UserBorrow(borrower, env.usdc)
	if borrowed.Cmp(usdcUnits(600)) != 0 {
		t.Fatalf("expected 600 USDC outstanding, got %s", borrowed)
	}
}

func TestRepayMaxSentinelClearsDebt(t *testing.T) {
	env := newTestEnv(t)
	borrower := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, borrower, wei(1))
	if err := env.engine.Supply(borrower, env.weth, wei(1), borrower); err != nil {
		t.Fatalf("supply: %v", err)
	}
	env.fund(t, env.usdc, usdcUnits(2000))
	if err := env.engine.Borrow(borrower, env.usdc, usdcUnits(1000), InterestRateModeVariable, borrower); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	repaid, err := env.engine.Repay(borrower, env.usdc, new(big.Int).Set(MaxRepayAmount), InterestRateModeVariable, borrower)
	if err != nil {
		t.Fatalf("repay max: %v", err)
	}
	if repaid.Cmp(usdcUnits(1000)) != 0 {
		t.Fatalf("expected repaid 1000 USDC, got %s", repaid)
	}
	borrowed, _ := env.engine.UserBorrow(borrower, env.usdc)
	if borrowed.Sign() != 0 {
		t.Fatalf("expected debt cleared, got %s", borrowed)
	}
	if balance := env.book.BalanceOf(env.usdc, borrower); balance.Sign() != 0 {
		t.Fatalf("expected caller charged exactly the debt, balance %s", balance)
	}

	_, err = env.engine.Repay(borrower, env.usdc, usdcUnits(1), InterestRateModeVariable, borrower)
	if !errors.Is(err, ErrNoOutstandingDebt) {
		t.Fatalf("expected ErrNoOutstandingDebt, got %v", err)
	}
}

func TestFundPoolRequiresCapability(t *testing.T) {
	env := newTestEnv(t)
	stranger := makeAddress(crypto.AccountPrefix, 0x77)
	strangerCap := crypto.NewAdminCap(stranger)
	env.book.Mint(env.usdc, stranger, usdcUnits(100))

	err := env.engine.FundPool(strangerCap, stranger, env.usdc, usdcUnits(100))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAccountDataHealthFactor(t *testing.T) {
	env := newTestEnv(t)
	user := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, user, wei(1))
	if err := env.engine.Supply(user, env.weth, wei(1), user); err != nil {
		t.Fatalf("supply: %v", err)
	}

	data, err := env.engine.AccountData(user)
	if err != nil {
		t.Fatalf("account data: %v", err)
	}
	if data.HealthFactor.Cmp(MaxHealthFactor) != 0 {
		t.Fatalf("expected max health factor with no debt, got %s", data.HealthFactor)
	}
	if data.Ltv != 7500 || data.CurrentLiquidationThreshold != 8000 {
		t.Fatalf("expected single-asset averages 7500/8000, got %d/%d", data.Ltv, data.CurrentLiquidationThreshold)
	}

	env.fund(t, env.usdc, usdcUnits(2000))
	if err := env.engine.Borrow(user, env.usdc, usdcUnits(1000), InterestRateModeVariable, user); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	data, err = env.engine.AccountData(user)
	if err != nil {
		t.Fatalf("account data: %v", err)
	}
	// $2000 collateral at 80% threshold over $1000 debt: health factor 1.6.
	expected := new(big.Int).Mul(big.NewInt(16), big.NewInt(100_000_000_000_000_000))
	if data.HealthFactor.Cmp(expected) != 0 {
		t.Fatalf("expected health factor 1.6e18, got %s", data.HealthFactor)
	}
}

func TestBorrowableAssetsRespectsLiquidity(t *testing.T) {
	env := newTestEnv(t)
	user := makeAddress(crypto.AccountPrefix, 0x10)
	env.book.Mint(env.weth, user, wei(1))
	if err := env.engine.Supply(user, env.weth, wei(1), user); err != nil {
		t.Fatalf("supply: %v", err)
	}
	env.fund(t, env.usdc, usdcUnits(500))

	power, err := env.engine.BorrowableAssets(user)
	if err != nil {
		t.Fatalf("borrowable assets: %v", err)
	}
	found := false
	for _, entry := range power.PerAssetMaxBorrow {
		if entry.Asset.Equal(env.usdc) {
			found = true
			if entry.Amount.Cmp(usdcUnits(500)) != 0 {
				t.Fatalf("expected USDC max borrow capped at pool liquidity 500, got %s", entry.Amount)
			}
		}
	}
	if !found {
		t.Fatalf("expected USDC entry in borrowable assets")
	}
}

func TestPositionQueriesRejectZeroAddresses(t *testing.T) {
	env := newTestEnv(t)
	user := makeAddress(crypto.AccountPrefix, 0x10)

	if _, err := env.engine.UserSupply(crypto.Address{}, env.weth); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero user supply query, got %v", err)
	}
	if _, err := env.engine.UserSupply(user, crypto.Address{}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero asset supply query, got %v", err)
	}
	if _, err := env.engine.UserBorrow(crypto.Address{}, env.usdc); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero user borrow query, got %v", err)
	}
	if _, err := env.engine.UserBorrow(user, crypto.Address{}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero asset borrow query, got %v", err)
	}
}
