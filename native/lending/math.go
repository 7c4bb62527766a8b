package lending

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	wad         = mustBigInt("1000000000000000000") // 1e18, health factor scale
)

// MaxRepayAmount is the "repay everything" sentinel: callers pass 2^256-1 to
// request full repayment of the outstanding debt. The executor resolves it to
// the concrete debt before any transfer so the unbounded value never reaches
// the ledger.
var MaxRepayAmount = mustBigInt("115792089237316195423570985008687907853269984665640564039457584007913129639935")

// MaxHealthFactor is returned when a user has no debt; the health factor is
// then infinite by definition.
var MaxHealthFactor = new(big.Int).Set(MaxRepayAmount)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// valueInBase converts a native-unit amount into 8-decimal base units using
// the oracle price (itself 8-decimal). The division floors so collateral is
// never overstated.
func valueInBase(amount, price *big.Int, assetDecimals uint8) *big.Int {
	if amount == nil || amount.Sign() <= 0 || price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(amount, price)
	return value.Quo(value, pow10(assetDecimals))
}

// amountFromBase converts a base-unit value back into native units at the
// current price, flooring so borrow headroom is never overstated.
func amountFromBase(value, price *big.Int, assetDecimals uint8) *big.Int {
	if value == nil || value.Sign() <= 0 || price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	amount := new(big.Int).Mul(value, pow10(assetDecimals))
	return amount.Quo(amount, price)
}

// applyBps scales a value by a basis-point ratio, flooring.
func applyBps(value *big.Int, bps uint64) *big.Int {
	if value == nil || value.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(value, new(big.Int).SetUint64(bps))
	return scaled.Quo(scaled, basisPoints)
}

// weightedBps floors the value-weighted average of accumulated (value * bps)
// products; used for the aggregate LTV and liquidation threshold figures.
func weightedBps(weightedSum, totalValue *big.Int) uint64 {
	if weightedSum == nil || totalValue == nil || totalValue.Sign() == 0 {
		return 0
	}
	avg := new(big.Int).Quo(weightedSum, totalValue)
	if !avg.IsUint64() {
		return 0
	}
	return avg.Uint64()
}
