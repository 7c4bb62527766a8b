package lending

import (
	"math/big"
	"testing"
)

func TestValueInBaseFloors(t *testing.T) {
	// 1.5 units of a 6-decimal asset at $1.333333 floors the product.
	amount := big.NewInt(1_500_000)
	price := big.NewInt(133_333_300)
	got := valueInBase(amount, price, 6)
	want := big.NewInt(199_999_950)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}

	if got := valueInBase(nil, price, 6); got.Sign() != 0 {
		t.Fatalf("nil amount should value to zero, got %s", got)
	}
	if got := valueInBase(amount, big.NewInt(0), 6); got.Sign() != 0 {
		t.Fatalf("zero price should value to zero, got %s", got)
	}
}

func TestAmountFromBaseFloors(t *testing.T) {
	// $10 of headroom at $3 per unit floors to 3.333333 units.
	value := big.NewInt(10_0000_0000)
	price := big.NewInt(3_0000_0000)
	got := amountFromBase(value, price, 6)
	want := big.NewInt(3_333_333)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestValueRoundTripNeverGains(t *testing.T) {
	price := big.NewInt(1_9999_9999)
	for _, units := range []int64{1, 7, 999_999, 123_456_789} {
		amount := big.NewInt(units)
		value := valueInBase(amount, price, 6)
		back := amountFromBase(value, price, 6)
		if back.Cmp(amount) > 0 {
			t.Fatalf("round trip gained value: %s -> %s -> %s", amount, value, back)
		}
	}
}

func TestApplyBps(t *testing.T) {
	if got := applyBps(big.NewInt(10_000), 7500); got.Cmp(big.NewInt(7500)) != 0 {
		t.Fatalf("expected 7500, got %s", got)
	}
	// 3 * 3333 / 10000 floors to 0.
	if got := applyBps(big.NewInt(3), 3333); got.Sign() != 0 {
		t.Fatalf("expected floor to zero, got %s", got)
	}
	if got := applyBps(big.NewInt(100), 0); got.Sign() != 0 {
		t.Fatalf("zero bps should yield zero, got %s", got)
	}
	if got := applyBps(nil, 5000); got.Sign() != 0 {
		t.Fatalf("nil value should yield zero, got %s", got)
	}
}

func TestWeightedBps(t *testing.T) {
	// Two assets: 100 value at 7500 bps, 300 value at 8000 bps.
	sum := new(big.Int).Add(
		new(big.Int).Mul(big.NewInt(100), big.NewInt(7500)),
		new(big.Int).Mul(big.NewInt(300), big.NewInt(8000)),
	)
	if got := weightedBps(sum, big.NewInt(400)); got != 7875 {
		t.Fatalf("expected 7875, got %d", got)
	}
	if got := weightedBps(sum, big.NewInt(0)); got != 0 {
		t.Fatalf("zero total should yield zero, got %d", got)
	}
	if got := weightedBps(nil, big.NewInt(400)); got != 0 {
		t.Fatalf("nil sum should yield zero, got %d", got)
	}
}
