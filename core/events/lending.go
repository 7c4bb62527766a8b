package events

import (
	"math/big"

	"lendingpool/crypto"
)

const (
	// TypeLendingSupplied is emitted when a supply credits a position.
	TypeLendingSupplied = "lending.supplied"
	// TypeLendingWithdrawn is emitted when supplied principal leaves the pool.
	TypeLendingWithdrawn = "lending.withdrawn"
	// TypeLendingBorrowed is emitted when a borrow draws down pool liquidity.
	TypeLendingBorrowed = "lending.borrowed"
	// TypeLendingRepaid is emitted with the resolved (not requested) amount.
	TypeLendingRepaid = "lending.repaid"
	// TypeLendingPoolFunded is emitted when the reserve is topped up.
	TypeLendingPoolFunded = "lending.poolFunded"
	// TypeLendingAssetListed is emitted when the registry lists an asset.
	TypeLendingAssetListed = "lending.assetListed"
	// TypeLendingPriceUpdated is emitted on oracle price changes.
	TypeLendingPriceUpdated = "lending.priceUpdated"
)

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

type LendingSupplied struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *big.Int
}

func (LendingSupplied) EventType() string { return TypeLendingSupplied }

func (e LendingSupplied) Record() *Record {
	return &Record{
		Type: TypeLendingSupplied,
		Attributes: map[string]string{
			"user":   e.User.String(),
			"asset":  e.Asset.String(),
			"amount": amountString(e.Amount),
		},
	}
}

type LendingWithdrawn struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *big.Int
	To     crypto.Address
}

func (LendingWithdrawn) EventType() string { return TypeLendingWithdrawn }

func (e LendingWithdrawn) Record() *Record {
	return &Record{
		Type: TypeLendingWithdrawn,
		Attributes: map[string]string{
			"user":   e.User.String(),
			"asset":  e.Asset.String(),
			"amount": amountString(e.Amount),
			"to":     e.To.String(),
		},
	}
}

type LendingBorrowed struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *big.Int
	Mode   string
}

func (LendingBorrowed) EventType() string { return TypeLendingBorrowed }

func (e LendingBorrowed) Record() *Record {
	return &Record{
		Type: TypeLendingBorrowed,
		Attributes: map[string]string{
			"user":   e.User.String(),
			"asset":  e.Asset.String(),
			"amount": amountString(e.Amount),
			"mode":   e.Mode,
		},
	}
}

type LendingRepaid struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *big.Int
	Mode   string
}

func (LendingRepaid) EventType() string { return TypeLendingRepaid }

func (e LendingRepaid) Record() *Record {
	return &Record{
		Type: TypeLendingRepaid,
		Attributes: map[string]string{
			"user":   e.User.String(),
			"asset":  e.Asset.String(),
			"amount": amountString(e.Amount),
			"mode":   e.Mode,
		},
	}
}

type LendingPoolFunded struct {
	Funder crypto.Address
	Asset  crypto.Address
	Amount *big.Int
}

func (LendingPoolFunded) EventType() string { return TypeLendingPoolFunded }

func (e LendingPoolFunded) Record() *Record {
	return &Record{
		Type: TypeLendingPoolFunded,
		Attributes: map[string]string{
			"funder": e.Funder.String(),
			"asset":  e.Asset.String(),
			"amount": amountString(e.Amount),
		},
	}
}

type LendingAssetListed struct {
	Asset                   crypto.Address
	LtvBps                  uint64
	LiquidationThresholdBps uint64
}

func (LendingAssetListed) EventType() string { return TypeLendingAssetListed }

func (e LendingAssetListed) Record() *Record {
	return &Record{
		Type: TypeLendingAssetListed,
		Attributes: map[string]string{
			"asset":                   e.Asset.String(),
			"ltvBps":                  new(big.Int).SetUint64(e.LtvBps).String(),
			"liquidationThresholdBps": new(big.Int).SetUint64(e.LiquidationThresholdBps).String(),
		},
	}
}

type LendingPriceUpdated struct {
	Asset crypto.Address
	Price *big.Int
}

func (LendingPriceUpdated) EventType() string { return TypeLendingPriceUpdated }

func (e LendingPriceUpdated) Record() *Record {
	return &Record{
		Type: TypeLendingPriceUpdated,
		Attributes: map[string]string{
			"asset": e.Asset.String(),
			"price": amountString(e.Price),
		},
	}
}
