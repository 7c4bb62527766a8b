package lending

import "errors"

// Input errors: the caller's fault, rejected before any ledger state is read.
var (
	errNilState                = errors.New("lending: state not configured")
	ErrInvalidAddress          = errors.New("lending: address must be non-zero")
	ErrInvalidAmount           = errors.New("lending: amount must be positive")
	ErrInvalidInterestRateMode = errors.New("lending: interest rate mode must be stable or variable")
)

// State errors: consequence of the current ledger vs. the request, checked
// against a consistent snapshot before any mutation.
var (
	ErrInsufficientSupply          = errors.New("lending: withdrawal exceeds supplied balance")
	ErrInsufficientCollateral      = errors.New("lending: borrow exceeds collateral capacity")
	ErrInsufficientLiquidity       = errors.New("lending: insufficient pool liquidity")
	ErrNoOutstandingDebt           = errors.New("lending: no outstanding debt to repay")
	ErrWithdrawalExceedsCollateral = errors.New("lending: withdrawal would exceed collateral capacity")
)

// Configuration errors: administrative misuse of the registry or oracle.
var (
	ErrAssetNotSupported = errors.New("lending: asset not supported")
	ErrDuplicateAsset    = errors.New("lending: asset already listed")
	ErrInvalidConfig     = errors.New("lending: invalid collateral configuration")
	ErrUnauthorized      = errors.New("lending: administrative capability required")
)

// Lifecycle errors.
var (
	ErrPoolNotInitialized = errors.New("lending: pool not initialized")
)
