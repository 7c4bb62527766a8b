package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"lendingpool/crypto"
	"lendingpool/native/lending"
	"lendingpool/rpc/modules"
)

type lendingSupplyParams struct {
	Caller     string `json:"caller"`
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	OnBehalfOf string `json:"onBehalfOf"`
}

type lendingWithdrawParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}

type lendingBorrowParams struct {
	Caller   string `json:"caller"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
	RateMode uint8  `json:"rateMode"`
	To       string `json:"to"`
}

type lendingRepayParams struct {
	Caller     string `json:"caller"`
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	RateMode   uint8  `json:"rateMode"`
	OnBehalfOf string `json:"onBehalfOf"`
}

type lendingAccountParams struct {
	Address string `json:"address"`
}

type lendingPositionParams struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
}

type lendingAddAssetParams struct {
	Asset                   string `json:"asset"`
	PriceUSD                string `json:"priceUsd"`
	Decimals                uint8  `json:"decimals"`
	LtvBps                  uint64 `json:"ltvBps"`
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
}

type lendingSetPriceParams struct {
	Asset    string `json:"asset"`
	PriceUSD string `json:"priceUsd"`
}

type lendingSetEnabledParams struct {
	Asset   string `json:"asset"`
	Enabled bool   `json:"enabled"`
}

type lendingMintParams struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type lendingFundPoolParams struct {
	Funder string `json:"funder"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type lendingOKResult struct {
	OK bool `json:"ok"`
}

type lendingAmountResult struct {
	Amount string `json:"amount"`
}

type lendingAccountDataResult struct {
	TotalCollateralValue        string `json:"totalCollateralValue"`
	TotalDebtValue              string `json:"totalDebtValue"`
	AvailableBorrowValue        string `json:"availableBorrowValue"`
	CurrentLiquidationThreshold uint64 `json:"currentLiquidationThreshold"`
	Ltv                         uint64 `json:"ltv"`
	HealthFactor                string `json:"healthFactor"`
}

type lendingBorrowableEntry struct {
	Asset     string `json:"asset"`
	MaxBorrow string `json:"maxBorrow"`
}

type lendingBorrowableResult struct {
	TotalCollateralValue string                   `json:"totalCollateralValue"`
	TotalDebtValue       string                   `json:"totalDebtValue"`
	MaxBorrowValue       string                   `json:"maxBorrowValue"`
	AvailableBorrowValue string                   `json:"availableBorrowValue"`
	Assets               []lendingBorrowableEntry `json:"assets"`
}

type lendingAssetInfoResult struct {
	Asset                   string `json:"asset"`
	PriceUSD                string `json:"priceUsd,omitempty"`
	Decimals                uint8  `json:"decimals"`
	LtvBps                  uint64 `json:"ltvBps"`
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
	Enabled                 bool   `json:"enabled"`
	Liquidity               string `json:"liquidity,omitempty"`
}

func bigString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}

func (s *Server) handleLendingSupply(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingSupplyParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := decodeAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	onBehalfOf := caller
	if strings.TrimSpace(params.OnBehalfOf) != "" {
		if onBehalfOf, err = decodeAccount(params.OnBehalfOf); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid onBehalfOf", err.Error())
			return
		}
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if moduleErr := s.lending.Supply(caller, asset, amount, onBehalfOf); moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingOKResult{OK: true})
}

func (s *Server) handleLendingWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingWithdrawParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := decodeAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	to := caller
	if strings.TrimSpace(params.To) != "" {
		if to, err = decodeAccount(params.To); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to", err.Error())
			return
		}
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	withdrawn, moduleErr := s.lending.Withdraw(caller, asset, amount, to)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingAmountResult{Amount: bigString(withdrawn)})
}

func (s *Server) handleLendingBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingBorrowParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := decodeAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	to := caller
	if strings.TrimSpace(params.To) != "" {
		if to, err = decodeAccount(params.To); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to", err.Error())
			return
		}
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	mode := lending.InterestRateMode(params.RateMode)
	if moduleErr := s.lending.Borrow(caller, asset, amount, mode, to); moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingOKResult{OK: true})
}

func (s *Server) handleLendingRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingRepayParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := decodeAccount(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller", err.Error())
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	onBehalfOf := caller
	if strings.TrimSpace(params.OnBehalfOf) != "" {
		if onBehalfOf, err = decodeAccount(params.OnBehalfOf); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid onBehalfOf", err.Error())
			return
		}
	}
	// "max" requests full settlement; the executor clamps it to the debt.
	var amount *big.Int
	if strings.EqualFold(strings.TrimSpace(params.Amount), "max") {
		amount = new(big.Int).Set(lending.MaxRepayAmount)
	} else if amount, err = parseAmount(params.Amount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	mode := lending.InterestRateMode(params.RateMode)
	repaid, moduleErr := s.lending.Repay(caller, asset, amount, mode, onBehalfOf)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingAmountResult{Amount: bigString(repaid)})
}

func (s *Server) handleLendingGetUserAccountData(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingAccountParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, err := decodeAccount(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	data, moduleErr := s.lending.GetUserAccountData(addr)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingAccountDataResult{
		TotalCollateralValue:        bigString(data.TotalCollateralValue),
		TotalDebtValue:              bigString(data.TotalDebtValue),
		AvailableBorrowValue:        bigString(data.AvailableBorrowValue),
		CurrentLiquidationThreshold: data.CurrentLiquidationThreshold,
		Ltv:                         data.Ltv,
		HealthFactor:                bigString(data.HealthFactor),
	})
}

func (s *Server) handleLendingGetBorrowableAssets(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingAccountParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, err := decodeAccount(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	power, moduleErr := s.lending.GetBorrowableAssets(addr)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	entries := make([]lendingBorrowableEntry, 0, len(power.PerAssetMaxBorrow))
	for _, entry := range power.PerAssetMaxBorrow {
		entries = append(entries, lendingBorrowableEntry{
			Asset:     entry.Asset.String(),
			MaxBorrow: bigString(entry.Amount),
		})
	}
	writeResult(w, req.ID, lendingBorrowableResult{
		TotalCollateralValue: bigString(power.TotalCollateralValue),
		TotalDebtValue:       bigString(power.TotalDebtValue),
		MaxBorrowValue:       bigString(power.MaxBorrowValue),
		AvailableBorrowValue: bigString(power.AvailableBorrowValue),
		Assets:               entries,
	})
}

func (s *Server) handleLendingGetUserSupply(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleLendingPositionQuery(w, r, req, s.lending.GetUserSupply)
}

func (s *Server) handleLendingGetUserBorrow(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleLendingPositionQuery(w, r, req, s.lending.GetUserBorrow)
}

func (s *Server) handleLendingGetSupportedAssets(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	infos, moduleErr := s.lending.SupportedAssets()
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	results := make([]lendingAssetInfoResult, 0, len(infos))
	for _, info := range infos {
		result := lendingAssetInfoResult{
			Asset:                   info.Asset.String(),
			Decimals:                info.AssetDecimals,
			LtvBps:                  info.LtvBps,
			LiquidationThresholdBps: info.LiquidationThresholdBps,
			Enabled:                 info.Enabled,
		}
		if info.Price != nil {
			result.PriceUSD = info.Price.String()
		}
		if info.Liquidity != nil {
			result.Liquidity = info.Liquidity.String()
		}
		results = append(results, result)
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleLendingAddAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingAddAssetParams
	if !decodeParams(w, req, &params) {
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	price, err := parseAmount(params.PriceUSD)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if moduleErr := s.lending.AddAsset(asset, price, params.Decimals, params.LtvBps, params.LiquidationThresholdBps); moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingOKResult{OK: true})
}

func (s *Server) handleLendingSetPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingSetPriceParams
	if !decodeParams(w, req, &params) {
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	price, err := parseAmount(params.PriceUSD)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if moduleErr := s.lending.SetPrice(asset, price); moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingOKResult{OK: true})
}

func (s *Server) handleLendingSetAssetEnabled(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingSetEnabledParams
	if !decodeParams(w, req, &params) {
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	if moduleErr := s.lending.SetAssetEnabled(asset, params.Enabled); moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingOKResult{OK: true})
}

func (s *Server) handleLendingMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingMintParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, err := decodeAccount(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account", err.Error())
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if moduleErr := s.lending.Mint(account, asset, amount); moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingOKResult{OK: true})
}

func (s *Server) handleLendingFundPool(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params lendingFundPoolParams
	if !decodeParams(w, req, &params) {
		return
	}
	funder, err := decodeAccount(params.Funder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid funder", err.Error())
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if moduleErr := s.lending.FundPool(funder, asset, amount); moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingOKResult{OK: true})
}

func (s *Server) handleLendingPositionQuery(w http.ResponseWriter, _ *http.Request, req *RPCRequest, fn func(user, asset crypto.Address) (*big.Int, *modules.ModuleError)) {
	var params lendingPositionParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, err := decodeAccount(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	amount, moduleErr := fn(addr, asset)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, lendingAmountResult{Amount: bigString(amount)})
}
