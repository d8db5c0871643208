package engine

import (
	"github.com/pkg/errors"
	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/ledger"
	"github.com/uhyunpark/custodex/pkg/app/core/orderbook"
)

var (
	// ErrInvalidAsset signals an order whose traded asset is the base currency
	ErrInvalidAsset = errors.New("base currency cannot be the traded asset")
	// ErrInvalidPrice signals a limit order with a zero price
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrInvalidAmount signals an order with a zero amount
	ErrInvalidAmount = errors.New("amount must be positive")

	ErrAssetNotFound                   = asset.ErrAssetNotFound
	ErrAssetExists                     = asset.ErrAssetExists
	ErrInvalidTicker                   = asset.ErrInvalidTicker
	ErrInsufficientTokenBalance        = ledger.ErrInsufficientTokenBalance
	ErrInsufficientBaseBalance         = ledger.ErrInsufficientBaseBalance
	ErrInsufficientWithdrawableBalance = ledger.ErrInsufficientWithdrawableBalance
	ErrAmountOverflow                  = ledger.ErrAmountOverflow
	ErrInvalidSide                     = orderbook.ErrInvalidSide
)
