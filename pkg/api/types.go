package api

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/engine"
	"github.com/uhyunpark/custodex/pkg/app/core/orderbook"
	"github.com/uhyunpark/custodex/pkg/num"
)

// API request and response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// AssetInfo is a registered asset
type AssetInfo struct {
	Ticker     string `json:"ticker"`     // e.g., "DAI"
	TickerHex  string `json:"tickerHex"`  // bytes32 form used in signed commands
	Identifier string `json:"identifier"` // token contract address
}

func newAssetInfo(a asset.Asset) AssetInfo {
	return AssetInfo{
		Ticker:     a.Ticker.Text(),
		TickerHex:  a.Ticker.Hex(),
		Identifier: a.Identifier.Hex(),
	}
}

// BalanceInfo is one trader's balance of one asset
type BalanceInfo struct {
	Address string   `json:"address"`
	Ticker  string   `json:"ticker"`
	Balance num.Uint `json:"balance"` // minimal units, decimal string
}

// OrderInfo is a resting limit order
type OrderInfo struct {
	ID        uint64   `json:"id"`
	Trader    string   `json:"trader"`
	Ticker    string   `json:"ticker"`
	Side      string   `json:"side"` // "buy" or "sell"
	Price     num.Uint `json:"price"`
	Amount    num.Uint `json:"amount"`
	Filled    num.Uint `json:"filled"`
	Remaining num.Uint `json:"remaining"`
}

func newOrderInfo(o orderbook.Order) OrderInfo {
	return OrderInfo{
		ID:        o.ID,
		Trader:    o.Trader.Hex(),
		Ticker:    o.Ticker.Text(),
		Side:      o.Side.String(),
		Price:     o.Price,
		Amount:    o.Amount,
		Filled:    o.Filled,
		Remaining: o.Remaining(),
	}
}

// PriceLevel aggregates the resting orders at one price
type PriceLevel struct {
	Price  num.Uint `json:"price"`
	Amount num.Uint `json:"amount"` // sum of remaining amounts
	Orders int      `json:"orders"`
}

// DepthSnapshot represents current book depth
type DepthSnapshot struct {
	Ticker string       `json:"ticker"`
	Bids   []PriceLevel `json:"bids"` // Sorted high to low
	Asks   []PriceLevel `json:"asks"` // Sorted low to high
	Seq    uint64       `json:"seq"`  // journal position the snapshot reflects
}

func newPriceLevels(levels []orderbook.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Amount: l.Amount, Orders: l.Orders}
	}
	return out
}

// FillInfo is one match of a market order
type FillInfo struct {
	CounterpartyOrderID uint64   `json:"counterpartyOrderId"`
	Counterparty        string   `json:"counterparty"`
	Amount              num.Uint `json:"amount"`
	Price               num.Uint `json:"price"`
}

// SubmitResponse is the response from any accepted submission
type SubmitResponse struct {
	Status  string     `json:"status"` // "accepted"
	Seq     uint64     `json:"seq"`
	OrderID *uint64    `json:"orderId,omitempty"` // limit orders
	Fills   []FillInfo `json:"fills,omitempty"`   // market orders
	// Escrow is false for limit orders: the balance is checked but not
	// reserved, and a later match against spent funds fails.
	Escrow *bool `json:"escrow,omitempty"`
}

// HealthStatus is returned by GET /health
type HealthStatus struct {
	Status    string `json:"status"`
	LastSeq   uint64 `json:"lastSeq"`
	StateHash string `json:"stateHash"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// REST Request Types
// ==============================

// NOTE: withdrawals and orders are submitted as signed commands (EIP-712).
// See pkg/app/core/transaction/types.go for the Command structure.

// RegisterAssetRequest is the payload for POST /api/v1/assets
type RegisterAssetRequest struct {
	Ticker     string `json:"ticker"`
	Identifier string `json:"identifier"` // 0x-prefixed token address
}

// DepositRequest is the payload for POST /api/v1/deposits
type DepositRequest struct {
	Trader string   `json:"trader"`
	Ticker string   `json:"ticker"`
	Amount num.Uint `json:"amount"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["trades:REP"]
}

// TradeUpdate is broadcast on trades:<TICKER> when a fill executes
type TradeUpdate struct {
	Type      string   `json:"type"` // "trade"
	ID        uint64   `json:"id"`
	Ticker    string   `json:"ticker"`
	OrderID   uint64   `json:"orderId"` // maker order
	Maker     string   `json:"maker"`
	Taker     string   `json:"taker"`
	Side      string   `json:"side"` // taker side
	Price     num.Uint `json:"price"`
	Amount    num.Uint `json:"amount"`
	Timestamp int64    `json:"timestamp"` // Unix milliseconds
}

func newTradeUpdate(t engine.Trade) TradeUpdate {
	return TradeUpdate{
		Type:      "trade",
		ID:        t.ID,
		Ticker:    t.Ticker.Text(),
		OrderID:   t.OrderID,
		Maker:     t.Maker.Hex(),
		Taker:     t.Taker.Hex(),
		Side:      t.TakerSide.String(),
		Price:     t.Price,
		Amount:    t.Amount,
		Timestamp: t.Timestamp.UnixMilli(),
	}
}

func tradeChannel(ticker asset.Ticker) string {
	return "trades:" + ticker.Text()
}

func hexAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}
