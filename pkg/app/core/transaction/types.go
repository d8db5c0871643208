package transaction

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/orderbook"
	"github.com/uhyunpark/custodex/pkg/crypto"
	"github.com/uhyunpark/custodex/pkg/num"
)

// CommandType represents the kind of command submitted to the exchange
type CommandType string

const (
	CmdRegisterAsset CommandType = "register_asset" // admin
	CmdDeposit       CommandType = "deposit"        // custody collaborator
	CmdWithdraw      CommandType = "withdraw"       // signed by trader
	CmdLimitOrder    CommandType = "limit_order"    // signed by trader
	CmdMarketOrder   CommandType = "market_order"   // signed by trader
)

// EIP-712 order kinds
const (
	KindLimit  uint8 = 0
	KindMarket uint8 = 1
)

// Command is the unit of submission: it is what gets journaled and replayed.
// Exactly one payload matching Type is set.
type Command struct {
	Type          CommandType           `json:"type"`
	RegisterAsset *RegisterAssetPayload `json:"register_asset,omitempty"`
	Deposit       *DepositPayload       `json:"deposit,omitempty"`
	Withdraw      *WithdrawPayload      `json:"withdraw,omitempty"`
	Order         *OrderPayload         `json:"order,omitempty"`
	Signature     string                `json:"signature,omitempty"` // 0x-prefixed, 65 bytes
}

type RegisterAssetPayload struct {
	Ticker     asset.Ticker   `json:"ticker"`
	Identifier common.Address `json:"identifier"`
}

type DepositPayload struct {
	Trader common.Address `json:"trader"`
	Ticker asset.Ticker   `json:"ticker"`
	Amount num.Uint       `json:"amount"`
}

type WithdrawPayload struct {
	Trader common.Address `json:"trader"`
	Ticker asset.Ticker   `json:"ticker"`
	Amount num.Uint       `json:"amount"`
	Nonce  uint64         `json:"nonce"`
}

// OrderPayload is shared by limit and market orders; market orders carry
// a zero price.
type OrderPayload struct {
	Trader common.Address `json:"trader"`
	Ticker asset.Ticker   `json:"ticker"`
	Side   orderbook.Side `json:"side"`
	Amount num.Uint       `json:"amount"`
	Price  num.Uint       `json:"price"`
	Nonce  uint64         `json:"nonce"`
}

// ToEIP712 converts the payload to the typed data a wallet signs
func (o *OrderPayload) ToEIP712(kind uint8) *crypto.OrderEIP712 {
	return &crypto.OrderEIP712{
		Trader: o.Trader,
		Ticker: o.Ticker,
		Side:   uint8(o.Side),
		Kind:   kind,
		Amount: o.Amount.BigInt(),
		Price:  o.Price.BigInt(),
		Nonce:  new(big.Int).SetUint64(o.Nonce),
	}
}

func (w *WithdrawPayload) ToEIP712() *crypto.WithdrawEIP712 {
	return &crypto.WithdrawEIP712{
		Trader: w.Trader,
		Ticker: w.Ticker,
		Amount: w.Amount.BigInt(),
		Nonce:  new(big.Int).SetUint64(w.Nonce),
	}
}

// Signed reports whether the command must carry a trader signature
func (c *Command) Signed() bool {
	switch c.Type {
	case CmdWithdraw, CmdLimitOrder, CmdMarketOrder:
		return true
	}
	return false
}

// Trader returns the account a signed command acts on
func (c *Command) Trader() common.Address {
	switch {
	case c.Withdraw != nil:
		return c.Withdraw.Trader
	case c.Order != nil:
		return c.Order.Trader
	case c.Deposit != nil:
		return c.Deposit.Trader
	}
	return common.Address{}
}

// Nonce returns the replay-protection nonce of a signed command
func (c *Command) Nonce() uint64 {
	switch {
	case c.Withdraw != nil:
		return c.Withdraw.Nonce
	case c.Order != nil:
		return c.Order.Nonce
	}
	return 0
}

// Serialize converts Command to JSON bytes
func (c *Command) Serialize() ([]byte, error) {
	return json.Marshal(c)
}

// Deserialize parses and validates JSON bytes into a Command
func Deserialize(data []byte) (*Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}
	return &c, nil
}

// Validate performs structural validation. Business rules (balances,
// registered assets) are left to the engine.
func (c *Command) Validate() error {
	switch c.Type {
	case CmdRegisterAsset:
		if c.RegisterAsset == nil {
			return fmt.Errorf("register_asset requires register_asset payload")
		}
	case CmdDeposit:
		if c.Deposit == nil {
			return fmt.Errorf("deposit requires deposit payload")
		}
	case CmdWithdraw:
		if c.Withdraw == nil {
			return fmt.Errorf("withdraw requires withdraw payload")
		}
	case CmdLimitOrder, CmdMarketOrder:
		if c.Order == nil {
			return fmt.Errorf("%s requires order payload", c.Type)
		}
		if c.Type == CmdMarketOrder && !c.Order.Price.IsZero() {
			return fmt.Errorf("market order must not carry a price")
		}
	case "":
		return fmt.Errorf("missing command type")
	default:
		return fmt.Errorf("unknown command type: %s", c.Type)
	}

	if c.Signed() {
		if c.Signature == "" {
			return fmt.Errorf("missing signature")
		}
		if c.Trader() == (common.Address{}) {
			return fmt.Errorf("missing trader")
		}
	}
	return nil
}
