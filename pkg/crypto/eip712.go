package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/deployments
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address // zero for off-chain signing
}

// DefaultDomain returns the EIP-712 domain of a local Custodex node
func DefaultDomain() EIP712Domain {
	return NewDomain(big.NewInt(1337))
}

func NewDomain(chainID *big.Int) EIP712Domain {
	return EIP712Domain{
		Name:    "Custodex",
		Version: "1",
		ChainID: chainID,
	}
}

// OrderEIP712 is the typed data a trader signs to submit an order.
// Kind 0 is a limit order, 1 a market order (Price must be 0).
type OrderEIP712 struct {
	Trader common.Address
	Ticker [32]byte
	Side   uint8 // 0 = buy, 1 = sell
	Kind   uint8
	Amount *big.Int
	Price  *big.Int
	Nonce  *big.Int
}

// WithdrawEIP712 is the typed data a trader signs to withdraw funds.
type WithdrawEIP712 struct {
	Trader common.Address
	Ticker [32]byte
	Amount *big.Int
	Nonce  *big.Int
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var orderType = []apitypes.Type{
	{Name: "trader", Type: "address"},
	{Name: "ticker", Type: "bytes32"},
	{Name: "side", Type: "uint8"},
	{Name: "kind", Type: "uint8"},
	{Name: "amount", Type: "uint256"},
	{Name: "price", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
}

var withdrawType = []apitypes.Type{
	{Name: "trader", Type: "address"},
	{Name: "ticker", Type: "bytes32"},
	{Name: "amount", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
}

// EIP712Signer hashes, signs and recovers Custodex typed data
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              e.domain.Name,
		Version:           e.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

// OrderTypedData builds the eth_signTypedData_v4 payload for an order.
// It marshals to the JSON wallets expect.
func (e *EIP712Signer) OrderTypedData(order *OrderEIP712) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"Order":        orderType,
		},
		PrimaryType: "Order",
		Domain:      e.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"trader": order.Trader.Hex(),
			"ticker": hexutil.Encode(order.Ticker[:]),
			"side":   fmt.Sprintf("%d", order.Side),
			"kind":   fmt.Sprintf("%d", order.Kind),
			"amount": bigString(order.Amount),
			"price":  bigString(order.Price),
			"nonce":  bigString(order.Nonce),
		},
	}
}

// WithdrawTypedData builds the eth_signTypedData_v4 payload for a withdrawal.
func (e *EIP712Signer) WithdrawTypedData(w *WithdrawEIP712) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"Withdraw":     withdrawType,
		},
		PrimaryType: "Withdraw",
		Domain:      e.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"trader": w.Trader.Hex(),
			"ticker": hexutil.Encode(w.Ticker[:]),
			"amount": bigString(w.Amount),
			"nonce":  bigString(w.Nonce),
		},
	}
}

// HashOrder returns the EIP-712 digest of an order
func (e *EIP712Signer) HashOrder(order *OrderEIP712) ([]byte, error) {
	return hashTypedData(e.OrderTypedData(order))
}

// HashWithdraw returns the EIP-712 digest of a withdrawal
func (e *EIP712Signer) HashWithdraw(w *WithdrawEIP712) ([]byte, error) {
	return hashTypedData(e.WithdrawTypedData(w))
}

// SignOrder signs an order and returns the signature
func (e *EIP712Signer) SignOrder(signer *Signer, order *OrderEIP712) ([]byte, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}
	return signer.Sign(hash)
}

func (e *EIP712Signer) SignWithdraw(signer *Signer, w *WithdrawEIP712) ([]byte, error) {
	hash, err := e.HashWithdraw(w)
	if err != nil {
		return nil, fmt.Errorf("failed to hash withdraw: %w", err)
	}
	return signer.Sign(hash)
}

// RecoverOrderSigner recovers the address that signed an order
func (e *EIP712Signer) RecoverOrderSigner(order *OrderEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash order: %w", err)
	}
	return RecoverAddress(hash, signature)
}

func (e *EIP712Signer) RecoverWithdrawSigner(w *WithdrawEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashWithdraw(w)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash withdraw: %w", err)
	}
	return RecoverAddress(hash, signature)
}

func hashTypedData(typedData apitypes.TypedData) ([]byte, error) {
	// keccak256("\x19\x01" || domainSeparator || hashStruct(message))
	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return digest, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
