package transaction

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/uhyunpark/custodex/pkg/crypto"
)

// ErrInvalidSignature is returned when the recovered signer is not the trader
var ErrInvalidSignature = errors.New("invalid signature")

// Verifier checks trader signatures on commands
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
}

func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{eip712Signer: crypto.NewEIP712Signer(domain)}
}

// Verify recovers the signer of a signed command and checks it against the
// trader named in the payload.
func (v *Verifier) Verify(c *Command) (common.Address, error) {
	if !c.Signed() {
		return common.Address{}, fmt.Errorf("%s is not a signed command", c.Type)
	}
	if err := c.Validate(); err != nil {
		return common.Address{}, err
	}

	sig, err := decodeSignature(c.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var signer common.Address
	switch c.Type {
	case CmdWithdraw:
		signer, err = v.eip712Signer.RecoverWithdrawSigner(c.Withdraw.ToEIP712(), sig)
	case CmdLimitOrder:
		signer, err = v.eip712Signer.RecoverOrderSigner(c.Order.ToEIP712(KindLimit), sig)
	case CmdMarketOrder:
		signer, err = v.eip712Signer.RecoverOrderSigner(c.Order.ToEIP712(KindMarket), sig)
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if signer != c.Trader() {
		return common.Address{}, fmt.Errorf("%w: signed by %s, trader is %s", ErrInvalidSignature, signer.Hex(), c.Trader().Hex())
	}
	return signer, nil
}

// Sign fills in c.Signature. Used by the signing CLI and tests.
func (v *Verifier) Sign(signer *crypto.Signer, c *Command) error {
	var (
		sig []byte
		err error
	)
	switch c.Type {
	case CmdWithdraw:
		sig, err = v.eip712Signer.SignWithdraw(signer, c.Withdraw.ToEIP712())
	case CmdLimitOrder:
		sig, err = v.eip712Signer.SignOrder(signer, c.Order.ToEIP712(KindLimit))
	case CmdMarketOrder:
		sig, err = v.eip712Signer.SignOrder(signer, c.Order.ToEIP712(KindMarket))
	default:
		return fmt.Errorf("%s is not a signed command", c.Type)
	}
	if err != nil {
		return err
	}
	c.Signature = hexutil.Encode(sig)
	return nil
}

// decodeSignature decodes hex-encoded signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	if len(sig) < 2 || sig[:2] != "0x" {
		sig = "0x" + sig
	}
	sigBytes, err := hexutil.Decode(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}
	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}
	return sigBytes, nil
}
