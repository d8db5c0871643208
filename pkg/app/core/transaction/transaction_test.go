package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/orderbook"
	"github.com/uhyunpark/custodex/pkg/crypto"
	"github.com/uhyunpark/custodex/pkg/num"
)

func limitOrder(t *testing.T, signer *crypto.Signer) *Command {
	t.Helper()
	return &Command{
		Type: CmdLimitOrder,
		Order: &OrderPayload{
			Trader: signer.Address(),
			Ticker: asset.MustTicker("REP"),
			Side:   orderbook.Buy,
			Amount: num.NewUint(10),
			Price:  num.NewUint(10),
			Nonce:  1,
		},
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	v := NewVerifier(crypto.DefaultDomain())

	cmd := limitOrder(t, signer)
	require.NoError(t, v.Sign(signer, cmd))
	assert.Len(t, cmd.Signature, 2+130)

	got, err := v.Verify(cmd)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), got)
}

func TestVerifyRejectsForeignSigner(t *testing.T) {
	trader, _ := crypto.GenerateKey()
	mallory, _ := crypto.GenerateKey()
	v := NewVerifier(crypto.DefaultDomain())

	cmd := limitOrder(t, trader)
	require.NoError(t, v.Sign(mallory, cmd))

	_, err := v.Verify(cmd)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsKindSwap(t *testing.T) {
	signer, _ := crypto.GenerateKey()
	v := NewVerifier(crypto.DefaultDomain())

	cmd := limitOrder(t, signer)
	cmd.Type = CmdMarketOrder
	cmd.Order.Price = num.Zero
	require.NoError(t, v.Sign(signer, cmd))

	// a signed market order cannot be replayed as a limit order
	cmd.Type = CmdLimitOrder
	_, err := v.Verify(cmd)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyWithdraw(t *testing.T) {
	signer, _ := crypto.GenerateKey()
	v := NewVerifier(crypto.DefaultDomain())
	cmd := &Command{
		Type: CmdWithdraw,
		Withdraw: &WithdrawPayload{
			Trader: signer.Address(),
			Ticker: asset.MustTicker("DAI"),
			Amount: num.NewUint(5),
			Nonce:  3,
		},
	}
	require.NoError(t, v.Sign(signer, cmd))

	got, err := v.Verify(cmd)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), got)

	cmd.Withdraw.Amount = num.NewUint(6)
	_, err = v.Verify(cmd)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyUnsigned(t *testing.T) {
	v := NewVerifier(crypto.DefaultDomain())
	_, err := v.Verify(&Command{Type: CmdDeposit, Deposit: &DepositPayload{}})
	assert.Error(t, err)

	signer, _ := crypto.GenerateKey()
	cmd := limitOrder(t, signer)
	cmd.Signature = "0x1234"
	_, err = v.Verify(cmd)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSerializeRoundTrip(t *testing.T) {
	signer, _ := crypto.GenerateKey()
	v := NewVerifier(crypto.DefaultDomain())
	cmd := limitOrder(t, signer)
	require.NoError(t, v.Sign(signer, cmd))

	data, err := cmd.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"side":"buy"`)
	assert.Contains(t, string(data), `"ticker":"REP"`)

	parsed, err := Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, cmd, parsed)

	// still verifies after the trip through JSON
	_, err = v.Verify(parsed)
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing type", `{}`},
		{"unknown type", `{"type":"cancel"}`},
		{"missing payload", `{"type":"limit_order","signature":"0x00"}`},
		{"unsigned order", `{"type":"limit_order","order":{"trader":"0x1111111111111111111111111111111111111111","ticker":"REP","side":"buy","amount":"1","price":"1","nonce":1}}`},
		{"market with price", `{"type":"market_order","signature":"0x00","order":{"trader":"0x1111111111111111111111111111111111111111","ticker":"REP","side":"buy","amount":"1","price":"5","nonce":1}}`},
		{"bad side", `{"type":"deposit","deposit":{"trader":"0x1111111111111111111111111111111111111111","ticker":"REP","amount":"1"},"order":{"side":"hold"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize([]byte(tt.json))
			assert.Error(t, err)
		})
	}

	_, err := Deserialize([]byte(`{"type":"deposit","deposit":{"trader":"0x1111111111111111111111111111111111111111","ticker":"REP","amount":"100"}}`))
	assert.NoError(t, err)
}
