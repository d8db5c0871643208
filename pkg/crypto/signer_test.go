package crypto

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	privHex := signer.PrivateKeyHex()
	if len(privHex) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(privHex))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	signer1, _ := GenerateKey()
	privHex := signer1.PrivateKeyHex()
	expectedAddr := signer1.Address()

	for _, in := range []string{privHex, "0x" + privHex} {
		signer2, err := FromPrivateKeyHex(in)
		if err != nil {
			t.Fatalf("failed to load key %q: %v", in[:4], err)
		}
		if signer2.Address() != expectedAddr {
			t.Errorf("address = %s, want %s", signer2.Address().Hex(), expectedAddr.Hex())
		}
	}

	if _, err := FromPrivateKeyHex("zz"); err == nil {
		t.Error("garbage key accepted")
	}
}

func TestSignAndRecover(t *testing.T) {
	signer, _ := GenerateKey()
	hash := eth_crypto.Keccak256([]byte("Test message"))

	signature, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if len(signature) != 65 {
		t.Fatalf("signature length = %d, want 65", len(signature))
	}
	if v := signature[64]; v != 27 && v != 28 {
		t.Errorf("V = %d, want 27 or 28", v)
	}

	recoveredAddr, err := RecoverAddress(hash, signature)
	if err != nil {
		t.Fatalf("failed to recover address: %v", err)
	}
	if recoveredAddr != signer.Address() {
		t.Errorf("recovered address = %s, want %s", recoveredAddr.Hex(), signer.Address().Hex())
	}

	// 0/1 recovery ids are accepted too
	raw := append([]byte(nil), signature...)
	raw[64] -= 27
	recoveredAddr, err = RecoverAddress(hash, raw)
	if err != nil || recoveredAddr != signer.Address() {
		t.Errorf("raw V recovery = %s, %v", recoveredAddr.Hex(), err)
	}
	if signature[64] < 27 {
		t.Error("RecoverAddress mutated the caller's signature")
	}
}

func TestInvalidSignature(t *testing.T) {
	hash := common.BytesToHash([]byte("test")).Bytes()

	if _, err := RecoverAddress(hash, []byte{1, 2, 3}); err == nil {
		t.Error("short signature should not recover")
	}
	if _, err := RecoverAddress([]byte("short"), make([]byte, 65)); err == nil {
		t.Error("short hash should not recover")
	}
}

func testOrder(trader common.Address) *OrderEIP712 {
	var ticker [32]byte
	copy(ticker[:], "REP")
	return &OrderEIP712{
		Trader: trader,
		Ticker: ticker,
		Side:   0,
		Kind:   0,
		Amount: big.NewInt(10),
		Price:  big.NewInt(10),
		Nonce:  big.NewInt(1),
	}
}

func TestOrderSignature(t *testing.T) {
	signer, _ := GenerateKey()
	e := NewEIP712Signer(DefaultDomain())
	order := testOrder(signer.Address())

	sig, err := e.SignOrder(signer, order)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}

	recovered, err := e.RecoverOrderSigner(order, sig)
	if err != nil {
		t.Fatalf("RecoverOrderSigner: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}

	// any field change breaks the signature
	tampered := *order
	tampered.Amount = big.NewInt(11)
	recovered, err = e.RecoverOrderSigner(&tampered, sig)
	if err == nil && recovered == signer.Address() {
		t.Error("tampered order recovered to the signer")
	}

	// other chain, other digest
	other := NewEIP712Signer(NewDomain(big.NewInt(1)))
	h1, _ := e.HashOrder(order)
	h2, _ := other.HashOrder(order)
	if string(h1) == string(h2) {
		t.Error("chain id is not part of the digest")
	}
}

func TestWithdrawSignature(t *testing.T) {
	signer, _ := GenerateKey()
	e := NewEIP712Signer(DefaultDomain())
	w := &WithdrawEIP712{Trader: signer.Address(), Amount: big.NewInt(5), Nonce: big.NewInt(2)}
	copy(w.Ticker[:], "DAI")

	sig, err := e.SignWithdraw(signer, w)
	if err != nil {
		t.Fatalf("SignWithdraw: %v", err)
	}
	recovered, err := e.RecoverWithdrawSigner(w, sig)
	if err != nil || recovered != signer.Address() {
		t.Errorf("recovered = %s, %v", recovered.Hex(), err)
	}

	// an order digest never equals a withdraw digest for the same fields
	oh, _ := e.HashOrder(testOrder(signer.Address()))
	wh, _ := e.HashWithdraw(w)
	if string(oh) == string(wh) {
		t.Error("order and withdraw share a digest")
	}
}

func TestOrderTypedDataJSON(t *testing.T) {
	e := NewEIP712Signer(DefaultDomain())
	data, err := json.Marshal(e.OrderTypedData(testOrder(common.Address{})))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"primaryType":"Order"`, `"name":"Custodex"`, `"ticker"`} {
		if !strings.Contains(s, want) {
			t.Errorf("typed data JSON missing %s: %s", want, s)
		}
	}
}
