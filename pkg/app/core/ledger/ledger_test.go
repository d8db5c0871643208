package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/num"
)

var (
	dai = asset.MustTicker("DAI")
	rep = asset.MustTicker("REP")

	trader1 = common.HexToAddress("0x1111111111111111111111111111111111111111")
	trader2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	reg := asset.NewRegistry()
	for _, tk := range []asset.Ticker{dai, rep} {
		if err := reg.Register(tk, common.Address{}); err != nil {
			t.Fatal(err)
		}
	}
	return New(reg)
}

func u(v uint64) num.Uint { return num.NewUint(v) }

func stateHash(l *Ledger) common.Hash {
	h := crypto.NewKeccakState()
	l.Hash(h)
	return common.BytesToHash(h.Sum(nil))
}

func TestDepositUnknownAsset(t *testing.T) {
	l := newTestLedger(t)
	before := stateHash(l)

	err := l.Deposit(trader1, asset.MustTicker("BAT"), u(100))
	if !errors.Is(err, asset.ErrAssetNotFound) {
		t.Fatalf("err = %v, want ErrAssetNotFound", err)
	}
	if stateHash(l) != before {
		t.Errorf("failed deposit changed ledger state")
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	if err := l.Deposit(trader1, dai, u(70)); err != nil {
		t.Fatal(err)
	}
	before := l.BalanceOf(trader1, dai)

	if err := l.Deposit(trader1, dai, u(30)); err != nil {
		t.Fatal(err)
	}
	if err := l.Withdraw(trader1, dai, u(30)); err != nil {
		t.Fatal(err)
	}

	if got := l.BalanceOf(trader1, dai); !got.EQ(before) {
		t.Errorf("balance = %s, want %s", got, before)
	}
	if got := l.Total(dai); !got.EQ(u(70)) {
		t.Errorf("total = %s, want 70", got)
	}
}

func TestOverWithdrawIsDeterministic(t *testing.T) {
	l := newTestLedger(t)
	if err := l.Deposit(trader1, dai, u(10)); err != nil {
		t.Fatal(err)
	}
	before := stateHash(l)

	for i := 0; i < 3; i++ {
		err := l.Withdraw(trader1, dai, u(11))
		if !errors.Is(err, ErrInsufficientWithdrawableBalance) {
			t.Fatalf("attempt %d: err = %v, want ErrInsufficientWithdrawableBalance", i, err)
		}
		if stateHash(l) != before {
			t.Fatalf("attempt %d: rejected withdraw changed state", i)
		}
	}
	if got := l.BalanceOf(trader1, dai); !got.EQ(u(10)) {
		t.Errorf("balance = %s, want 10", got)
	}
}

func TestZeroAmountsAreNoOps(t *testing.T) {
	l := newTestLedger(t)
	if err := l.Deposit(trader1, dai, u(10)); err != nil {
		t.Fatal(err)
	}
	before := stateHash(l)

	if err := l.Deposit(trader1, dai, num.Zero); err != nil {
		t.Errorf("deposit 0 err = %v", err)
	}
	if err := l.Withdraw(trader1, dai, num.Zero); err != nil {
		t.Errorf("withdraw 0 err = %v", err)
	}
	// a trader with no balance can withdraw nothing
	if err := l.Withdraw(trader2, dai, num.Zero); err != nil {
		t.Errorf("withdraw 0 from empty err = %v", err)
	}
	if got := l.BalanceOf(trader1, dai); !got.EQ(u(10)) {
		t.Errorf("balance = %s, want 10", got)
	}
	if stateHash(l) != before {
		t.Errorf("zero amounts changed the ledger")
	}

	if err := l.Deposit(trader1, asset.MustTicker("ZRX"), num.Zero); !errors.Is(err, asset.ErrAssetNotFound) {
		t.Errorf("deposit 0 of unknown asset err = %v", err)
	}
}

func TestDepositOverflow(t *testing.T) {
	l := newTestLedger(t)
	maxVal, err := num.UintFromString("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Deposit(trader1, dai, maxVal); err != nil {
		t.Fatal(err)
	}
	// a different trader still overflows the asset total
	if err := l.Deposit(trader2, dai, u(1)); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("err = %v, want ErrAmountOverflow", err)
	}
	if got := l.BalanceOf(trader2, dai); !got.IsZero() {
		t.Errorf("trader2 balance = %s after rejected deposit", got)
	}
}

func TestBatchSettle(t *testing.T) {
	l := newTestLedger(t)
	mustDeposit(t, l, trader1, dai, 100)
	mustDeposit(t, l, trader2, rep, 100)

	b := l.Begin()
	// trader1 buys 5 REP at 10 from trader2
	if err := b.Settle(trader1, trader2, rep, dai, u(5), u(50)); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	// staged, not yet visible
	if got := l.BalanceOf(trader1, dai); !got.EQ(u(100)) {
		t.Errorf("ledger changed before commit: %s", got)
	}
	if got := b.Balance(trader1, dai); !got.EQ(u(50)) {
		t.Errorf("staged buyer base = %s, want 50", got)
	}

	b.Commit()

	want := []struct {
		trader common.Address
		ticker asset.Ticker
		amount uint64
	}{
		{trader1, dai, 50},
		{trader1, rep, 5},
		{trader2, dai, 50},
		{trader2, rep, 95},
	}
	for _, w := range want {
		if got := l.BalanceOf(w.trader, w.ticker); !got.EQ(u(w.amount)) {
			t.Errorf("%s %s = %s, want %d", w.trader.Hex()[:6], w.ticker, got, w.amount)
		}
	}
	for _, tk := range []asset.Ticker{dai, rep} {
		if got := l.Total(tk); !got.EQ(u(100)) {
			t.Errorf("total %s = %s, want 100", tk, got)
		}
	}
}

func TestBatchSettleFailureStagesNothing(t *testing.T) {
	l := newTestLedger(t)
	mustDeposit(t, l, trader1, dai, 100)
	mustDeposit(t, l, trader2, rep, 3)

	b := l.Begin()
	err := b.Settle(trader1, trader2, rep, dai, u(5), u(50))
	if !errors.Is(err, ErrInsufficientTokenBalance) {
		t.Fatalf("err = %v, want ErrInsufficientTokenBalance", err)
	}
	if got := b.Balance(trader1, dai); !got.EQ(u(100)) {
		t.Errorf("buyer leg was staged on failure: %s", got)
	}

	err = b.Settle(trader1, trader2, rep, dai, u(1), u(101))
	if !errors.Is(err, ErrInsufficientBaseBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBaseBalance", err)
	}
}

func TestBatchDroppedLeavesLedger(t *testing.T) {
	l := newTestLedger(t)
	mustDeposit(t, l, trader1, dai, 100)
	mustDeposit(t, l, trader2, rep, 100)
	before := stateHash(l)

	b := l.Begin()
	if err := b.Settle(trader1, trader2, rep, dai, u(5), u(50)); err != nil {
		t.Fatal(err)
	}
	if err := b.Settle(trader1, trader2, rep, dai, u(6), u(60)); !errors.Is(err, ErrInsufficientBaseBalance) {
		t.Fatalf("second leg err = %v", err)
	}
	// no commit

	if stateHash(l) != before {
		t.Errorf("dropped batch modified the ledger")
	}
}

func TestBatchSelfTrade(t *testing.T) {
	l := newTestLedger(t)
	mustDeposit(t, l, trader1, dai, 100)
	mustDeposit(t, l, trader1, rep, 10)
	before := stateHash(l)

	b := l.Begin()
	if err := b.Settle(trader1, trader1, rep, dai, u(10), u(100)); err != nil {
		t.Fatal(err)
	}
	b.Commit()

	if stateHash(l) != before {
		t.Errorf("self trade changed balances")
	}
}

func mustDeposit(t *testing.T, l *Ledger, trader common.Address, ticker asset.Ticker, amount uint64) {
	t.Helper()
	if err := l.Deposit(trader, ticker, u(amount)); err != nil {
		t.Fatalf("deposit %d %s: %v", amount, ticker, err)
	}
}
