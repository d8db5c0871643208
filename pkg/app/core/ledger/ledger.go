package ledger

import (
	"bytes"
	"hash"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/num"
)

var (
	// ErrInsufficientWithdrawableBalance is returned when a withdrawal exceeds the balance
	ErrInsufficientWithdrawableBalance = errors.New("insufficient withdrawable balance")
	// ErrInsufficientTokenBalance is returned when a seller cannot deliver the traded asset
	ErrInsufficientTokenBalance = errors.New("insufficient token balance")
	// ErrInsufficientBaseBalance is returned when a buyer cannot pay in the base currency
	ErrInsufficientBaseBalance = errors.New("insufficient base balance")
	// ErrAmountOverflow is returned when a credit would exceed 2^256-1
	ErrAmountOverflow = errors.New("amount overflow")
)

// Assets is the membership check the ledger needs from the registry.
type Assets interface {
	Has(asset.Ticker) bool
}

type key struct {
	trader common.Address
	ticker asset.Ticker
}

// Ledger holds custodial balances keyed by (trader, asset).
// Deposit and Withdraw are the only ways funds enter or leave; trades move
// funds between traders through a Batch and never change Total.
type Ledger struct {
	mu       sync.RWMutex
	assets   Assets
	balances map[key]num.Uint
	totals   map[asset.Ticker]num.Uint
}

func New(assets Assets) *Ledger {
	return &Ledger{
		assets:   assets,
		balances: make(map[key]num.Uint),
		totals:   make(map[asset.Ticker]num.Uint),
	}
}

// Deposit credits funds the caller has already taken into custody.
// A zero amount is a no-op once the asset is known.
func (l *Ledger) Deposit(trader common.Address, ticker asset.Ticker, amount num.Uint) error {
	if !l.assets.Has(ticker) {
		return errors.Wrapf(asset.ErrAssetNotFound, "deposit %s", ticker)
	}
	if amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// every balance is bounded by the asset total, so checking the total is enough
	total, overflow := l.totals[ticker].Add(amount)
	if overflow {
		return errors.Wrapf(ErrAmountOverflow, "deposit %s %s", amount, ticker)
	}
	k := key{trader, ticker}
	balance, _ := l.balances[k].Add(amount)

	l.balances[k] = balance
	l.totals[ticker] = total
	return nil
}

// Withdraw debits funds that the caller will release from custody.
// A zero amount is a no-op once the asset is known.
func (l *Ledger) Withdraw(trader common.Address, ticker asset.Ticker, amount num.Uint) error {
	if !l.assets.Has(ticker) {
		return errors.Wrapf(asset.ErrAssetNotFound, "withdraw %s", ticker)
	}
	if amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{trader, ticker}
	have := l.balances[k]
	balance, underflow := have.Sub(amount)
	if underflow {
		return errors.Wrapf(ErrInsufficientWithdrawableBalance, "have %s, need %s %s", have, amount, ticker)
	}
	total, _ := l.totals[ticker].Sub(amount)

	l.set(k, balance)
	l.totals[ticker] = total
	return nil
}

// BalanceOf returns zero for traders that never held the asset.
func (l *Ledger) BalanceOf(trader common.Address, ticker asset.Ticker) num.Uint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[key{trader, ticker}]
}

// Total is the sum of all balances of an asset.
func (l *Ledger) Total(ticker asset.Ticker) num.Uint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals[ticker]
}

// Hash writes every non-zero balance to h in (trader, ticker) order.
func (l *Ledger) Hash(h hash.Hash) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]key, 0, len(l.balances))
	for k := range l.balances {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key) int {
		if c := bytes.Compare(a.trader[:], b.trader[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.ticker[:], b.ticker[:])
	})

	for _, k := range keys {
		amount := l.balances[k].Bytes32()
		h.Write(k.trader[:])
		h.Write(k.ticker[:])
		h.Write(amount[:])
	}
}

// set assumes the write lock is held. Zero balances are dropped so that a
// deposit followed by an equal withdrawal leaves no trace.
func (l *Ledger) set(k key, v num.Uint) {
	if v.IsZero() {
		delete(l.balances, k)
		return
	}
	l.balances[k] = v
}
