package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/num"
)

// Batch stages trade settlements against a ledger. Nothing is visible to
// the ledger until Commit; a batch that is dropped leaves it untouched.
type Batch struct {
	l      *Ledger
	staged map[key]num.Uint // absolute balances after the staged legs
	order  []key            // first-touch order, for a stable commit
}

// Begin opens a batch. Only one batch may be committed per ledger state;
// the caller must serialize Begin..Commit with other writes.
func (l *Ledger) Begin() *Batch {
	return &Batch{
		l:      l,
		staged: make(map[key]num.Uint),
	}
}

// Balance returns the balance as the batch would leave it.
func (b *Batch) Balance(trader common.Address, ticker asset.Ticker) num.Uint {
	return b.get(key{trader, ticker})
}

// Settle stages both legs of one fill: amount of ticker moves seller to
// buyer and cost of base moves buyer to seller. Either both legs are staged
// or, on error, neither is.
func (b *Batch) Settle(buyer, seller common.Address, ticker, base asset.Ticker, amount, cost num.Uint) error {
	buyerBase := b.get(key{buyer, base})
	if buyerBase.LT(cost) {
		return errors.Wrapf(ErrInsufficientBaseBalance, "buyer %s has %s, needs %s", buyer.Hex(), buyerBase, cost)
	}
	sellerToken := b.get(key{seller, ticker})
	if sellerToken.LT(amount) {
		return errors.Wrapf(ErrInsufficientTokenBalance, "seller %s has %s, needs %s %s", seller.Hex(), sellerToken, amount, ticker)
	}

	// debits first so that a self-trade nets to zero
	b.debit(key{buyer, base}, cost)
	b.debit(key{seller, ticker}, amount)
	b.credit(key{seller, base}, cost)
	b.credit(key{buyer, ticker}, amount)
	return nil
}

// Commit applies every staged balance to the ledger.
func (b *Batch) Commit() {
	b.l.mu.Lock()
	defer b.l.mu.Unlock()

	for _, k := range b.order {
		b.l.set(k, b.staged[k])
	}
	b.staged = make(map[key]num.Uint)
	b.order = nil
}

func (b *Batch) get(k key) num.Uint {
	if v, ok := b.staged[k]; ok {
		return v
	}
	return b.l.BalanceOf(k.trader, k.ticker)
}

func (b *Batch) put(k key, v num.Uint) {
	if _, ok := b.staged[k]; !ok {
		b.order = append(b.order, k)
	}
	b.staged[k] = v
}

func (b *Batch) debit(k key, v num.Uint) {
	cur, _ := b.get(k).Sub(v)
	b.put(k, cur)
}

// credits cannot overflow: a balance never exceeds the asset total
func (b *Batch) credit(k key, v num.Uint) {
	cur, _ := b.get(k).Add(v)
	b.put(k, cur)
}
