package orderbook

import (
	"hash"
	"iter"
	"sync"

	"github.com/pkg/errors"
	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/num"
)

// PriceLevel is the aggregated depth at one price.
type PriceLevel struct {
	Price  num.Uint `json:"price"`
	Amount num.Uint `json:"amount"` // total remaining amount at this price, saturating at num.Max
	Orders int      `json:"orders"`
}

// Book holds the resting limit orders of one asset.
// Bids are ranked by price descending, asks by price ascending, ties by
// ascending ID. Orders leave the book only from the front of a side.
type Book struct {
	mu     sync.RWMutex
	ticker asset.Ticker
	bids   *BookSide
	asks   *BookSide
}

func NewBook(ticker asset.Ticker) *Book {
	return &Book{
		ticker: ticker,
		bids:   newBookSide(Buy),
		asks:   newBookSide(Sell),
	}
}

func (b *Book) Ticker() asset.Ticker { return b.ticker }

func (b *Book) side(s Side) *BookSide {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Insert places an order behind every order at a better or equal price.
func (b *Book) Insert(o *Order) error {
	if !o.Side.Valid() {
		return errors.Wrapf(ErrInvalidSide, "order %d", o.ID)
	}
	if o.Ticker != b.ticker {
		return errors.Errorf("order %d for %s inserted into %s book", o.ID, o.Ticker, b.ticker)
	}
	if o.IsFilled() {
		return errors.Errorf("order %d has nothing left to rest", o.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.side(o.Side).insert(o)
	return nil
}

// Best returns the top resting order of a side.
func (b *Book) Best(s Side) (*Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.side(s).best()
}

// Fill adds amount to the filled amount of the best order of its side and
// removes the order once nothing remains.
func (b *Book) Fill(o *Order, amount num.Uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.side(o.Side)
	best, ok := s.best()
	if !ok || best != o {
		return errors.Wrapf(ErrNotBest, "order %d", o.ID)
	}
	filled, overflow := o.Filled.Add(amount)
	if overflow || filled.GT(o.Amount) {
		return errors.Wrapf(ErrOverfill, "order %d remaining %s, fill %s", o.ID, o.Remaining(), amount)
	}
	o.Filled = filled
	if o.IsFilled() {
		s.popBest()
	}
	return nil
}

// Walk visits the live orders of a side in priority order until fn returns
// false. fn must not modify the book.
func (b *Book) Walk(s Side, fn func(*Order) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.side(s).walk(fn)
}

// Orders yields copies of the resting orders in priority order.
func (b *Book) Orders(s Side) iter.Seq[Order] {
	snapshot := b.Snapshot(s)
	return func(yield func(Order) bool) {
		for _, o := range snapshot {
			if !yield(o) {
				return
			}
		}
	}
}

// Snapshot copies the resting orders of a side in priority order.
func (b *Book) Snapshot(s Side) []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	side := b.side(s)
	out := make([]Order, 0, side.count)
	side.walk(func(o *Order) bool {
		out = append(out, *o)
		return true
	})
	return out
}

// Levels returns aggregated depth per price, best first.
func (b *Book) Levels(s Side) []PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.side(s).depth()
}

func (b *Book) Len(s Side) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.side(s).count
}

// Hash writes both sides, bids first, to h.
func (b *Book) Hash(h hash.Hash) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h.Write(b.ticker[:])
	b.bids.hash(h)
	h.Write([]byte{0xff})
	b.asks.hash(h)
}
