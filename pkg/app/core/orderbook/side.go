package orderbook

import (
	"encoding/binary"
	"hash"

	"github.com/google/btree"
	"github.com/uhyunpark/custodex/pkg/num"
)

// level is a FIFO of orders sharing one price. IDs are allocated
// monotonically, so append order is ascending ID order.
type level struct {
	price  num.Uint
	orders []*Order
}

// BookSide holds one side of a book with the best level first.
type BookSide struct {
	side   Side
	levels *btree.BTreeG[*level]
	count  int
}

func newBookSide(side Side) *BookSide {
	less := func(a, b *level) bool { return a.price.LT(b.price) }
	if side == Buy {
		less = func(a, b *level) bool { return a.price.GT(b.price) }
	}
	return &BookSide{
		side:   side,
		levels: btree.NewG(32, less),
	}
}

func (s *BookSide) insert(o *Order) {
	lvl, ok := s.levels.Get(&level{price: o.Price})
	if !ok {
		lvl = &level{price: o.Price}
		s.levels.ReplaceOrInsert(lvl)
	}
	lvl.orders = append(lvl.orders, o)
	s.count++
}

func (s *BookSide) best() (*Order, bool) {
	lvl, ok := s.levels.Min()
	if !ok {
		return nil, false
	}
	return lvl.orders[0], true
}

func (s *BookSide) popBest() {
	lvl, ok := s.levels.Min()
	if !ok {
		return
	}
	lvl.orders[0] = nil
	lvl.orders = lvl.orders[1:]
	if len(lvl.orders) == 0 {
		s.levels.DeleteMin()
	}
	s.count--
}

// walk visits orders best first until fn returns false.
func (s *BookSide) walk(fn func(*Order) bool) {
	s.levels.Ascend(func(lvl *level) bool {
		for _, o := range lvl.orders {
			if !fn(o) {
				return false
			}
		}
		return true
	})
}

func (s *BookSide) depth() []PriceLevel {
	out := make([]PriceLevel, 0, s.levels.Len())
	s.levels.Ascend(func(lvl *level) bool {
		pl := PriceLevel{Price: lvl.price, Orders: len(lvl.orders)}
		for _, o := range lvl.orders {
			sum, overflow := pl.Amount.Add(o.Remaining())
			if overflow {
				// orders are not escrowed, so a level can exceed 256 bits
				pl.Amount = num.Max
				break
			}
			pl.Amount = sum
		}
		out = append(out, pl)
		return true
	})
	return out
}

func (s *BookSide) hash(h hash.Hash) {
	var id [8]byte
	s.walk(func(o *Order) bool {
		binary.BigEndian.PutUint64(id[:], o.ID)
		price, amount, filled := o.Price.Bytes32(), o.Amount.Bytes32(), o.Filled.Bytes32()
		h.Write(id[:])
		h.Write(o.Trader[:])
		h.Write(price[:])
		h.Write(amount[:])
		h.Write(filled[:])
		return true
	})
}
