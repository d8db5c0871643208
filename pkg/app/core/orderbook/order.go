package orderbook

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/num"
)

var (
	// ErrInvalidSide signals a side other than Buy or Sell
	ErrInvalidSide = errors.New("invalid side")
	// ErrNotBest signals a fill against an order that is not at the top of its side
	ErrNotBest = errors.New("order is not the best on its side")
	// ErrOverfill signals a fill larger than the remaining amount
	ErrOverfill = errors.New("fill exceeds remaining amount")
)

// Side of the book. The numeric values match the signed order encoding.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, errors.Wrapf(ErrInvalidSide, "%q", s)
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Wrapf(ErrInvalidSide, "%d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	v, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Order is a resting limit order. Filled only grows and never exceeds Amount.
type Order struct {
	ID     uint64         `json:"id"`
	Trader common.Address `json:"trader"`
	Ticker asset.Ticker   `json:"ticker"`
	Side   Side           `json:"side"`
	Price  num.Uint       `json:"price"`
	Amount num.Uint       `json:"amount"`
	Filled num.Uint       `json:"filled"`
}

func (o *Order) Remaining() num.Uint {
	r, _ := o.Amount.Sub(o.Filled)
	return r
}

func (o *Order) IsFilled() bool {
	return o.Filled.GTE(o.Amount)
}
