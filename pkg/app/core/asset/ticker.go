package asset

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// TickerLength is the fixed width of a ticker symbol.
const TickerLength = 32

// Ticker is a fixed-width asset symbol, right padded with zero bytes.
// Two tickers are the same asset iff their bytes are equal.
type Ticker [TickerLength]byte

// NewTicker builds a ticker from a symbol such as "DAI".
func NewTicker(symbol string) (Ticker, error) {
	var t Ticker
	if symbol == "" {
		return t, errors.Wrap(ErrInvalidTicker, "empty symbol")
	}
	if len(symbol) > TickerLength {
		return t, errors.Wrapf(ErrInvalidTicker, "symbol %q longer than %d bytes", symbol, TickerLength)
	}
	copy(t[:], symbol)
	return t, nil
}

// MustTicker is NewTicker for constants and tests.
func MustTicker(symbol string) Ticker {
	t, err := NewTicker(symbol)
	if err != nil {
		panic(err)
	}
	return t
}

// TickerFromHex decodes the 0x-prefixed bytes32 form used by signed commands.
func TickerFromHex(s string) (Ticker, error) {
	var t Ticker
	b, err := hexutil.Decode(s)
	if err != nil {
		return t, errors.Wrapf(ErrInvalidTicker, "bad hex %q: %v", s, err)
	}
	if len(b) > TickerLength {
		return t, errors.Wrapf(ErrInvalidTicker, "%d bytes", len(b))
	}
	copy(t[:], b)
	if t.IsZero() {
		return t, errors.Wrap(ErrInvalidTicker, "zero ticker")
	}
	return t, nil
}

// ParseTicker accepts either a plain symbol or the 0x hex form.
func ParseTicker(s string) (Ticker, error) {
	if strings.HasPrefix(s, "0x") && len(s) == 2+2*TickerLength {
		return TickerFromHex(s)
	}
	return NewTicker(s)
}

func (t Ticker) IsZero() bool {
	return t == Ticker{}
}

func (t Ticker) Equal(o Ticker) bool {
	return t == o
}

// String trims the zero padding.
func (t Ticker) String() string {
	return string(bytes.TrimRight(t[:], "\x00"))
}

func (t Ticker) Hex() string {
	return hexutil.Encode(t[:])
}

// Text is the symbol, or the hex form when the symbol is not valid UTF-8
// and would not survive a text round trip.
func (t Ticker) Text() string {
	sym := bytes.TrimRight(t[:], "\x00")
	if !utf8.Valid(sym) {
		return t.Hex()
	}
	return string(sym)
}

func (t Ticker) MarshalText() ([]byte, error) {
	return []byte(t.Text()), nil
}

func (t *Ticker) UnmarshalText(text []byte) error {
	v, err := ParseTicker(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
