package num

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Uint is an unsigned 256 bit integer with value semantics.
// Every arithmetic helper reports overflow instead of wrapping.
type Uint struct {
	u uint256.Int
}

// Zero is the zero amount.
var Zero = Uint{}

// Max is 2^256-1.
var Max = Uint{*new(uint256.Int).Not(new(uint256.Int))}

// NewUint creates a new Uint with the value of the uint64 passed.
func NewUint(val uint64) Uint {
	return Uint{*uint256.NewInt(val)}
}

// UintFromString parses a base 10 string. Leading signs, fractions and
// values above 2^256-1 are rejected.
func UintFromString(str string) (Uint, error) {
	if str == "" {
		return Uint{}, fmt.Errorf("invalid amount: empty string")
	}
	if str[0] == '+' || str[0] == '-' {
		return Uint{}, fmt.Errorf("invalid amount %q: sign not allowed", str)
	}
	v, err := uint256.FromDecimal(str)
	if err != nil {
		return Uint{}, fmt.Errorf("invalid amount %q: %w", str, err)
	}
	return Uint{*v}, nil
}

// UintFromBig returns true if the value does not fit into 256 bits.
func UintFromBig(b *big.Int) (Uint, bool) {
	if b == nil || b.Sign() < 0 {
		return Uint{}, true
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return Uint{}, true
	}
	return Uint{*u}, false
}

// Min returns the smallest of the 2 numbers
func Min(a, b Uint) Uint {
	if a.LT(b) {
		return a
	}
	return b
}

// Add returns x + y, and true if the sum overflowed.
func (x Uint) Add(y Uint) (Uint, bool) {
	var z Uint
	_, overflow := z.u.AddOverflow(&x.u, &y.u)
	return z, overflow
}

// Sub returns x - y, and true if y > x.
func (x Uint) Sub(y Uint) (Uint, bool) {
	var z Uint
	_, underflow := z.u.SubOverflow(&x.u, &y.u)
	return z, underflow
}

// Mul returns x * y, and true if the product overflowed.
func (x Uint) Mul(y Uint) (Uint, bool) {
	var z Uint
	_, overflow := z.u.MulOverflow(&x.u, &y.u)
	return z, overflow
}

func (x Uint) Cmp(y Uint) int { return x.u.Cmp(&y.u) }
func (x Uint) LT(y Uint) bool { return x.u.Lt(&y.u) }
func (x Uint) GT(y Uint) bool { return x.u.Gt(&y.u) }
func (x Uint) LTE(y Uint) bool { return !x.u.Gt(&y.u) }
func (x Uint) GTE(y Uint) bool { return !x.u.Lt(&y.u) }
func (x Uint) EQ(y Uint) bool { return x.u.Eq(&y.u) }
func (x Uint) IsZero() bool   { return x.u.IsZero() }

// Uint64 returns the low 64 bits and whether the value fits.
func (x Uint) Uint64() (uint64, bool) {
	return x.u.Uint64(), x.u.IsUint64()
}

func (x Uint) BigInt() *big.Int {
	return x.u.ToBig()
}

// Bytes32 returns the big endian representation, left padded.
func (x Uint) Bytes32() [32]byte {
	return x.u.Bytes32()
}

// Float64 is lossy and only meant for metrics.
func (x Uint) Float64() float64 {
	f, _ := new(big.Float).SetInt(x.u.ToBig()).Float64()
	return f
}

func (x Uint) String() string {
	return x.u.Dec()
}

// MarshalJSON encodes the value as a quoted decimal string so that wei-scale
// amounts survive JavaScript clients.
func (x Uint) MarshalJSON() ([]byte, error) {
	return json.Marshal(x.u.Dec())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON integer.
func (x *Uint) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	v, err := UintFromString(s)
	if err != nil {
		return err
	}
	*x = v
	return nil
}
