package num_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uhyunpark/custodex/pkg/num"
)

func TestUintConstructors(t *testing.T) {
	var expected uint64 = 42

	t.Run("from uint64", func(t *testing.T) {
		n, ok := num.NewUint(expected).Uint64()
		assert.True(t, ok)
		assert.Equal(t, expected, n)
	})

	t.Run("from string", func(t *testing.T) {
		n, err := num.UintFromString("42")
		require.NoError(t, err)
		assert.True(t, n.EQ(num.NewUint(expected)))
	})

	t.Run("from string rejects garbage", func(t *testing.T) {
		for _, s := range []string{"", "-1", "+1", "+0", "1.5", "abc"} {
			_, err := num.UintFromString(s)
			assert.Error(t, err, s)
		}
	})

	t.Run("from big", func(t *testing.T) {
		n, overflow := num.UintFromBig(big.NewInt(42))
		assert.False(t, overflow)
		assert.True(t, n.EQ(num.NewUint(expected)))

		_, overflow = num.UintFromBig(big.NewInt(-1))
		assert.True(t, overflow)

		_, overflow = num.UintFromBig(new(big.Int).Lsh(big.NewInt(1), 256))
		assert.True(t, overflow)
	})
}

func TestUintArithmetic(t *testing.T) {
	ten := num.NewUint(10)
	five := num.NewUint(5)

	sum, overflow := ten.Add(five)
	assert.False(t, overflow)
	assert.Equal(t, "15", sum.String())

	diff, underflow := ten.Sub(five)
	assert.False(t, underflow)
	assert.Equal(t, "5", diff.String())

	_, underflow = five.Sub(ten)
	assert.True(t, underflow)

	prod, overflow := ten.Mul(five)
	assert.False(t, overflow)
	assert.Equal(t, "50", prod.String())

	// operands are values, nothing was mutated
	assert.Equal(t, "10", ten.String())
	assert.Equal(t, "5", five.String())
}

func TestUintOverflow(t *testing.T) {
	maxVal, err := num.UintFromString("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)

	assert.True(t, maxVal.EQ(num.Max))

	_, overflow := maxVal.Add(num.NewUint(1))
	assert.True(t, overflow)

	_, overflow = maxVal.Mul(num.NewUint(2))
	assert.True(t, overflow)

	wei, err := num.UintFromString("1000000000000000000000")
	require.NoError(t, err)
	_, overflow = wei.Mul(wei)
	assert.False(t, overflow)
}

func TestUintCompare(t *testing.T) {
	a, b := num.NewUint(1), num.NewUint(2)
	assert.True(t, a.LT(b))
	assert.True(t, a.LTE(b))
	assert.True(t, b.GT(a))
	assert.True(t, b.GTE(a))
	assert.True(t, a.GTE(a))
	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, a, num.Min(a, b))
	assert.Equal(t, a, num.Min(b, a))
	assert.True(t, num.Zero.IsZero())
	assert.False(t, a.IsZero())
}

func TestUintJSON(t *testing.T) {
	wei, err := num.UintFromString("5000000000000000000")
	require.NoError(t, err)

	data, err := json.Marshal(wei)
	require.NoError(t, err)
	assert.Equal(t, `"5000000000000000000"`, string(data))

	var quoted, bare num.Uint
	require.NoError(t, json.Unmarshal(data, &quoted))
	require.NoError(t, json.Unmarshal([]byte(`7`), &bare))
	assert.True(t, quoted.EQ(wei))
	assert.Equal(t, "7", bare.String())

	assert.Error(t, json.Unmarshal([]byte(`"-3"`), &bare))
}
