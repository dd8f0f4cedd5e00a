package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModArithmeticStaysCanonical(t *testing.T) {
	p := Modulus()
	a := new(big.Int).Sub(p, big.NewInt(1))
	b := big.NewInt(2)

	sum := AddMod(a, b)
	require.Equal(t, big.NewInt(1), sum, "p-1 + 2 should wrap to 1 mod p")

	diff := SubMod(b, a)
	require.True(t, diff.Sign() >= 0, "SubMod must never return a negative value")

	prod := MulMod(a, b)
	require.True(t, prod.Cmp(p) < 0)
}

func TestInRangeRejectsSubgroupOrderAndAbove(t *testing.T) {
	require.True(t, InRange(big.NewInt(0)))
	require.True(t, InRange(new(big.Int).Sub(SubgroupOrder(), big.NewInt(1))))
	require.False(t, InRange(SubgroupOrder()))
	require.False(t, InRange(big.NewInt(-1)))
}

func TestScalarBaseMulMatchesScalarMulOnBase8(t *testing.T) {
	k := big.NewInt(12345)
	got := ScalarBaseMul(k)
	want := ScalarMul(k, Base8())
	require.True(t, Equal(got, want))
}

func TestScalarMulByZeroIsIdentity(t *testing.T) {
	got := ScalarMul(big.NewInt(0), Base8())
	require.True(t, Equal(got, Identity()))
}

func TestAddIsCommutative(t *testing.T) {
	a := ScalarBaseMul(big.NewInt(7))
	b := ScalarBaseMul(big.NewInt(19))
	require.True(t, Equal(Add(a, b), Add(b, a)))
}

func TestNegThenAddIsIdentity(t *testing.T) {
	a := ScalarBaseMul(big.NewInt(42))
	require.True(t, Equal(Add(a, Neg(a)), Identity()))
}

func TestBase8IsInSubgroup(t *testing.T) {
	require.True(t, InSubgroup(Base8()))
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	orig := ScalarBaseMul(big.NewInt(987654321))
	buf := Compress(orig)
	got, err := Decompress(buf)
	require.NoError(t, err)
	require.True(t, Equal(orig, got))
}

func TestDecompressRejectsOffCurveBytes(t *testing.T) {
	var buf [32]byte
	for i := range buf {
		buf[i] = 0xFF
	}
	_, err := Decompress(buf)
	require.Error(t, err)
}
