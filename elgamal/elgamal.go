// Package elgamal implements the odd/even ElGamal deactivation codec on
// BabyJubJub: the parity of the decrypted x-coordinate
// carries the single secret bit that marks a voter state leaf active
// (even) or deactivated (odd), without revealing which.
package elgamal

import (
	"errors"
	"math/big"

	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/poseidon"
)

// ErrDecryptionInvalid is returned when a ciphertext component is not on
// the prime-order subgroup.
var ErrDecryptionInvalid = errors.New("elgamal: invalid ciphertext")

// Ciphertext is an ElGamal odd/even ciphertext plus the auxiliary
// xIncrement Encode derived the masking point from. Decrypt recovers the
// masking point exactly and never needs it; it is carried only so a
// future circuit holding the original randomness can reconstruct the
// same derivation.
type Ciphertext struct {
	C1         *field.Point
	C2         *field.Point
	XIncrement *big.Int
}

// derivePoint samples an auxiliary point M = (Mx, My) deterministically
// from a seed: hash the seed with Poseidon and lift the result onto the
// curve via scalar multiplication of the base point. Encode keeps drawing
// M until the low bit of M's x-coordinate equals the encoded bit.
func derivePoint(base int64, seed *big.Int) *field.Point {
	h, err := poseidon.Hash2([2]*big.Int{big.NewInt(base), seed})
	if err != nil {
		panic(err) // unreachable: Hash2 only fails on arity mismatch
	}
	scalar := field.ModOrder(h)
	return field.ScalarBaseMul(scalar)
}

// Encode encrypts parity bit b under public key Y with scalar r,
// producing a ciphertext whose decryption's low bit recovers b.
func Encode(b bool, y *field.Point, r *big.Int) *Ciphertext {
	want := int64(0)
	if b {
		want = 1
	}

	seed := r
	i := int64(0)
	var m *field.Point
	for {
		m = derivePoint(123, field.AddMod(seed, big.NewInt(i)))
		if new(big.Int).Mod(m.X, big.NewInt(2)).Int64() == want {
			break
		}
		i++
	}
	xIncrement := field.SubMod(m.X, big.NewInt(123))

	c1 := field.ScalarBaseMul(r)
	yr := field.ScalarMul(r, y)
	c2 := field.Add(yr, m)

	return &Ciphertext{C1: c1, C2: c2, XIncrement: xIncrement}
}

// Decrypt decrypts ct with private scalar sk, returning the masked
// plaintext field element whose low bit is the encoded parity. Standard
// ElGamal decryption (C2 - sk*C1) recovers the masking point M exactly, so
// XIncrement plays no role here; it exists only to let a circuit that
// knows the original randomness r reconstruct M's derivation deterministically.
func Decrypt(sk *big.Int, ct *Ciphertext) (*big.Int, error) {
	if !field.InSubgroup(ct.C1) || !field.InSubgroup(ct.C2) {
		return nil, ErrDecryptionInvalid
	}
	skC1 := field.ScalarMul(sk, ct.C1)
	mPrime := field.Add(ct.C2, field.Neg(skC1))
	return field.Mod(mPrime.X), nil
}

// DecryptParity is a convenience wrapper returning only the low bit.
func DecryptParity(sk *big.Int, ct *Ciphertext) (bool, error) {
	m, err := Decrypt(sk, ct)
	if err != nil {
		return false, err
	}
	return new(big.Int).Mod(m, big.NewInt(2)).Int64() == 1, nil
}

// Rerandomize re-encrypts ct under the same public key y with a fresh
// scalar r2, preserving the plaintext point (and hence its parity) while
// producing ciphertext bytes that differ from ct.
func Rerandomize(y *field.Point, ct *Ciphertext, r2 *big.Int) *Ciphertext {
	d1 := field.Add(ct.C1, field.ScalarBaseMul(r2))
	d2 := field.Add(ct.C2, field.ScalarMul(r2, y))
	return &Ciphertext{C1: d1, C2: d2, XIncrement: new(big.Int).Set(ct.XIncrement)}
}
