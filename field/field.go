// Package field exposes the scalar-field and BabyJubJub curve arithmetic
// shared by every other package in this module: field reduction mod the
// SNARK scalar field p, scalar reduction mod the BabyJubJub subgroup order
// ℓ, and point operations on the curve itself.
package field

import (
	"errors"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
	iden3constants "github.com/iden3/go-iden3-crypto/constants"
)

// ErrInvalidPoint is returned when a deserialized point is off-curve or
// off-subgroup.
var ErrInvalidPoint = errors.New("field: invalid point")

// ErrOutOfRange is returned when a scalar does not satisfy 0 <= k < ℓ.
var ErrOutOfRange = errors.New("field: scalar out of range")

// Modulus returns the SNARK scalar field modulus p.
func Modulus() *big.Int {
	return new(big.Int).Set(iden3constants.Q)
}

// SubgroupOrder returns the BabyJubJub prime-order subgroup order ℓ.
func SubgroupOrder() *big.Int {
	return new(big.Int).Set(babyjub.SubOrder)
}

// Mod reduces x into the canonical range [0, p).
func Mod(x *big.Int) *big.Int {
	return new(big.Int).Mod(x, Modulus())
}

// ModOrder reduces x into the canonical range [0, ℓ).
func ModOrder(x *big.Int) *big.Int {
	return new(big.Int).Mod(x, SubgroupOrder())
}

// AddMod returns (a+b) mod p.
func AddMod(a, b *big.Int) *big.Int {
	return Mod(new(big.Int).Add(a, b))
}

// MulMod returns (a*b) mod p.
func MulMod(a, b *big.Int) *big.Int {
	return Mod(new(big.Int).Mul(a, b))
}

// SubMod returns (a-b) mod p, always non-negative.
func SubMod(a, b *big.Int) *big.Int {
	return Mod(new(big.Int).Sub(a, b))
}

// InRange reports whether 0 <= k < ℓ, the bound the keypair module must
// enforce on every scalar it generates or imports: a naive
// check against 2^253 instead of ℓ admits colliding public keys.
func InRange(k *big.Int) bool {
	return k.Sign() >= 0 && k.Cmp(SubgroupOrder()) < 0
}

// Point is a BabyJubJub affine point.
type Point struct {
	X, Y *big.Int
}

// Base8 is G8, the fixed generator of the prime-order subgroup.
func Base8() *Point {
	b := babyjub.B8
	return &Point{X: new(big.Int).Set(b.X), Y: new(big.Int).Set(b.Y)}
}

// Identity is the curve's neutral element.
func Identity() *Point {
	return &Point{X: big.NewInt(0), Y: big.NewInt(1)}
}

func (p *Point) toBabyjub() *babyjub.Point {
	return &babyjub.Point{X: new(big.Int).Set(p.X), Y: new(big.Int).Set(p.Y)}
}

func fromBabyjub(bp *babyjub.Point) *Point {
	return &Point{X: new(big.Int).Set(bp.X), Y: new(big.Int).Set(bp.Y)}
}

// Add returns a+b on the curve.
func Add(a, b *Point) *Point {
	res := babyjub.NewPointProjective().Add(a.toBabyjub().Projective(), b.toBabyjub().Projective())
	return fromBabyjub(res.Affine())
}

// ScalarMul returns k*p (variable-base scalar multiplication).
func ScalarMul(k *big.Int, p *Point) *Point {
	res := babyjub.NewPoint().Mul(k, p.toBabyjub())
	return fromBabyjub(res)
}

// ScalarBaseMul returns k*G8 (fixed-base scalar multiplication).
func ScalarBaseMul(k *big.Int) *Point {
	return ScalarMul(k, Base8())
}

// Neg returns -p.
func Neg(p *Point) *Point {
	return &Point{X: Mod(new(big.Int).Neg(p.X)), Y: new(big.Int).Set(p.Y)}
}

// Equal reports whether a and b are the same affine point.
func Equal(a, b *Point) bool {
	return a.X.Cmp(b.X) == 0 && a.Y.Cmp(b.Y) == 0
}

// InSubgroup reports whether p is on-curve and in the prime-order
// subgroup. Every point deserialized from the wire must pass this check
// before it is accepted.
func InSubgroup(p *Point) bool {
	bp := p.toBabyjub()
	return bp.InCurve() && bp.InSubGroup()
}

// Decompress unpacks a 32-byte little-endian compressed point, returning
// ErrInvalidPoint if it is off-curve.
func Decompress(buf [32]byte) (*Point, error) {
	q, err := babyjub.NewPoint().Decompress(buf)
	if err != nil {
		return nil, ErrInvalidPoint
	}
	return fromBabyjub(q), nil
}

// Compress packs p into its 32-byte little-endian compressed form.
func Compress(p *Point) [32]byte {
	return p.toBabyjub().Compress()
}
