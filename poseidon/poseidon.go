// Package poseidon wraps github.com/iden3/go-iden3-crypto's Poseidon
// permutation with the fixed arities this protocol uses, plus the
// EVM-compatible SHA-256 input-hash helper consumed by the Groth16
// verifier contracts.
package poseidon

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	iden3poseidon "github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/kysee/amaci-core/field"
)

// MaxArity is the largest arity this package's fixed-width helpers accept.
const MaxArity = 5

// HashN hashes exactly len(xs) field elements using the Poseidon-T(N+1)
// permutation, for N in {2,3,4,5}. It fails if len(xs) is outside that
// range.
func HashN(xs []*big.Int) (*big.Int, error) {
	n := len(xs)
	if n < 2 || n > MaxArity {
		return nil, fmt.Errorf("poseidon: hashN arity %d out of range [2,%d]", n, MaxArity)
	}
	return iden3poseidon.Hash(xs)
}

// HashUpTo zero-pads xs on the right to width n and hashes. It fails if
// len(xs) > n.
func HashUpTo(n int, xs []*big.Int) (*big.Int, error) {
	if len(xs) > n {
		return nil, fmt.Errorf("poseidon: hashUpTo(%d) given %d inputs", n, len(xs))
	}
	padded := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		if i < len(xs) {
			padded[i] = xs[i]
		} else {
			padded[i] = big.NewInt(0)
		}
	}
	return HashN(padded)
}

// Hash2 is HashN specialized to arity 2.
func Hash2(xs [2]*big.Int) (*big.Int, error) {
	return HashN(xs[:])
}

// Hash5 is HashN specialized to arity 5.
func Hash5(xs [5]*big.Int) (*big.Int, error) {
	return HashN(xs[:])
}

// Hash10 implements hash10 = hash2(hash5(xs[0..4]), hash5(xs[5..9])), the
// composite used for 10-field voter state leaves.
func Hash10(xs [10]*big.Int) (*big.Int, error) {
	var lo, hi [5]*big.Int
	copy(lo[:], xs[0:5])
	copy(hi[:], xs[5:10])

	hLo, err := Hash5(lo)
	if err != nil {
		return nil, err
	}
	hHi, err := Hash5(hi)
	if err != nil {
		return nil, err
	}
	return Hash2([2]*big.Int{hLo, hHi})
}

// ComputeInputHash concatenates the big-endian 32-byte encodings of xs and
// returns SHA-256(bytes) mod p. It must stay bit-exact with Solidity's
// sha256(abi.encodePacked(uint256[])) because on-chain verifiers recompute
// it from the same public inputs.
func ComputeInputHash(xs []*big.Int) *big.Int {
	buf := make([]byte, 0, common.HashLength*len(xs))
	for _, x := range xs {
		buf = append(buf, math.PaddedBigBytes(field.Mod(x), common.HashLength)...)
	}
	digest := common.BytesToHash(sha256Sum(buf))
	return field.Mod(new(big.Int).SetBytes(digest.Bytes()))
}

func sha256Sum(buf []byte) []byte {
	sum := sha256.Sum256(buf)
	return sum[:]
}
