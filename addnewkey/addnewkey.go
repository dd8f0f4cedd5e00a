// Package addnewkey builds the witness a deactivated voter uses to bind a
// fresh public key to their historical balance without linking the two
// keys on-chain.
package addnewkey

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/kysee/amaci-core/eddsa"
	"github.com/kysee/amaci-core/elgamal"
	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/merkletree"
	"github.com/kysee/amaci-core/poseidon"
	"github.com/kysee/amaci-core/types"
	"github.com/kysee/amaci-core/witness"
)

// ErrNoDeactivate is returned when no deactivate leaf's shared-key hash
// matches the caller's old key.
var ErrNoDeactivate = errors.New("addnewkey: no matching deactivate leaf")

// Leaf is one deactivate-tree entry as fetched from the external indexer:
// [c1x, c1y, c2x, c2y, H(sharedKey)].
type Leaf struct {
	C1, C2        *field.Point
	SharedKeyHash *big.Int
}

// Hash is the Poseidon5 hash of the leaf's five fields, as stored in the
// deactivate tree.
func (l Leaf) Hash() (*big.Int, error) {
	return poseidon.Hash5([5]*big.Int{l.C1.X, l.C1.Y, l.C2.X, l.C2.Y, l.SharedKeyHash})
}

// BuildWitness locates oldKey's deactivate leaf among leaves by shared-key
// hash, re-randomizes its ciphertext, and computes the nullifier and input
// hash the prover needs.
func BuildWitness(oldKey *eddsa.KeyPair, operatorPk *field.Point, leaves []Leaf) (*witness.AddNewKey, error) {
	h, err := eddsa.ECDHSharedKeyHash(oldKey.ECDHSharedKey(operatorPk))
	if err != nil {
		return nil, fmt.Errorf("addnewkey: shared key hash: %w", err)
	}

	j := -1
	for i, l := range leaves {
		if l.SharedKeyHash.Cmp(h) == 0 {
			j = i
			break
		}
	}
	if j < 0 {
		return nil, ErrNoDeactivate
	}

	rPrime, err := randomScalar()
	if err != nil {
		return nil, err
	}

	ct := &elgamal.Ciphertext{C1: leaves[j].C1, C2: leaves[j].C2, XIncrement: big.NewInt(0)}
	reRand := elgamal.Rerandomize(operatorPk, ct, rPrime)

	nullifier, err := poseidon.Hash2([2]*big.Int{oldKey.Scalar(), types.NullifierDomainTag})
	if err != nil {
		return nil, fmt.Errorf("addnewkey: nullifier: %w", err)
	}

	tree, err := rebuildDeactivateTree(leaves)
	if err != nil {
		return nil, err
	}
	path, err := tree.PathElementOf(j)
	if err != nil {
		return nil, err
	}
	leafHash, err := leaves[j].Hash()
	if err != nil {
		return nil, err
	}

	w := &witness.AddNewKey{
		OperatorPk:     operatorPk,
		DeactivateRoot: tree.Root(),
		LeafIndex:      uint64(j),
		LeafHash:       leafHash,
		C1:             leaves[j].C1,
		C2:             leaves[j].C2,
		RPrime:         rPrime,
		D1:             reRand.C1,
		D2:             reRand.C2,
		Path:           path,
		Nullifier:      nullifier,
		OldSkScalar:    oldKey.Scalar(),
	}
	inputHash, err := w.ComputeInputHash()
	if err != nil {
		return nil, err
	}
	w.InputHash = inputHash
	return w, nil
}

// rebuildDeactivateTree reconstructs the full deactivate tree from its
// leaves so PathElementOf can be computed for the matched index. Depth is
// derived from the leaf count; the caller pads leaves to a power of 5
// ahead of time if an exact depth is required.
func rebuildDeactivateTree(leaves []Leaf) (*merkletree.Tree, error) {
	depth := 0
	for cap := 1; cap < len(leaves); cap *= merkletree.Degree {
		depth++
	}
	if depth == 0 && len(leaves) > 0 {
		depth = 1
	}

	tree, err := merkletree.New(depth, big.NewInt(0))
	if err != nil {
		return nil, err
	}

	hashes := make([]*big.Int, len(leaves))
	for i, l := range leaves {
		hashes[i], err = l.Hash()
		if err != nil {
			return nil, err
		}
	}
	if err := tree.InitLeaves(hashes); err != nil {
		return nil, err
	}
	return tree, nil
}

func randomScalar() (*big.Int, error) {
	n, err := rand.Int(rand.Reader, field.SubgroupOrder())
	if err != nil {
		return nil, fmt.Errorf("addnewkey: random scalar: %w", err)
	}
	return n, nil
}
