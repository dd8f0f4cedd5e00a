// Package merkletree implements the fixed-arity-5 Merkle tree used for
// the state tree, active-state tree, deactivate tree, and per-voter
// vote-option trees. Nodes live in one flat hash array holding every
// level, leaves first; proofs are per-level sibling arrays hashed back up
// with Poseidon.
package merkletree

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/kysee/amaci-core/poseidon"
)

// Degree is the fixed branching factor of every tree in this protocol.
const Degree = 5

var (
	ErrTreeBounds = errors.New("merkletree: index out of bounds")
	ErrBadDegree  = errors.New("merkletree: degree mismatch")
)

// ComputeZeroHashes returns zeros[0..depth] where zeros[0] = zeroLeaf and
// zeros[i+1] = hash5([zeros[i]]*5). Any degree other than Degree fails
// with ErrBadDegree once depth > 0.
func ComputeZeroHashes(degree int, depth int, zeroLeaf *big.Int) ([]*big.Int, error) {
	zeros := make([]*big.Int, depth+1)
	zeros[0] = new(big.Int).Set(zeroLeaf)
	for i := 0; i < depth; i++ {
		children := make([]*big.Int, degree)
		for j := range children {
			children[j] = zeros[i]
		}
		h, err := hashChildren(children)
		if err != nil {
			return nil, err
		}
		zeros[i+1] = h
	}
	return zeros, nil
}

// hashChildren hashes exactly Degree children via Poseidon hash5, shared
// by ComputeZeroHashes, ExtendTreeRoot and Tree; a child slice of any
// other length is rejected with ErrBadDegree.
func hashChildren(children []*big.Int) (*big.Int, error) {
	if len(children) != Degree {
		return nil, fmt.Errorf("%w: got %d children, want %d", ErrBadDegree, len(children), Degree)
	}
	var arr [5]*big.Int
	copy(arr[:], children)
	return poseidon.Hash5(arr)
}

// ExtendTreeRoot lifts a root computed at fromDepth to the equivalent root
// at toDepth by treating every new sibling as the zero-subtree of the
// appropriate level. Used to match a small sub-state-tree root to the
// circuit's expected tree depth in O(toDepth-fromDepth).
func ExtendTreeRoot(root *big.Int, fromDepth, toDepth int, zeros []*big.Int) (*big.Int, error) {
	if toDepth < fromDepth {
		return nil, fmt.Errorf("merkletree: toDepth %d < fromDepth %d", toDepth, fromDepth)
	}
	cur := new(big.Int).Set(root)
	for d := fromDepth; d < toDepth; d++ {
		children := make([]*big.Int, Degree)
		children[0] = cur
		for j := 1; j < Degree; j++ {
			children[j] = zeros[d]
		}
		h, err := hashChildren(children)
		if err != nil {
			return nil, err
		}
		cur = h
	}
	return cur, nil
}

// Tree is a fixed-depth quinary Merkle tree, stored as a flat node array
// of length (5^(depth+1)-1)/4: the leaf level first, then each level above
// it, ending with the single root node.
type Tree struct {
	depth    int
	zeroLeaf *big.Int
	zeros    []*big.Int
	nodes    []*big.Int // level 0 = leaves, level depth = root (single node)
	levelOff []int      // levelOff[d] = index of level d's first node within nodes
	levelLen []int      // levelLen[d] = number of nodes at level d
}

// New constructs an empty tree of the given depth, every leaf initialized
// to zeroLeaf.
func New(depth int, zeroLeaf *big.Int) (*Tree, error) {
	if depth < 0 {
		return nil, fmt.Errorf("merkletree: negative depth %d", depth)
	}
	zeros, err := ComputeZeroHashes(Degree, depth, zeroLeaf)
	if err != nil {
		return nil, err
	}

	levelLen := make([]int, depth+1)
	levelOff := make([]int, depth+1)
	total := 0
	n := capacityOf(depth)
	for d := 0; d <= depth; d++ {
		levelLen[d] = n
		levelOff[d] = total
		total += n
		n /= Degree
	}

	nodes := make([]*big.Int, total)
	for d := 0; d <= depth; d++ {
		for i := 0; i < levelLen[d]; i++ {
			nodes[levelOff[d]+i] = new(big.Int).Set(zeros[d])
		}
	}

	return &Tree{
		depth:    depth,
		zeroLeaf: new(big.Int).Set(zeroLeaf),
		zeros:    zeros,
		nodes:    nodes,
		levelOff: levelOff,
		levelLen: levelLen,
	}, nil
}

// capacityOf returns 5^depth.
func capacityOf(depth int) int {
	n := 1
	for i := 0; i < depth; i++ {
		n *= Degree
	}
	return n
}

// Depth returns the tree's configured depth.
func (t *Tree) Depth() int { return t.depth }

// Capacity returns 5^depth, the number of leaves the tree holds.
func (t *Tree) Capacity() int { return t.levelLen[0] }

// Root returns the current root hash; equals zeros[depth] for an empty
// tree.
func (t *Tree) Root() *big.Int {
	return new(big.Int).Set(t.nodes[t.levelOff[t.depth]])
}

// checkBounds enforces i ∈ [0, 5^depth). The upper bound is >=: index
// 5^depth is one past the last leaf.
func (t *Tree) checkBounds(i int) error {
	if i < 0 || i >= t.Capacity() {
		return fmt.Errorf("%w: index %d, capacity %d", ErrTreeBounds, i, t.Capacity())
	}
	return nil
}

// Leaf returns the leaf at index i.
func (t *Tree) Leaf(i int) (*big.Int, error) {
	if err := t.checkBounds(i); err != nil {
		return nil, err
	}
	return new(big.Int).Set(t.nodes[t.levelOff[0]+i]), nil
}

// UpdateLeaf sets leaf i to v and recomputes the depth parents on its
// path, each as hash5 of its (exactly Degree) children.
func (t *Tree) UpdateLeaf(i int, v *big.Int) error {
	if err := t.checkBounds(i); err != nil {
		return err
	}
	t.nodes[t.levelOff[0]+i] = new(big.Int).Set(v)

	idx := i
	for d := 0; d < t.depth; d++ {
		parentIdx := idx / Degree
		base := (idx / Degree) * Degree
		children := make([]*big.Int, Degree)
		for j := 0; j < Degree; j++ {
			children[j] = t.nodes[t.levelOff[d]+base+j]
		}
		h, err := hashChildren(children)
		if err != nil {
			return err
		}
		t.nodes[t.levelOff[d+1]+parentIdx] = h
		idx = parentIdx
	}
	return nil
}

// InitLeaves bulk-loads up to 5^depth leaves and recomputes the full tree
// bottom-up. Any excess beyond capacity is silently dropped.
func (t *Tree) InitLeaves(xs []*big.Int) error {
	n := t.Capacity()
	if len(xs) > n {
		xs = xs[:n]
	}
	for i, x := range xs {
		t.nodes[t.levelOff[0]+i] = new(big.Int).Set(x)
	}
	for d := 0; d < t.depth; d++ {
		for parentIdx := 0; parentIdx < t.levelLen[d+1]; parentIdx++ {
			base := parentIdx * Degree
			children := make([]*big.Int, Degree)
			for j := 0; j < Degree; j++ {
				children[j] = t.nodes[t.levelOff[d]+base+j]
			}
			h, err := hashChildren(children)
			if err != nil {
				return err
			}
			t.nodes[t.levelOff[d+1]+parentIdx] = h
		}
	}
	return nil
}

// PathIndexOf returns the base-5 digits of i, least significant first
// (the depth-0 digit is i mod 5).
func (t *Tree) PathIndexOf(i int) ([]int, error) {
	if err := t.checkBounds(i); err != nil {
		return nil, err
	}
	digits := make([]int, t.depth)
	for d := 0; d < t.depth; d++ {
		digits[d] = i % Degree
		i /= Degree
	}
	return digits, nil
}

// PathElementOf returns, for each level, the four sibling hashes at that
// level in ascending sibling-index order, omitting the position occupied
// by the current node's path.
func (t *Tree) PathElementOf(i int) ([][4]*big.Int, error) {
	digits, err := t.PathIndexOf(i)
	if err != nil {
		return nil, err
	}
	out := make([][4]*big.Int, t.depth)
	idx := i
	for d := 0; d < t.depth; d++ {
		base := (idx / Degree) * Degree
		var siblings [4]*big.Int
		k := 0
		for j := 0; j < Degree; j++ {
			if j == digits[d] {
				continue
			}
			siblings[k] = new(big.Int).Set(t.nodes[t.levelOff[d]+base+j])
			k++
		}
		out[d] = siblings
		idx /= Degree
	}
	return out, nil
}

// SubTree returns a copy of t in which leaves [n, capacity) are reset to
// zeroLeaf and parents recomputed; used when the prover must prove against
// the state tree truncated to the first n voters.
func (t *Tree) SubTree(n int) (*Tree, error) {
	if n < 0 || n > t.Capacity() {
		return nil, fmt.Errorf("%w: subtree length %d, capacity %d", ErrTreeBounds, n, t.Capacity())
	}
	out, err := New(t.depth, t.zeroLeaf)
	if err != nil {
		return nil, err
	}
	leaves := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		leaves[i] = new(big.Int).Set(t.nodes[t.levelOff[0]+i])
	}
	if err := out.InitLeaves(leaves); err != nil {
		return nil, err
	}
	return out, nil
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	out := &Tree{
		depth:    t.depth,
		zeroLeaf: new(big.Int).Set(t.zeroLeaf),
		zeros:    append([]*big.Int(nil), t.zeros...),
		nodes:    make([]*big.Int, len(t.nodes)),
		levelOff: append([]int(nil), t.levelOff...),
		levelLen: append([]int(nil), t.levelLen...),
	}
	for i, v := range t.nodes {
		out.nodes[i] = new(big.Int).Set(v)
	}
	return out
}
