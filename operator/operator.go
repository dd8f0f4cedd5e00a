// Package operator implements the coordinator state machine (C8): it owns
// every mutable tree, ingests voter ciphertexts during Filling, and
// processes them into committed state during Processing and Tallying.
// One Operator is a single round; it is not safe for concurrent use,
// matching the single-threaded cooperative scheduling model it implements.
package operator

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/kysee/amaci-core/command"
	"github.com/kysee/amaci-core/eddsa"
	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/merkletree"
	"github.com/kysee/amaci-core/poseidon"
	"github.com/kysee/amaci-core/types"
	"github.com/rs/zerolog"
)

// Phase is one of the four ordered phases a round moves through.
type Phase int

const (
	Filling Phase = iota
	Processing
	Tallying
	Ended
)

func (p Phase) String() string {
	switch p {
	case Filling:
		return "Filling"
	case Processing:
		return "Processing"
	case Tallying:
		return "Tallying"
	case Ended:
		return "Ended"
	default:
		return "Unknown"
	}
}

// ErrWrongPhase is returned when an operation is issued outside the phase
// that permits it.
var ErrWrongPhase = errors.New("operator: wrong phase")

var log = zerolog.New(os.Stdout).With().Timestamp().Str("component", "operator").Logger()

// StateLeaf is the 10-field voter state leaf.
type StateLeaf struct {
	PkX, PkY       *big.Int
	Balance        *big.Int
	VoteOptionRoot *big.Int
	Nonce          uint64
	C1, C2         *field.Point
	XIncrement     *big.Int
}

// Hash returns hash10 of the leaf's ten fields.
func (s StateLeaf) Hash() (*big.Int, error) {
	return poseidon.Hash10(s.fields())
}

// fields returns the leaf's ten field elements. A slot no voter has signed
// up at reads as all zeros, matching the zero leaf its tree position still
// hashes to.
func (s StateLeaf) fields() [10]*big.Int {
	if s.PkX == nil {
		var f [10]*big.Int
		for i := range f {
			f[i] = big.NewInt(0)
		}
		return f
	}
	return [10]*big.Int{
		s.PkX, s.PkY, s.Balance, s.VoteOptionRoot, new(big.Int).SetUint64(s.Nonce),
		s.C1.X, s.C1.Y, s.C2.X, s.C2.Y, s.XIncrement,
	}
}

// DeactivateLeaf is the 5-field deactivate-tree entry.
type DeactivateLeaf struct {
	C1, C2        *field.Point
	SharedKeyHash *big.Int
}

func (d DeactivateLeaf) Hash() (*big.Int, error) {
	return poseidon.Hash5([5]*big.Int{d.C1.X, d.C1.Y, d.C2.X, d.C2.Y, d.SharedKeyHash})
}

// queuedMessage is one append-only message-log entry.
type queuedMessage struct {
	ciphertext command.Ciphertext
	encPk      *field.Point
	prevHash   *big.Int
	hash       *big.Int
	cmd        *command.Plaintext // nil if undecryptable
}

// Operator is the coordinator state machine for a single round.
type Operator struct {
	cfg *types.Config
	sk  *eddsa.KeyPair // operator keypair; sk.Scalar() decrypts voter ciphertexts

	phase Phase

	stateTree       *merkletree.Tree
	activeStateTree *merkletree.Tree
	deactivateTree  *merkletree.Tree

	stateLeaves      []StateLeaf
	activeState      []*big.Int // 0 = active, deactivateIndex+1 = inactive
	deactivateLeaves []DeactivateLeaf
	voteOptionTrees  map[uint64]*merkletree.Tree
	numSignUps       uint64
	nullifiers       []*big.Int // rebound add-new-key nullifiers observed so far

	voteQueue       []queuedMessage
	deactivateQueue []queuedMessage

	msgEndIdx                uint64
	batchEnd                 uint64
	processedDeactivateCount uint64

	stateSalt        *big.Int
	stateCommitment  *big.Int
	tallySalt        *big.Int
	tallyCommitment  *big.Int
	tally            []*big.Int
	tallyTree        *merkletree.Tree
	tallyGroupCursor uint64
}

// New constructs an Operator for the given configuration and operator
// keypair, with every tree empty and sized per cfg.
func New(cfg *types.Config, operatorKey *eddsa.KeyPair) (*Operator, error) {
	stateTree, err := merkletree.New(int(cfg.StateTreeDepth), big.NewInt(0))
	if err != nil {
		return nil, err
	}
	activeStateTree, err := merkletree.New(int(cfg.StateTreeDepth), big.NewInt(0))
	if err != nil {
		return nil, err
	}
	deactivateTree, err := merkletree.New(int(cfg.StateTreeDepth)+2, big.NewInt(0))
	if err != nil {
		return nil, err
	}

	capacity := stateTree.Capacity()
	op := &Operator{
		cfg:             cfg,
		sk:              operatorKey,
		phase:           Filling,
		stateTree:       stateTree,
		activeStateTree: activeStateTree,
		deactivateTree:  deactivateTree,
		stateLeaves:     make([]StateLeaf, capacity),
		activeState:     make([]*big.Int, capacity),
		voteOptionTrees: make(map[uint64]*merkletree.Tree),
		stateSalt:       big.NewInt(0),
		stateCommitment: big.NewInt(0),
		tallySalt:       big.NewInt(0),
		tallyCommitment: big.NewInt(0),
	}
	for i := range op.activeState {
		op.activeState[i] = big.NewInt(0)
	}

	if capacity < 1 {
		return nil, fmt.Errorf("operator: state tree capacity %d, need at least 1", capacity)
	}

	tallyTree, err := merkletree.New(int(cfg.VoteOptionTreeDepth), big.NewInt(0))
	if err != nil {
		return nil, err
	}
	if cfg.MaxVoteOptions > uint64(tallyTree.Capacity()) {
		return nil, fmt.Errorf("operator: maxVoteOptions %d exceeds vote option tree capacity %d",
			cfg.MaxVoteOptions, tallyTree.Capacity())
	}
	op.tallyTree = tallyTree
	op.tally = make([]*big.Int, tallyTree.Capacity())
	for i := range op.tally {
		op.tally[i] = big.NewInt(0)
	}

	return op, nil
}

func (op *Operator) requirePhase(p Phase) error {
	if op.phase != p {
		return fmt.Errorf("%w: have %s, need %s", ErrWrongPhase, op.phase, p)
	}
	return nil
}

// Phase returns the current phase.
func (op *Operator) Phase() Phase { return op.phase }

// PublicKey returns the operator's public key.
func (op *Operator) PublicKey() *field.Point { return op.sk.Public() }

// NumSignUps returns the number of voters signed up so far, the natural
// subStateTreeLength for a deactivate batch processed against the
// current state.
func (op *Operator) NumSignUps() uint64 { return op.numSignUps }

// NumDeactivateMessages returns the number of deactivate messages queued
// so far.
func (op *Operator) NumDeactivateMessages() uint64 { return uint64(len(op.deactivateQueue)) }

// ProcessedDeactivateCount returns the number of deactivate-batch slots
// consumed so far; it advances by a full batch width per
// ProcessDeactivateMessages call, padding included.
func (op *Operator) ProcessedDeactivateCount() uint64 { return op.processedDeactivateCount }
