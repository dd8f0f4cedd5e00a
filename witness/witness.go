// Package witness defines the data the operator state machine (C8) and
// the add-new-key builder (C9) hand to the external Groth16 prover. Field
// ordering within each bundle is part of the contract: the prover's input
// layout is positional, so fields are declared in the exact order the
// circuit consumes them.
package witness

import (
	"math/big"

	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/poseidon"
)

// HashPoint is H(pk) = Poseidon([pk.x, pk.y]), used throughout the witness
// bundles wherever a public key must be folded into an input hash as one
// field element.
func HashPoint(p *field.Point) (*big.Int, error) {
	return poseidon.Hash2([2]*big.Int{p.X, p.Y})
}

// MerklePath is one sibling set per tree level, as returned by
// merkletree.Tree.PathElementOf.
type MerklePath [][4]*big.Int

// DeactivateBatch is the witness emitted by one processDeactivateMessages
// call.
type DeactivateBatch struct {
	InputHash               *big.Int
	OperatorPk              *field.Point
	NewDeactivateRoot       *big.Int
	BatchStartHash          *big.Int
	BatchEndHash            *big.Int
	CurrentDeactivateCommit *big.Int
	NewDeactivateCommit     *big.Int
	SubStateRoot            *big.Int

	// Per-message private inputs, one entry per batch slot.
	Commands       []DeactivateCommandWitness
	DeactivatePath []MerklePath
}

// DeactivateCommandWitness is the per-slot private input for one
// deactivate-batch message.
type DeactivateCommandWitness struct {
	StateIdx     uint64
	StatePath    MerklePath
	C1, C2       *field.Point // new (possibly re-randomized or error) ciphertext
	Valid        bool
	ActiveBefore *big.Int
}

// ComputeInputHash folds the batch's public fields into the EVM-compatible
// SHA-256 input hash.
func (b *DeactivateBatch) ComputeInputHash() (*big.Int, error) {
	opHash, err := HashPoint(b.OperatorPk)
	if err != nil {
		return nil, err
	}
	return poseidon.ComputeInputHash([]*big.Int{
		b.NewDeactivateRoot,
		opHash,
		b.BatchStartHash,
		b.BatchEndHash,
		b.CurrentDeactivateCommit,
		b.NewDeactivateCommit,
		b.SubStateRoot,
	}), nil
}

// MessageBatch is the witness emitted by one processMessages call,
// covering one reverse-consumed vote-message batch.
type MessageBatch struct {
	InputHash            *big.Int
	PackedVals           *big.Int // maxVoteOptions | (numSignUps << 32) | (isQv << 64)
	OperatorPk           *field.Point
	BatchStartHash       *big.Int
	BatchEndHash         *big.Int
	OldStateCommitment   *big.Int
	NewStateCommitment   *big.Int
	DeactivateCommitment *big.Int

	// Per-slot private inputs, snapshotted *before* the slot's command is
	// applied, in the order the circuit consumes them (batchSize-1 down to 0).
	Slots []MessageSlotWitness
}

// MessageSlotWitness is one message-batch slot's private witness.
type MessageSlotWitness struct {
	StateLeafBefore      [10]*big.Int
	StatePath            MerklePath
	VoteOptionLeafBefore *big.Int
	VoteOptionPath       MerklePath
	ActiveStateLeaf      *big.Int
	ActiveStatePath      MerklePath
	Valid                bool
	StateIdx             uint64 // 5^d-1 sentinel on invalid
}

// ComputeInputHash folds the batch's public fields into the input hash.
func (b *MessageBatch) ComputeInputHash() (*big.Int, error) {
	opHash, err := HashPoint(b.OperatorPk)
	if err != nil {
		return nil, err
	}
	return poseidon.ComputeInputHash([]*big.Int{
		b.PackedVals,
		opHash,
		b.BatchStartHash,
		b.BatchEndHash,
		b.OldStateCommitment,
		b.NewStateCommitment,
		b.DeactivateCommitment,
	}), nil
}

// TallyBatch is the witness emitted by one processTally call.
type TallyBatch struct {
	StateRoot              *big.Int
	StateSalt              *big.Int
	PackedVals             *big.Int
	StateCommitment        *big.Int
	CurrentTallyCommitment *big.Int
	NewTallyCommitment     *big.Int
	InputHash              *big.Int

	// VoterWeights is the group's per-voter, per-option weight matrix, the
	// private input the tally circuit folds; one row per group slot, zero
	// rows for voters who never voted.
	VoterWeights [][]*big.Int
}

// ComputeInputHash folds the batch's public fields into the input hash.
func (b *TallyBatch) ComputeInputHash() *big.Int {
	return poseidon.ComputeInputHash([]*big.Int{
		b.StateRoot,
		b.StateSalt,
		b.PackedVals,
		b.StateCommitment,
		b.CurrentTallyCommitment,
		b.NewTallyCommitment,
	})
}

// AddNewKey is the witness for rebinding a fresh public key to a
// deactivated voter's inherited balance.
type AddNewKey struct {
	InputHash      *big.Int
	OperatorPk     *field.Point
	DeactivateRoot *big.Int
	LeafIndex      uint64
	LeafHash       *big.Int
	C1, C2         *field.Point
	RPrime         *big.Int
	D1, D2         *field.Point
	Path           MerklePath
	Nullifier      *big.Int
	OldSkScalar    *big.Int
}

// ComputeInputHash folds the witness's public fields into the input hash
// the on-chain verifier recomputes: SHA-256 over (deactivateRoot,
// H(operatorPk), nullifier, d1, d2) mod p.
func (w *AddNewKey) ComputeInputHash() (*big.Int, error) {
	opHash, err := HashPoint(w.OperatorPk)
	if err != nil {
		return nil, err
	}
	return poseidon.ComputeInputHash([]*big.Int{
		w.DeactivateRoot,
		opHash,
		w.Nullifier,
		w.D1.X, w.D1.Y,
		w.D2.X, w.D2.Y,
	}), nil
}
