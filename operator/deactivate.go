package operator

import (
	"fmt"
	"math/big"

	"github.com/kysee/amaci-core/command"
	"github.com/kysee/amaci-core/eddsa"
	"github.com/kysee/amaci-core/elgamal"
	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/poseidon"
	"github.com/kysee/amaci-core/types"
	"github.com/kysee/amaci-core/witness"
)

// ProcessDeactivateMessages runs one deactivate-batch step: it consumes up
// to inputSize queued deactivate messages starting at
// processedDeactivateCount, validates each against a state snapshot
// truncated to subStateTreeLength voters, and emits the witness bundle.
// Deactivate batches run during Filling as well as Processing: deactivate
// messages are consumed while the vote period is still open so a
// deactivated voter can rebind a fresh key and vote again in the same
// round.
func (op *Operator) ProcessDeactivateMessages(inputSize int, subStateTreeLength int) (*witness.DeactivateBatch, error) {
	if op.phase != Filling && op.phase != Processing {
		return nil, fmt.Errorf("%w: have %s, need Filling or Processing", ErrWrongPhase, op.phase)
	}

	batchSize := int(op.cfg.MessageBatchSize)
	start := int(op.processedDeactivateCount)

	currentCommit, err := poseidon.Hash2([2]*big.Int{op.activeStateTree.Root(), op.deactivateTree.Root()})
	if err != nil {
		return nil, err
	}

	subStateTree, err := op.stateTree.SubTree(subStateTreeLength)
	if err != nil {
		return nil, err
	}

	batchStartHash := big.NewInt(0)
	batchEndHash := big.NewInt(0)
	commands := make([]witness.DeactivateCommandWitness, batchSize)
	paths := make([]witness.MerklePath, batchSize)

	for i := 0; i < batchSize; i++ {
		idx := start + i
		var msg *queuedMessage
		if i < inputSize && idx < len(op.deactivateQueue) {
			msg = &op.deactivateQueue[idx]
		}

		if i == 0 && msg != nil {
			batchStartHash = msg.prevHash
		}
		if msg != nil {
			batchEndHash = msg.hash
		}

		leafIdx := int(op.processedDeactivateCount) + i

		if msg == nil {
			commands[i] = witness.DeactivateCommandWitness{Valid: false}
			paths[i] = nil
			continue
		}

		stateIdx, valid := op.checkDeactivateCommand(msg.cmd, subStateTreeLength)
		clampedIdx := stateIdx
		if clampedIdx >= uint64(len(op.activeState)) {
			clampedIdx = 0
		}

		activeBefore := new(big.Int).Set(op.activeState[clampedIdx])
		newActiveVal := activeBefore
		if valid {
			newActiveVal = new(big.Int).SetUint64(op.processedDeactivateCount + uint64(i) + 1)
		}

		// staticRand = Poseidon([operatorSk, 20040, newActiveState[i]]): a
		// deterministic derivation so replaying the same batch over the same
		// state produces byte-identical ciphertexts and commitments.
		staticRand, err := poseidon.HashN([]*big.Int{op.sk.Scalar(), types.StaticDeactivateSalt, newActiveVal})
		if err != nil {
			return nil, err
		}
		newCt := elgamal.Encode(!valid, op.sk.Public(), staticRand)

		sharedKeyHash, err := eddsa.ECDHSharedKeyHash(field.ScalarMul(op.sk.Scalar(), op.statePkFor(clampedIdx)))
		if err != nil {
			return nil, err
		}

		if valid {
			op.activeState[clampedIdx] = newActiveVal
			if err := op.activeStateTree.UpdateLeaf(int(clampedIdx), newActiveVal); err != nil {
				return nil, err
			}
			// Rewrite the state leaf's ciphertext to odd: the old key now
			// fails the even-parity check in vote processing. A second
			// deterministic scalar keeps the rewrite reproducible without
			// sharing C1 with the deactivate-tree entry.
			leafRand, err := poseidon.HashN([]*big.Int{op.sk.Scalar(), types.StaticDeactivateSalt, newActiveVal, big.NewInt(1)})
			if err != nil {
				return nil, err
			}
			inactiveCt := elgamal.Encode(true, op.sk.Public(), leafRand)
			leaf := op.stateLeaves[clampedIdx]
			leaf.C1, leaf.C2 = inactiveCt.C1, inactiveCt.C2
			leaf.XIncrement = big.NewInt(0)
			if err := op.setStateLeaf(clampedIdx, leaf); err != nil {
				return nil, err
			}
		}

		deactivateLeaf := DeactivateLeaf{C1: newCt.C1, C2: newCt.C2, SharedKeyHash: sharedKeyHash}
		leafHash, err := deactivateLeaf.Hash()
		if err != nil {
			return nil, err
		}
		if err := op.deactivateTree.UpdateLeaf(leafIdx, leafHash); err != nil {
			return nil, err
		}
		op.deactivateLeaves = setDeactivateLeaf(op.deactivateLeaves, leafIdx, deactivateLeaf)

		var statePath witness.MerklePath
		if clampedIdx < uint64(subStateTree.Capacity()) {
			statePath, err = subStateTree.PathElementOf(int(clampedIdx))
			if err != nil {
				return nil, err
			}
		}
		deactivatePath, err := op.deactivateTree.PathElementOf(leafIdx)
		if err != nil {
			return nil, err
		}

		commands[i] = witness.DeactivateCommandWitness{
			StateIdx: stateIdx, StatePath: statePath, C1: newCt.C1, C2: newCt.C2,
			Valid: valid, ActiveBefore: activeBefore,
		}
		paths[i] = deactivatePath
	}

	newCommit, err := poseidon.Hash2([2]*big.Int{op.activeStateTree.Root(), op.deactivateTree.Root()})
	if err != nil {
		return nil, err
	}

	bundle := &witness.DeactivateBatch{
		OperatorPk:              op.sk.Public(),
		NewDeactivateRoot:       op.deactivateTree.Root(),
		BatchStartHash:          batchStartHash,
		BatchEndHash:            batchEndHash,
		CurrentDeactivateCommit: currentCommit,
		NewDeactivateCommit:     newCommit,
		SubStateRoot:            subStateTree.Root(),
		Commands:                commands,
		DeactivatePath:          paths,
	}
	inputHash, err := bundle.ComputeInputHash()
	if err != nil {
		return nil, err
	}
	bundle.InputHash = inputHash

	op.processedDeactivateCount += uint64(batchSize)
	log.Info().Uint64("processedDeactivateCount", op.processedDeactivateCount).Msg("processed deactivate batch")
	return bundle, nil
}

// checkDeactivateCommand validates a decrypted deactivate command against
// a state snapshot truncated to subStateTreeLength voters.
// It returns the command's claimed state index (valid or not, for
// downstream ciphertext bookkeeping) and whether the command is valid.
func (op *Operator) checkDeactivateCommand(cmd *command.Plaintext, subStateTreeLength int) (uint64, bool) {
	if cmd == nil {
		return 0, false
	}
	_, stateIdx, _, _, err := command.Unpack(cmd.Packed)
	if err != nil || stateIdx >= uint64(subStateTreeLength) || stateIdx >= uint64(len(op.stateLeaves)) {
		return stateIdx, false
	}

	leaf := op.stateLeaves[stateIdx]
	parity, err := elgamal.DecryptParity(op.sk.Scalar(), &elgamal.Ciphertext{C1: leaf.C1, C2: leaf.C2, XIncrement: leaf.XIncrement})
	if err != nil || parity {
		return stateIdx, false // already deactivated, or cryptographically malformed
	}

	msgHash, err := command.MsgHash(cmd.Packed, cmd.NewPkX, cmd.NewPkY)
	if err != nil {
		return stateIdx, false
	}
	sig := &eddsa.Signature{R8: &field.Point{X: cmd.R8X, Y: cmd.R8Y}, S: cmd.S}
	if err := eddsa.Verify(&field.Point{X: leaf.PkX, Y: leaf.PkY}, msgHash, sig); err != nil {
		return stateIdx, false
	}
	return stateIdx, true
}

func (op *Operator) statePkFor(stateIdx uint64) *field.Point {
	if stateIdx >= uint64(len(op.stateLeaves)) {
		stateIdx = 0
	}
	leaf := op.stateLeaves[stateIdx]
	if leaf.PkX == nil {
		return field.Identity()
	}
	return &field.Point{X: leaf.PkX, Y: leaf.PkY}
}

func setDeactivateLeaf(leaves []DeactivateLeaf, idx int, leaf DeactivateLeaf) []DeactivateLeaf {
	if len(leaves) <= idx {
		grown := make([]DeactivateLeaf, idx+1)
		copy(grown, leaves)
		leaves = grown
	}
	leaves[idx] = leaf
	return leaves
}
