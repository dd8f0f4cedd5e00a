package operator

import (
	"math/big"

	"github.com/kysee/amaci-core/command"
	"github.com/kysee/amaci-core/eddsa"
	"github.com/kysee/amaci-core/elgamal"
	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/poseidon"
	"github.com/kysee/amaci-core/witness"
)

// cost models the linear-vs-quadratic voice-credit accounting, the one
// place the protocol is polymorphic over how a vote weight is charged.
type cost interface {
	// apply returns the new balance after moving from currVotes to
	// newVotes on one option, and whether the voter could afford it.
	apply(balance, currVotes, newVotes *big.Int) (*big.Int, bool)
}

type linearCost struct{}

func (linearCost) apply(balance, currVotes, newVotes *big.Int) (*big.Int, bool) {
	available := new(big.Int).Add(balance, currVotes)
	if available.Cmp(newVotes) < 0 {
		return nil, false
	}
	return new(big.Int).Sub(available, newVotes), true
}

type quadraticCost struct{}

func (quadraticCost) apply(balance, currVotes, newVotes *big.Int) (*big.Int, bool) {
	curr2 := new(big.Int).Mul(currVotes, currVotes)
	new2 := new(big.Int).Mul(newVotes, newVotes)
	available := new(big.Int).Add(balance, curr2)
	if available.Cmp(new2) < 0 {
		return nil, false
	}
	return new(big.Int).Sub(available, new2), true
}

func (op *Operator) costModel() cost {
	if op.cfg.IsQuadraticCost {
		return quadraticCost{}
	}
	return linearCost{}
}

// ProcessMessages runs one reverse-order vote-message batch. Each call consumes one messageBatchSize-sized window aligned to
// the end of the still-unprocessed range; when the window reaches index 0
// the round transitions to Tallying.
func (op *Operator) ProcessMessages(newStateSalt *big.Int) (*witness.MessageBatch, error) {
	if err := op.requirePhase(Processing); err != nil {
		return nil, err
	}

	batchSize := int(op.cfg.MessageBatchSize)
	batchEnd := int(op.batchEnd)
	batchStart := batchEnd - batchSize
	if batchStart < 0 {
		batchStart = 0
	}
	windowSize := batchEnd - batchStart

	oldCommitment := op.stateCommitment
	deactivateCommitment, err := poseidon.Hash2([2]*big.Int{op.activeStateTree.Root(), op.deactivateTree.Root()})
	if err != nil {
		return nil, err
	}

	slots := make([]witness.MessageSlotWitness, batchSize)
	batchStartHash := big.NewInt(0)
	batchEndHash := big.NewInt(0)
	if windowSize > 0 {
		batchStartHash = op.voteQueue[batchStart].prevHash
		batchEndHash = op.voteQueue[batchEnd-1].hash
	}

	invalidSentinel := uint64(op.stateTree.Capacity() - 1)

	for i := batchSize - 1; i >= 0; i-- {
		var cmd *command.Plaintext
		if i < windowSize {
			cmd = op.voteQueue[batchStart+i].cmd
		}
		slot, err := op.applyMessage(cmd, invalidSentinel)
		if err != nil {
			return nil, err
		}
		slots[i] = slot
	}

	newCommitment, err := poseidon.Hash2([2]*big.Int{op.stateTree.Root(), newStateSalt})
	if err != nil {
		return nil, err
	}

	packedVals := packVals(op.cfg.MaxVoteOptions, op.numSignUps, op.cfg.IsQuadraticCost)

	bundle := &witness.MessageBatch{
		PackedVals:           packedVals,
		OperatorPk:           op.sk.Public(),
		BatchStartHash:       batchStartHash,
		BatchEndHash:         batchEndHash,
		OldStateCommitment:   oldCommitment,
		NewStateCommitment:   newCommitment,
		DeactivateCommitment: deactivateCommitment,
		Slots:                slots,
	}
	bundle.InputHash, err = bundle.ComputeInputHash()
	if err != nil {
		return nil, err
	}

	op.stateCommitment = newCommitment
	op.stateSalt = newStateSalt
	op.batchEnd = uint64(batchStart)

	log.Info().Int("batchStart", batchStart).Int("batchEnd", batchEnd).Msg("processed message batch")

	if batchStart == 0 {
		op.phase = Tallying
		log.Info().Msg("all message batches processed; entering Tallying")
	}
	return bundle, nil
}

// applyMessage snapshots the pre-update state for one slot, runs
// checkCommandNow, and on success mutates the relevant trees. The
// returned witness always reflects state strictly before this message was
// applied.
func (op *Operator) applyMessage(cmd *command.Plaintext, invalidSentinel uint64) (witness.MessageSlotWitness, error) {
	stateIdx, voIdx, ok := op.checkCommandNow(cmd)
	snapIdx := stateIdx
	if snapIdx >= uint64(len(op.stateLeaves)) {
		snapIdx = 0
	}
	snapVoIdx := voIdx
	if snapVoIdx >= op.cfg.MaxVoteOptions {
		snapVoIdx = 0
	}

	var newVotes, newBalance *big.Int
	if ok {
		voTree, err := op.voteOptionTreeFor(stateIdx)
		if err != nil {
			return witness.MessageSlotWitness{}, err
		}
		currVotes, err := voTree.Leaf(int(voIdx))
		if err != nil {
			return witness.MessageSlotWitness{}, err
		}
		_, _, _, nv, err := command.Unpack(cmd.Packed)
		if err != nil {
			return witness.MessageSlotWitness{}, err
		}
		newVotes = nv

		var afford bool
		newBalance, afford = op.costModel().apply(op.stateLeaves[stateIdx].Balance, currVotes, newVotes)
		ok = afford
	}

	before, err := op.snapshotSlot(snapIdx, snapVoIdx, ok, invalidSentinel)
	if err != nil || !ok {
		return before, err
	}

	leaf := op.stateLeaves[stateIdx]
	voTree, err := op.voteOptionTreeFor(stateIdx)
	if err != nil {
		return before, err
	}
	if err := voTree.UpdateLeaf(int(voIdx), newVotes); err != nil {
		return before, err
	}
	leaf.VoteOptionRoot = voTree.Root()
	leaf.Balance = newBalance
	leaf.Nonce++
	if !(cmd.NewPkX.Sign() == 0 && cmd.NewPkY.Sign() == 0) {
		leaf.PkX, leaf.PkY = cmd.NewPkX, cmd.NewPkY
	}
	if err := op.setStateLeaf(stateIdx, leaf); err != nil {
		return before, err
	}
	return before, nil
}

func (op *Operator) snapshotSlot(stateIdx, voIdx uint64, valid bool, invalidSentinel uint64) (witness.MessageSlotWitness, error) {
	leaf := op.stateLeaves[stateIdx]
	statePath, err := op.stateTree.PathElementOf(int(stateIdx))
	if err != nil {
		return witness.MessageSlotWitness{}, err
	}
	voTree, err := op.voteOptionTreeFor(stateIdx)
	if err != nil {
		return witness.MessageSlotWitness{}, err
	}
	voLeaf, err := voTree.Leaf(int(voIdx))
	if err != nil {
		return witness.MessageSlotWitness{}, err
	}
	voPath, err := voTree.PathElementOf(int(voIdx))
	if err != nil {
		return witness.MessageSlotWitness{}, err
	}
	activeLeaf := op.activeState[stateIdx]
	activePath, err := op.activeStateTree.PathElementOf(int(stateIdx))
	if err != nil {
		return witness.MessageSlotWitness{}, err
	}

	witnessIdx := stateIdx
	if !valid {
		witnessIdx = invalidSentinel
	}

	return witness.MessageSlotWitness{
		StateLeafBefore:      leaf.fields(),
		StatePath:            statePath,
		VoteOptionLeafBefore: voLeaf,
		VoteOptionPath:       voPath,
		ActiveStateLeaf:      activeLeaf,
		ActiveStatePath:      activePath,
		Valid:                valid,
		StateIdx:             witnessIdx,
	}, nil
}

// checkCommandNow runs the full vote-message validity check:
// command present, stateIdx strictly less than numSignUps, voIdx in range, voter active, ciphertext parity even,
// nonce coherent, signature valid, and balance sufficient (checked by the
// caller once it holds currVotes).
func (op *Operator) checkCommandNow(cmd *command.Plaintext) (stateIdx, voIdx uint64, ok bool) {
	if cmd == nil {
		return 0, 0, false
	}
	nonce, stateIdx, voIdx, _, err := command.Unpack(cmd.Packed)
	if err != nil || stateIdx >= op.numSignUps || stateIdx >= uint64(len(op.stateLeaves)) {
		return stateIdx, voIdx, false
	}
	if voIdx >= op.cfg.MaxVoteOptions {
		return stateIdx, voIdx, false
	}
	if op.activeState[stateIdx].Sign() != 0 {
		return stateIdx, voIdx, false
	}

	leaf := op.stateLeaves[stateIdx]
	parity, err := elgamal.DecryptParity(op.sk.Scalar(), &elgamal.Ciphertext{C1: leaf.C1, C2: leaf.C2, XIncrement: leaf.XIncrement})
	if err != nil || parity {
		return stateIdx, voIdx, false
	}
	if nonce != leaf.Nonce+1 {
		return stateIdx, voIdx, false
	}

	msgHash, err := command.MsgHash(cmd.Packed, cmd.NewPkX, cmd.NewPkY)
	if err != nil {
		return stateIdx, voIdx, false
	}
	sig := &eddsa.Signature{R8: &field.Point{X: cmd.R8X, Y: cmd.R8Y}, S: cmd.S}
	if err := eddsa.Verify(&field.Point{X: leaf.PkX, Y: leaf.PkY}, msgHash, sig); err != nil {
		return stateIdx, voIdx, false
	}
	return stateIdx, voIdx, true
}

func packVals(maxVoteOptions, numSignUps uint64, isQv bool) *big.Int {
	out := new(big.Int).SetUint64(maxVoteOptions)
	out.Or(out, new(big.Int).Lsh(new(big.Int).SetUint64(numSignUps), 32))
	qv := uint64(0)
	if isQv {
		qv = 1
	}
	out.Or(out, new(big.Int).Lsh(new(big.Int).SetUint64(qv), 64))
	return out
}
