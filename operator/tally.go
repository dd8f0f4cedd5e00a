package operator

import (
	"math/big"

	"github.com/kysee/amaci-core/merkletree"
	"github.com/kysee/amaci-core/poseidon"
	"github.com/kysee/amaci-core/types"
	"github.com/kysee/amaci-core/witness"
)

// ProcessTally folds one group of 5^intStateTreeDepth voters' per-option
// weights into the running tally and emits the group's witness bundle.
// The last group transitions the round to Ended.
func (op *Operator) ProcessTally(tallySalt *big.Int) (*witness.TallyBatch, error) {
	if err := op.requirePhase(Tallying); err != nil {
		return nil, err
	}

	groupSize := 1
	for i := uint64(0); i < op.cfg.IntStateTreeDepth; i++ {
		groupSize *= merkletree.Degree
	}
	start := int(op.tallyGroupCursor) * groupSize
	end := start + groupSize
	if end > len(op.stateLeaves) {
		end = len(op.stateLeaves)
	}

	currentCommit, err := poseidon.Hash2([2]*big.Int{op.tallyTree.Root(), op.tallySalt})
	if err != nil {
		return nil, err
	}

	voterWeights := make([][]*big.Int, 0, end-start)
	for voterIdx := start; voterIdx < end; voterIdx++ {
		weights := make([]*big.Int, len(op.tally))
		for i := range weights {
			weights[i] = big.NewInt(0)
		}
		voterWeights = append(voterWeights, weights)

		voTree, ok := op.voteOptionTrees[uint64(voterIdx)]
		if !ok || voterIdx >= int(op.numSignUps) {
			continue // never voted: no weights to fold
		}
		for opt := 0; opt < voTree.Capacity() && opt < len(op.tally); opt++ {
			v, err := voTree.Leaf(opt)
			if err != nil {
				return nil, err
			}
			weights[opt] = v
			if v.Sign() == 0 {
				continue
			}
			weighted := new(big.Int).Mul(v, new(big.Int).Add(v, types.TallyWeightConstant))
			op.tally[opt] = new(big.Int).Add(op.tally[opt], weighted)
			if err := op.tallyTree.UpdateLeaf(opt, op.tally[opt]); err != nil {
				return nil, err
			}
		}
	}

	newCommit, err := poseidon.Hash2([2]*big.Int{op.tallyTree.Root(), tallySalt})
	if err != nil {
		return nil, err
	}

	packedVals := packVals(op.cfg.MaxVoteOptions, op.numSignUps, op.cfg.IsQuadraticCost)

	bundle := &witness.TallyBatch{
		StateRoot:              op.stateTree.Root(),
		StateSalt:              op.stateSalt,
		PackedVals:             packedVals,
		StateCommitment:        op.stateCommitment,
		CurrentTallyCommitment: currentCommit,
		NewTallyCommitment:     newCommit,
		VoterWeights:           voterWeights,
	}
	bundle.InputHash = bundle.ComputeInputHash()

	op.tallyCommitment = newCommit
	op.tallySalt = tallySalt
	op.tallyGroupCursor++

	log.Info().Int("groupStart", start).Int("groupEnd", end).Msg("processed tally group")

	if end >= len(op.stateLeaves) {
		op.phase = Ended
		log.Info().Msg("all tally groups processed; round Ended")
	}
	return bundle, nil
}

// Tally returns the current per-option tally values.
func (op *Operator) Tally() []*big.Int {
	out := make([]*big.Int, len(op.tally))
	for i, v := range op.tally {
		out[i] = new(big.Int).Set(v)
	}
	return out
}
