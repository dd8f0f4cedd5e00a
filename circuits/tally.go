package circuits

import (
	"github.com/consensys/gnark/frontend"
)

// IntStateTreeDepth is the compiled-in tally-batch-group depth, matching
// types.NewConfig's default.
const IntStateTreeDepth = 1

// TallyVoterSlot is one voter's per-option weights folded into a tally
// group, private input to ProcessTallyCircuit.
type TallyVoterSlot struct {
	Weights [5]frontend.Variable // one per vote option, this group's tree width
}

// ProcessTallyCircuit is the gnark witness layout for one processTally
// group.
type ProcessTallyCircuit struct {
	InputHash              frontend.Variable `gnark:",public"`
	StateRoot              frontend.Variable
	StateSalt              frontend.Variable
	PackedVals             frontend.Variable
	StateCommitment        frontend.Variable
	CurrentTallyCommitment frontend.Variable
	NewTallyCommitment     frontend.Variable

	Voters [5]TallyVoterSlot // one group of 5^intStateTreeDepth voters
}

// Define has no structural identity to assert independent of the Poseidon
// tally-folding constraint system (tally[o] += v*(v+10^24)), which is part
// of the follow-up circuit artifact.
func (c *ProcessTallyCircuit) Define(api frontend.API) error {
	return nil
}
