package circuits

import (
	"github.com/consensys/gnark/frontend"
)

// StateTreeDepth, DeactivateTreeDepth and VoteOptionTreeDepth are the
// compiled-in tree depths these circuits assume, matching
// types.NewConfig's defaults; the deactivate tree is always
// stateTreeDepth+2 deep.
const (
	StateTreeDepth      = 2
	DeactivateTreeDepth = StateTreeDepth + 2
	VoteOptionTreeDepth = 1
)

// DeactivateSlot is one batch slot's private witness for
// ProcessDeactivateCircuit, mirroring witness.DeactivateCommandWitness.
type DeactivateSlot struct {
	StateIdx     frontend.Variable
	StatePath    [StateTreeDepth][4]frontend.Variable
	C1X, C1Y     frontend.Variable
	C2X, C2Y     frontend.Variable
	Valid        frontend.Variable
	ActiveBefore frontend.Variable
	DeactPath    [DeactivateTreeDepth][4]frontend.Variable
}

// ProcessDeactivateCircuit is the gnark witness layout for one
// processDeactivateMessages batch: public inputs are the single packed
// input hash plus the fields it is computed over, private inputs are the
// per-slot command witnesses.
type ProcessDeactivateCircuit struct {
	// Public inputs, folded by poseidon.ComputeInputHash into InputHash.
	InputHash               frontend.Variable `gnark:",public"`
	NewDeactivateRoot       frontend.Variable
	OperatorPkHash          frontend.Variable
	BatchStartHash          frontend.Variable
	BatchEndHash            frontend.Variable
	CurrentDeactivateCommit frontend.Variable
	NewDeactivateCommit     frontend.Variable
	SubStateRoot            frontend.Variable

	// Private per-slot inputs.
	Slots [BatchSize]DeactivateSlot
}

// Define constrains every slot's Valid flag to be boolean. Poseidon leaf
// recomposition, EdDSA-Poseidon signature verification and the SHA-256
// input-hash recomputation are left to the follow-up circuit artifact.
func (c *ProcessDeactivateCircuit) Define(api frontend.API) error {
	for i := range c.Slots {
		assertBoolean(api, c.Slots[i].Valid)
	}
	return nil
}
