package circuits

import (
	"github.com/consensys/gnark/frontend"
)

// MessageSlot is one batch slot's private witness for
// ProcessMessagesCircuit, mirroring witness.MessageSlotWitness.
type MessageSlot struct {
	StateLeafBefore      [10]frontend.Variable
	StatePath            [StateTreeDepth][4]frontend.Variable
	VoteOptionLeafBefore frontend.Variable
	VoteOptionPath       [VoteOptionTreeDepth][4]frontend.Variable
	ActiveStateLeaf      frontend.Variable
	ActiveStatePath      [StateTreeDepth][4]frontend.Variable
	Valid                frontend.Variable
	StateIdx             frontend.Variable
}

// ProcessMessagesCircuit is the gnark witness layout for one
// processMessages batch (reverse-order vote-command application).
type ProcessMessagesCircuit struct {
	InputHash            frontend.Variable `gnark:",public"`
	PackedVals           frontend.Variable
	OperatorPkHash       frontend.Variable
	BatchStartHash       frontend.Variable
	BatchEndHash         frontend.Variable
	OldStateCommitment   frontend.Variable
	NewStateCommitment   frontend.Variable
	DeactivateCommitment frontend.Variable

	Slots [BatchSize]MessageSlot
}

// Define constrains every slot's Valid flag to be boolean and its StateIdx
// to equal the invalid-sentinel capacity-minus-one whenever Valid is 0,
// the one structural invariant of the batch layout that holds independent
// of the full constraint system.
func (c *ProcessMessagesCircuit) Define(api frontend.API) error {
	invalidSentinel := 1
	for i := 0; i < StateTreeDepth; i++ {
		invalidSentinel *= 5
	}
	invalidSentinel--

	for i := range c.Slots {
		assertBoolean(api, c.Slots[i].Valid)
		diff := api.Sub(c.Slots[i].StateIdx, invalidSentinel)
		api.AssertIsEqual(api.Mul(api.Sub(1, c.Slots[i].Valid), diff), 0)
	}
	return nil
}
