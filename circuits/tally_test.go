package circuits

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	gnark_test "github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"
)

// ProcessTallyCircuit's Define is an intentional stub pending the
// Poseidon tally-folding follow-up circuit; any fully-assigned witness
// solves.
func TestProcessTallyCircuitStubAcceptsAnyAssignment(t *testing.T) {
	w := &ProcessTallyCircuit{
		InputHash: 0, StateRoot: 1, StateSalt: 2, PackedVals: 0,
		StateCommitment: 0, CurrentTallyCommitment: 0, NewTallyCommitment: 0,
	}
	for i := range w.Voters {
		for j := range w.Voters[i].Weights {
			w.Voters[i].Weights[j] = 0
		}
	}
	err := gnark_test.IsSolved(&ProcessTallyCircuit{}, w, ecc.BN254.ScalarField())
	require.NoError(t, err)
}
