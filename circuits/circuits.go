// Package circuits defines the gnark witness layouts for the four Groth16
// circuits the operator state machine feeds: one per processDeactivateMessages
// batch, one per processMessages batch, one per processTally group, and one
// for an add-new-key rebinding. Field layout mirrors the witness bundles in
// package witness exactly, so a prover can assign a circuit's fields
// directly from a witness.DeactivateBatch/MessageBatch/TallyBatch/AddNewKey
// value.
//
// Full constraint authorship (Poseidon-in-circuit leaf recomposition,
// EdDSA-Poseidon signature verification, ElGamal re-encryption checks) is
// a separate artifact; this package fixes only the witness layout it must
// consume. Define bodies here assert only identities available without a
// Poseidon circuit gadget: batch slots' Valid flags are boolean, and in
// ProcessMessagesCircuit an invalid slot carries the sentinel state index.
// Path widths are fixed by the array types, not by Define.
package circuits

import (
	"github.com/consensys/gnark/frontend"
)

// BatchSize is the compiled-in message-batch width these circuits assume.
// A deployment that changes messageBatchSize recompiles; the package picks
// one fixed width rather than generating circuits dynamically.
const BatchSize = 5

// MerklePath mirrors witness.MerklePath for a fixed tree depth: one
// 4-sibling set per level.
type MerklePath struct {
	Siblings [][4]frontend.Variable
}

func newMerklePath(depth int) MerklePath {
	return MerklePath{Siblings: make([][4]frontend.Variable, depth)}
}

// assertBoolean constrains v to {0,1}, the one structural check every
// batch slot's Valid flag must satisfy regardless of circuit follow-up.
func assertBoolean(api frontend.API, v frontend.Variable) {
	api.AssertIsBoolean(v)
}
