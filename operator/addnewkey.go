package operator

import (
	"errors"
	"math/big"

	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/witness"
)

// ErrNullifierReused is returned when RebindKey is called twice with
// witnesses sharing the same nullifier, i.e. an attempt to rebind the same
// deactivated key more than once.
var ErrNullifierReused = errors.New("operator: nullifier already observed")

// RebindKey consumes a witness.AddNewKey bundle built by addnewkey.BuildWitness
// and creates the new state leaf it authorizes: a fresh public key bound to
// the deactivated voter's inherited balance, signed up at stateIdx =
// numSignUps. The inherited balance is supplied by
// the caller, who reads it off the voter's pre-deactivation state leaf (the
// witness itself carries no balance; it only proves the right to rebind).
//
// The new leaf's ciphertext is the witness's re-randomized deactivate
// ciphertext (d1, d2), not a fresh encryption: its hidden parity carries
// whether the deactivation it came from was valid, so a rebind from an
// errored deactivation yields an inactive leaf without the operator ever
// learning which.
func (op *Operator) RebindKey(w *witness.AddNewKey, newPk *field.Point, inheritedBalance *big.Int) (uint64, error) {
	if err := op.requirePhase(Filling); err != nil {
		return 0, err
	}
	if op.nullifierSeen(w.Nullifier) {
		return 0, ErrNullifierReused
	}

	i := op.numSignUps
	voTree, err := op.voteOptionTreeFor(i)
	if err != nil {
		return 0, err
	}
	leaf := StateLeaf{
		PkX: new(big.Int).Set(newPk.X), PkY: new(big.Int).Set(newPk.Y),
		Balance: new(big.Int).Set(inheritedBalance), VoteOptionRoot: voTree.Root(),
		Nonce: 0, C1: w.D1, C2: w.D2, XIncrement: big.NewInt(0),
	}
	if err := op.setStateLeaf(i, leaf); err != nil {
		return 0, err
	}
	op.numSignUps = i + 1
	op.nullifiers = append(op.nullifiers, new(big.Int).Set(w.Nullifier))

	log.Info().Uint64("idx", i).Msg("rebound deactivated key to new state leaf")
	return i, nil
}

func (op *Operator) nullifierSeen(n *big.Int) bool {
	for _, seen := range op.nullifiers {
		if seen.Cmp(n) == 0 {
			return true
		}
	}
	return false
}
