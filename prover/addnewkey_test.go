package prover

import (
	"math/big"
	"testing"

	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/witness"
	"github.com/stretchr/testify/require"
)

func TestAddNewKeyAssignmentCopiesEveryPoint(t *testing.T) {
	w := &witness.AddNewKey{
		InputHash:      big.NewInt(1),
		OperatorPk:     &field.Point{X: big.NewInt(2), Y: big.NewInt(3)},
		DeactivateRoot: big.NewInt(4),
		LeafIndex:      5,
		LeafHash:       big.NewInt(6),
		C1:             &field.Point{X: big.NewInt(7), Y: big.NewInt(8)},
		C2:             &field.Point{X: big.NewInt(9), Y: big.NewInt(10)},
		RPrime:         big.NewInt(11),
		D1:             &field.Point{X: big.NewInt(12), Y: big.NewInt(13)},
		D2:             &field.Point{X: big.NewInt(14), Y: big.NewInt(15)},
		Nullifier:      big.NewInt(16),
		OldSkScalar:    big.NewInt(17),
	}

	c := addNewKeyAssignment(w)
	require.Equal(t, w.InputHash, c.InputHash)
	require.Equal(t, w.OperatorPk.X, c.OperatorPkX)
	require.Equal(t, w.OperatorPk.Y, c.OperatorPkY)
	require.Equal(t, w.C1.X, c.C1X)
	require.Equal(t, w.D2.Y, c.D2Y)
	require.Equal(t, w.Nullifier, c.Nullifier)
	require.Equal(t, w.OldSkScalar, c.OldSkScalar)
	require.Equal(t, 5, c.LeafIndex)
}
