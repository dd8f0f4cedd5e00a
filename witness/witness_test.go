package witness

import (
	"math/big"
	"testing"

	"github.com/kysee/amaci-core/field"
	"github.com/stretchr/testify/require"
)

func samplePoint(x, y int64) *field.Point {
	return &field.Point{X: big.NewInt(x), Y: big.NewInt(y)}
}

func TestHashPointIsDeterministicAndOrderSensitive(t *testing.T) {
	a, err := HashPoint(samplePoint(1, 2))
	require.NoError(t, err)
	b, err := HashPoint(samplePoint(1, 2))
	require.NoError(t, err)
	require.Equal(t, 0, a.Cmp(b))

	c, err := HashPoint(samplePoint(2, 1))
	require.NoError(t, err)
	require.NotEqual(t, 0, a.Cmp(c))
}

func TestDeactivateBatchComputeInputHashIsDeterministic(t *testing.T) {
	b := &DeactivateBatch{
		OperatorPk:              samplePoint(1, 2),
		NewDeactivateRoot:       big.NewInt(3),
		BatchStartHash:          big.NewInt(4),
		BatchEndHash:            big.NewInt(5),
		CurrentDeactivateCommit: big.NewInt(6),
		NewDeactivateCommit:     big.NewInt(7),
		SubStateRoot:            big.NewInt(8),
	}
	a, err := b.ComputeInputHash()
	require.NoError(t, err)
	b2, err := b.ComputeInputHash()
	require.NoError(t, err)
	require.Equal(t, 0, a.Cmp(b2))
}

func TestMessageBatchComputeInputHashChangesWithAnyField(t *testing.T) {
	base := &MessageBatch{
		OperatorPk:           samplePoint(1, 2),
		PackedVals:           big.NewInt(10),
		BatchStartHash:       big.NewInt(1),
		BatchEndHash:         big.NewInt(2),
		OldStateCommitment:   big.NewInt(3),
		NewStateCommitment:   big.NewInt(4),
		DeactivateCommitment: big.NewInt(5),
	}
	baseline, err := base.ComputeInputHash()
	require.NoError(t, err)

	changed := *base
	changed.NewStateCommitment = big.NewInt(999)
	got, err := changed.ComputeInputHash()
	require.NoError(t, err)

	require.NotEqual(t, 0, baseline.Cmp(got))
}

func TestTallyBatchComputeInputHashIsDeterministic(t *testing.T) {
	b := &TallyBatch{
		StateRoot:              big.NewInt(1),
		StateSalt:              big.NewInt(2),
		PackedVals:             big.NewInt(3),
		StateCommitment:        big.NewInt(4),
		CurrentTallyCommitment: big.NewInt(5),
		NewTallyCommitment:     big.NewInt(6),
	}
	a := b.ComputeInputHash()
	b2 := b.ComputeInputHash()
	require.Equal(t, 0, a.Cmp(b2))
}

func TestAddNewKeyComputeInputHashIgnoresFieldsNotInContract(t *testing.T) {
	w := &AddNewKey{
		OperatorPk:     samplePoint(1, 2),
		DeactivateRoot: big.NewInt(3),
		Nullifier:      big.NewInt(4),
		D1:             samplePoint(5, 6),
		D2:             samplePoint(7, 8),
		LeafIndex:      42,
		LeafHash:       big.NewInt(999),
	}
	a, err := w.ComputeInputHash()
	require.NoError(t, err)

	w2 := *w
	w2.LeafIndex = 0
	w2.LeafHash = big.NewInt(0)
	b, err := w2.ComputeInputHash()
	require.NoError(t, err)

	require.Equal(t, 0, a.Cmp(b), "LeafIndex/LeafHash are private witness-only fields, not folded into the input hash")
}
