package voterclient

import (
	"math/big"
	"testing"

	"github.com/kysee/amaci-core/command"
	"github.com/kysee/amaci-core/eddsa"
	"github.com/kysee/amaci-core/field"
	"github.com/stretchr/testify/require"
)

func decryptMessage(t *testing.T, operatorKey *eddsa.KeyPair, msg Message) *command.Plaintext {
	t.Helper()
	sharedKey := operatorKey.ECDHSharedKey(msg.EphemeralPk)
	pt, err := command.Decrypt(msg.Ciphertext, sharedKey, 0)
	require.NoError(t, err)
	require.NotNil(t, pt)
	return pt
}

func TestBuildVotePayloadOrdersNoncesAndSentinelsTheFirstApplied(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)

	c := New(voterKey, 5, operatorKey.Public())
	msgs, err := c.BuildVotePayload([]Selection{
		{OptionIdx: 2, Weight: big.NewInt(3)},
		{OptionIdx: 0, Weight: big.NewInt(1)},
		{OptionIdx: 1, Weight: big.NewInt(2)},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	// Messages are produced in reverse of application order: msgs[0] is
	// nonce 3 (option 2), msgs[2] is nonce 1 (option 0, the first the
	// operator applies) and carries the (0,0) sentinel in place of a key.
	first := decryptMessage(t, operatorKey, msgs[0])
	nonce, stateIdx, voIdx, newVotes, err := command.Unpack(first.Packed)
	require.NoError(t, err)
	require.Equal(t, uint64(3), nonce)
	require.Equal(t, uint64(5), stateIdx)
	require.Equal(t, uint64(2), voIdx)
	require.Equal(t, 0, newVotes.Cmp(big.NewInt(3)))
	require.False(t, first.NewPkX.Sign() == 0 && first.NewPkY.Sign() == 0)

	last := decryptMessage(t, operatorKey, msgs[2])
	nonceLast, _, voIdxLast, newVotesLast, err := command.Unpack(last.Packed)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonceLast)
	require.Equal(t, uint64(0), voIdxLast)
	require.Equal(t, 0, newVotesLast.Cmp(big.NewInt(1)))
	require.True(t, last.NewPkX.Sign() == 0 && last.NewPkY.Sign() == 0, "first-applied message must sentinel (0,0) for no key rotation")
}

func TestBuildVotePayloadRejectsDuplicateOptionIndex(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	c := New(voterKey, 0, operatorKey.Public())

	_, err = c.BuildVotePayload([]Selection{
		{OptionIdx: 1, Weight: big.NewInt(1)},
		{OptionIdx: 1, Weight: big.NewInt(2)},
	})
	require.Error(t, err)
}

func TestBuildVotePayloadDropsZeroWeightSelections(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	c := New(voterKey, 0, operatorKey.Public())

	msgs, err := c.BuildVotePayload([]Selection{
		{OptionIdx: 0, Weight: big.NewInt(0)},
		{OptionIdx: 1, Weight: big.NewInt(5)},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestBuildVotePayloadEmptyPlanReturnsNoMessages(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	c := New(voterKey, 0, operatorKey.Public())

	msgs, err := c.BuildVotePayload(nil)
	require.NoError(t, err)
	require.Nil(t, msgs)
}

func TestBuildDeactivatePayloadProducesSingleZeroWeightMessage(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	c := New(voterKey, 3, operatorKey.Public())

	msgs, err := c.BuildDeactivatePayload()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	pt := decryptMessage(t, operatorKey, msgs[0])
	_, stateIdx, voIdx, newVotes, err := command.Unpack(pt.Packed)
	require.NoError(t, err)
	require.Equal(t, uint64(3), stateIdx)
	require.Equal(t, uint64(0), voIdx)
	require.Equal(t, 0, newVotes.Sign())
}

func TestDeactivatePayloadSignatureVerifiesAgainstVoterKey(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	c := New(voterKey, 1, operatorKey.Public())

	msgs, err := c.BuildDeactivatePayload()
	require.NoError(t, err)
	pt := decryptMessage(t, operatorKey, msgs[0])

	msgHash, err := command.MsgHash(pt.Packed, pt.NewPkX, pt.NewPkY)
	require.NoError(t, err)
	sig := &eddsa.Signature{R8: &field.Point{X: pt.R8X, Y: pt.R8Y}, S: pt.S}
	require.NoError(t, eddsa.Verify(voterKey.Public(), msgHash, sig))
}
