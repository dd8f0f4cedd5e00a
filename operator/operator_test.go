package operator

import (
	"math/big"
	"testing"

	"github.com/kysee/amaci-core/addnewkey"
	"github.com/kysee/amaci-core/eddsa"
	"github.com/kysee/amaci-core/elgamal"
	"github.com/kysee/amaci-core/types"
	"github.com/kysee/amaci-core/voterclient"
	"github.com/stretchr/testify/require"
)

func smallConfig() *types.Config {
	return &types.Config{
		StateTreeDepth:      1,
		VoteOptionTreeDepth: 1,
		IntStateTreeDepth:   1,
		MessageBatchSize:    5,
		MaxVoteOptions:      5,
		IsQuadraticCost:     false,
	}
}

func TestOperatorFullRoundLifecycle(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)

	op, err := New(smallConfig(), operatorKey)
	require.NoError(t, err)
	require.Equal(t, Filling, op.Phase())

	require.NoError(t, op.InitStateTree(0, voterKey.Public(), big.NewInt(100)))
	otherKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	require.NoError(t, op.InitStateTree(1, otherKey.Public(), big.NewInt(50)))

	client := voterclient.New(voterKey, 0, op.PublicKey())
	msgs, err := client.BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 0, Weight: big.NewInt(10)},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, op.PushMessage(msgs[0].Ciphertext, msgs[0].EphemeralPk))

	require.NoError(t, op.EndVotePeriod())
	require.Equal(t, Processing, op.Phase())

	batch, err := op.ProcessMessages(big.NewInt(777))
	require.NoError(t, err)
	require.NotNil(t, batch.InputHash)
	require.Equal(t, Tallying, op.Phase(), "single window of 1 message under a batch size of 5 must drain to the end")

	tallyBatch, err := op.ProcessTally(big.NewInt(888))
	require.NoError(t, err)
	require.NotNil(t, tallyBatch.InputHash)
	require.Equal(t, Ended, op.Phase(), "one group covers both signed-up voters when intStateTreeDepth=1")

	want := new(big.Int).Mul(big.NewInt(10), new(big.Int).Add(big.NewInt(10), types.TallyWeightConstant))
	got := op.Tally()
	require.Equal(t, 0, want.Cmp(got[0]), "option 0 tally must equal v*(v+TallyWeightConstant)")
	for i := 1; i < len(got); i++ {
		require.Equal(t, 0, got[i].Sign(), "untouched options stay at zero")
	}
}

func TestOperatorRejectsOperationsOutsideTheirPhase(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	op, err := New(smallConfig(), operatorKey)
	require.NoError(t, err)

	_, err = op.ProcessMessages(big.NewInt(1))
	require.ErrorIs(t, err, ErrWrongPhase)

	_, err = op.ProcessTally(big.NewInt(1))
	require.ErrorIs(t, err, ErrWrongPhase)

	require.NoError(t, op.EndVotePeriod())
	require.ErrorIs(t, op.InitStateTree(0, operatorKey.Public(), big.NewInt(1)), ErrWrongPhase)
}

func TestOperatorInsufficientBalanceLeavesVoteUnapplied(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)

	op, err := New(smallConfig(), operatorKey)
	require.NoError(t, err)
	require.NoError(t, op.InitStateTree(0, voterKey.Public(), big.NewInt(5)))

	client := voterclient.New(voterKey, 0, op.PublicKey())
	msgs, err := client.BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 0, Weight: big.NewInt(10)},
	})
	require.NoError(t, err)
	require.NoError(t, op.PushMessage(msgs[0].Ciphertext, msgs[0].EphemeralPk))
	require.NoError(t, op.EndVotePeriod())

	_, err = op.ProcessMessages(big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, 0, op.stateLeaves[0].Balance.Cmp(big.NewInt(5)), "unaffordable vote must leave balance untouched")
}

func TestOperatorDeactivatedVoterCannotVote(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)

	op, err := New(smallConfig(), operatorKey)
	require.NoError(t, err)
	require.NoError(t, op.InitStateTree(0, voterKey.Public(), big.NewInt(100)))

	deactivateClient := voterclient.New(voterKey, 0, op.PublicKey())
	deactivateMsgs, err := deactivateClient.BuildDeactivatePayload()
	require.NoError(t, err)
	require.Len(t, deactivateMsgs, 1)
	require.NoError(t, op.PushDeactivateMessage(deactivateMsgs[0].Ciphertext, deactivateMsgs[0].EphemeralPk))

	voteClient := voterclient.New(voterKey, 0, op.PublicKey())
	voteMsgs, err := voteClient.BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 0, Weight: big.NewInt(1)},
	})
	require.NoError(t, err)
	require.NoError(t, op.PushMessage(voteMsgs[0].Ciphertext, voteMsgs[0].EphemeralPk))

	require.NoError(t, op.EndVotePeriod())

	_, err = op.ProcessDeactivateMessages(1, int(op.NumSignUps()))
	require.NoError(t, err)
	require.NotEqual(t, 0, op.activeState[0].Sign(), "voter must now be marked inactive")

	batch, err := op.ProcessMessages(big.NewInt(2))
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Equal(t, 0, op.stateLeaves[0].Balance.Cmp(big.NewInt(100)), "deactivated voter's vote must not apply")
}

func TestOperatorSeparatePayloadsOnlyTheLaterNonceOneApplies(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	voterKey, err := eddsa.NewRandom()
	require.NoError(t, err)

	op, err := New(smallConfig(), operatorKey)
	require.NoError(t, err)
	require.NoError(t, op.InitStateTree(0, voterKey.Public(), big.NewInt(100)))

	client := voterclient.New(voterKey, 0, op.PublicKey())

	// Two separate payloads both carry nonce 1. Reverse-order processing
	// applies the later one first; the earlier one then fails its nonce
	// check against the updated state.
	first, err := client.BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 0, Weight: big.NewInt(5)},
	})
	require.NoError(t, err)
	second, err := client.BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 2, Weight: big.NewInt(3)},
	})
	require.NoError(t, err)
	require.NoError(t, op.PushMessage(first[0].Ciphertext, first[0].EphemeralPk))
	require.NoError(t, op.PushMessage(second[0].Ciphertext, second[0].EphemeralPk))

	require.NoError(t, op.EndVotePeriod())
	_, err = op.ProcessMessages(big.NewInt(1))
	require.NoError(t, err)
	_, err = op.ProcessTally(big.NewInt(2))
	require.NoError(t, err)

	tally := op.Tally()
	require.Equal(t, 0, tally[0].Sign(), "the earlier payload must be invalidated by the nonce check")
	want := new(big.Int).Mul(big.NewInt(3), new(big.Int).Add(big.NewInt(3), types.TallyWeightConstant))
	require.Equal(t, 0, tally[2].Cmp(want))
	require.Equal(t, 0, op.stateLeaves[0].Balance.Cmp(big.NewInt(97)))
}

func TestOperatorQuadraticCostAccounting(t *testing.T) {
	cfg := smallConfig()
	cfg.IsQuadraticCost = true

	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	affordKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	brokeKey, err := eddsa.NewRandom()
	require.NoError(t, err)

	op, err := New(cfg, operatorKey)
	require.NoError(t, err)
	require.NoError(t, op.InitStateTree(0, affordKey.Public(), big.NewInt(100)))
	require.NoError(t, op.InitStateTree(1, brokeKey.Public(), big.NewInt(100)))

	affordClient := voterclient.New(affordKey, 0, op.PublicKey())
	affordMsgs, err := affordClient.BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 0, Weight: big.NewInt(5)},
		{OptionIdx: 1, Weight: big.NewInt(8)},
	})
	require.NoError(t, err)
	for _, m := range affordMsgs {
		require.NoError(t, op.PushMessage(m.Ciphertext, m.EphemeralPk))
	}

	// 11^2 = 121 > 100: unaffordable, must be retained but not applied.
	brokeClient := voterclient.New(brokeKey, 1, op.PublicKey())
	brokeMsgs, err := brokeClient.BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 0, Weight: big.NewInt(11)},
	})
	require.NoError(t, err)
	require.NoError(t, op.PushMessage(brokeMsgs[0].Ciphertext, brokeMsgs[0].EphemeralPk))

	require.NoError(t, op.EndVotePeriod())
	_, err = op.ProcessMessages(big.NewInt(1))
	require.NoError(t, err)

	// 100 - 5^2 - 8^2 = 11 voice credits left for the affordable plan.
	require.Equal(t, 0, op.stateLeaves[0].Balance.Cmp(big.NewInt(11)))
	require.Equal(t, 0, op.stateLeaves[1].Balance.Cmp(big.NewInt(100)))
}

func TestOperatorDeactivateRebindAndVoteWithinOneRound(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	oldKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	newKey, err := eddsa.NewRandom()
	require.NoError(t, err)

	op, err := New(smallConfig(), operatorKey)
	require.NoError(t, err)
	require.NoError(t, op.InitStateTree(0, oldKey.Public(), big.NewInt(100)))

	deactivateMsgs, err := voterclient.New(oldKey, 0, op.PublicKey()).BuildDeactivatePayload()
	require.NoError(t, err)
	require.NoError(t, op.PushDeactivateMessage(deactivateMsgs[0].Ciphertext, deactivateMsgs[0].EphemeralPk))

	// Deactivate batches run while the vote period is still open, so the
	// voter can rebind and vote again in the same round.
	_, err = op.ProcessDeactivateMessages(1, int(op.NumSignUps()))
	require.NoError(t, err)
	require.NotEqual(t, 0, op.activeState[0].Sign())

	// The rewritten state leaf must now decrypt odd (inactive).
	parity, err := elgamal.DecryptParity(operatorKey.Scalar(), &elgamal.Ciphertext{
		C1: op.stateLeaves[0].C1, C2: op.stateLeaves[0].C2, XIncrement: big.NewInt(0),
	})
	require.NoError(t, err)
	require.True(t, parity)

	leaves := make([]addnewkey.Leaf, len(op.deactivateLeaves))
	for i, l := range op.deactivateLeaves {
		leaves[i] = addnewkey.Leaf{C1: l.C1, C2: l.C2, SharedKeyHash: l.SharedKeyHash}
	}
	w, err := addnewkey.BuildWitness(oldKey, op.PublicKey(), leaves)
	require.NoError(t, err)

	idx, err := op.RebindKey(w, newKey.Public(), big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, uint64(1), idx, "rebind signs up at stateIdx = numSignUps")

	// The rebound leaf inherits the re-randomized deactivate ciphertext,
	// which decrypts even because the deactivation was valid.
	parity, err = elgamal.DecryptParity(operatorKey.Scalar(), &elgamal.Ciphertext{
		C1: op.stateLeaves[1].C1, C2: op.stateLeaves[1].C2, XIncrement: big.NewInt(0),
	})
	require.NoError(t, err)
	require.False(t, parity)

	_, err = op.RebindKey(w, newKey.Public(), big.NewInt(100))
	require.ErrorIs(t, err, ErrNullifierReused)

	voteMsgs, err := voterclient.New(newKey, idx, op.PublicKey()).BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 2, Weight: big.NewInt(60)},
	})
	require.NoError(t, err)
	require.NoError(t, op.PushMessage(voteMsgs[0].Ciphertext, voteMsgs[0].EphemeralPk))

	require.NoError(t, op.EndVotePeriod())
	_, err = op.ProcessMessages(big.NewInt(7))
	require.NoError(t, err)
	_, err = op.ProcessTally(big.NewInt(8))
	require.NoError(t, err)

	want := new(big.Int).Mul(big.NewInt(60), new(big.Int).Add(big.NewInt(60), types.TallyWeightConstant))
	require.Equal(t, 0, op.Tally()[2].Cmp(want), "the rebound key's vote must tally")
	require.Equal(t, 0, op.stateLeaves[1].Balance.Cmp(big.NewInt(40)))
}

func TestOperatorMultiVoterRoundTalliesAndBalances(t *testing.T) {
	operatorKey, err := eddsa.NewRandom()
	require.NoError(t, err)
	v1Key, err := eddsa.NewRandom()
	require.NoError(t, err)
	v2Key, err := eddsa.NewRandom()
	require.NoError(t, err)
	v3Key, err := eddsa.NewRandom()
	require.NoError(t, err)

	op, err := New(smallConfig(), operatorKey)
	require.NoError(t, err)
	require.NoError(t, op.InitStateTree(0, v1Key.Public(), big.NewInt(100)))
	require.NoError(t, op.InitStateTree(1, v2Key.Public(), big.NewInt(100)))
	require.NoError(t, op.InitStateTree(2, v3Key.Public(), big.NewInt(100)))

	v1Msgs, err := voterclient.New(v1Key, 0, op.PublicKey()).BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 0, Weight: big.NewInt(50)},
		{OptionIdx: 1, Weight: big.NewInt(30)},
	})
	require.NoError(t, err)
	v2Msgs, err := voterclient.New(v2Key, 1, op.PublicKey()).BuildVotePayload([]voterclient.Selection{
		{OptionIdx: 1, Weight: big.NewInt(40)},
		{OptionIdx: 2, Weight: big.NewInt(20)},
	})
	require.NoError(t, err)
	for _, m := range append(v1Msgs, v2Msgs...) {
		require.NoError(t, op.PushMessage(m.Ciphertext, m.EphemeralPk))
	}

	require.NoError(t, op.EndVotePeriod())
	_, err = op.ProcessMessages(big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, Tallying, op.Phase())
	_, err = op.ProcessTally(big.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, Ended, op.Phase())

	require.Equal(t, 0, op.stateLeaves[0].Balance.Cmp(big.NewInt(20)))
	require.Equal(t, 0, op.stateLeaves[1].Balance.Cmp(big.NewInt(40)))
	require.Equal(t, 0, op.stateLeaves[2].Balance.Cmp(big.NewInt(100)))

	encoded := func(weights ...int64) *big.Int {
		sum := big.NewInt(0)
		for _, v := range weights {
			w := big.NewInt(v)
			sum.Add(sum, new(big.Int).Mul(w, new(big.Int).Add(w, types.TallyWeightConstant)))
		}
		return sum
	}
	tally := op.Tally()
	require.Equal(t, 0, tally[0].Cmp(encoded(50)))
	require.Equal(t, 0, tally[1].Cmp(encoded(30, 40)))
	require.Equal(t, 0, tally[2].Cmp(encoded(20)))
	require.Equal(t, 0, tally[3].Sign())
	require.Equal(t, 0, tally[4].Sign())
}
