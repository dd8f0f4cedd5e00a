package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	require.Equal(t, uint64(2), cfg.StateTreeDepth)
	require.Equal(t, uint64(1), cfg.VoteOptionTreeDepth)
	require.Equal(t, uint64(1), cfg.IntStateTreeDepth)
	require.Equal(t, uint64(5), cfg.MessageBatchSize)
	require.Equal(t, uint64(5), cfg.MaxVoteOptions)
	require.False(t, cfg.IsQuadraticCost)
	require.Equal(t, "m/44'/118'/0'/0/0", cfg.MnemonicDerivationPath)
}

func TestNewConfigOverridesFromArgs(t *testing.T) {
	cfg := NewConfig(
		"--state-tree-depth", "3",
		"--vote-option-tree-depth", "2",
		"--message-batch-size", "25",
		"--quadratic", "true",
		"--rpc", "http://example.invalid:8545",
	)
	require.Equal(t, uint64(3), cfg.StateTreeDepth)
	require.Equal(t, uint64(2), cfg.VoteOptionTreeDepth)
	require.Equal(t, uint64(25), cfg.MessageBatchSize)
	require.True(t, cfg.IsQuadraticCost)
	require.Equal(t, "http://example.invalid:8545", cfg.RPCEndpoint)

	// Unmentioned fields keep their defaults.
	require.Equal(t, uint64(1), cfg.IntStateTreeDepth)
	require.Equal(t, uint64(5), cfg.MaxVoteOptions)
}

func TestNewConfigPanicsOnDanglingFlag(t *testing.T) {
	defer func() {
		require.NotNil(t, recover(), "a flag with no following value must panic")
	}()
	NewConfig("--state-tree-depth")
}
