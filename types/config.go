package types

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the operator/prover configuration: tree depths, batch
// sizing, and the cost-accounting mode, plus the runtime knobs (RPC
// endpoint, artifact root) the relayer tooling reads at startup.
type Config struct {
	RootDir string

	// RPCEndpoint is the indexer/RPC endpoint deactivate logs and sign-up
	// events are fetched from.
	RPCEndpoint string

	StateTreeDepth      uint64
	VoteOptionTreeDepth uint64
	IntStateTreeDepth   uint64
	MessageBatchSize    uint64
	MaxVoteOptions      uint64
	IsQuadraticCost     bool

	// OperatorPubKey is the packed BabyJubJub operator public key, as a
	// decimal field element; voter-side tooling unpacks it with
	// eddsa.UnpackPubKey.
	OperatorPubKey string

	MnemonicDerivationPath string
}

func NewConfig(args ...string) *Config {
	config := Config{
		RootDir:     getEnv("ROOT", "."),
		RPCEndpoint: getEnv("RPC_ENDPOINT", "http://127.0.0.1:8545"),

		StateTreeDepth:      2,
		VoteOptionTreeDepth: 1,
		IntStateTreeDepth:   1,
		MessageBatchSize:    5,
		MaxVoteOptions:      5,
		IsQuadraticCost:     false,

		OperatorPubKey:         getEnv("OPERATOR_PUBKEY", ""),
		MnemonicDerivationPath: "m/44'/118'/0'/0/0",
	}

	for i := 0; i < len(args); i++ {
		if len(args) <= i+1 {
			panic(fmt.Errorf("missing argument for %s", args[i]))
		}

		switch args[i] {
		case "--root":
			config.RootDir = args[i+1]
			i++
		case "--rpc":
			config.RPCEndpoint = args[i+1]
			i++
		case "--state-tree-depth":
			config.StateTreeDepth, _ = strconv.ParseUint(args[i+1], 10, 64)
			i++
		case "--vote-option-tree-depth":
			config.VoteOptionTreeDepth, _ = strconv.ParseUint(args[i+1], 10, 64)
			i++
		case "--int-state-tree-depth":
			config.IntStateTreeDepth, _ = strconv.ParseUint(args[i+1], 10, 64)
			i++
		case "--message-batch-size":
			config.MessageBatchSize, _ = strconv.ParseUint(args[i+1], 10, 64)
			i++
		case "--max-vote-options":
			config.MaxVoteOptions, _ = strconv.ParseUint(args[i+1], 10, 64)
			i++
		case "--quadratic":
			config.IsQuadraticCost, _ = strconv.ParseBool(args[i+1])
			i++
		case "--operator-pubkey":
			config.OperatorPubKey = args[i+1]
			i++
		case "--derivation-path":
			config.MnemonicDerivationPath = args[i+1]
			i++
		}
	}

	return &config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
