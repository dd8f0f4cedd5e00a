// Command setupcircuits compiles each of the four AMACI circuits, runs
// Groth16's trusted setup, and exports a Solidity verifier per circuit.
package main

import (
	"os"
	"path/filepath"

	"github.com/consensys/gnark/frontend"
	"github.com/kysee/amaci-core/circuits"
	"github.com/kysee/amaci-core/prover"
	"github.com/kysee/amaci-core/types"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := prover.NewArtifactConfig(types.NewConfig(os.Args...))
	if err := setupAll(cfg); err != nil {
		log.Fatal().Err(err).Msg("circuit setup failed")
	}
}

func setupAll(cfg *prover.ArtifactConfig) error {
	entries := []struct {
		name    string
		circuit frontend.Circuit
	}{
		{"ProcessDeactivateCircuit", &circuits.ProcessDeactivateCircuit{}},
		{"ProcessMessagesCircuit", &circuits.ProcessMessagesCircuit{}},
		{"ProcessTallyCircuit", &circuits.ProcessTallyCircuit{}},
		{"AddNewKeyCircuit", &circuits.AddNewKeyCircuit{}},
	}

	solDir := filepath.Join(cfg.BuildDir, "verifiers")
	if err := os.MkdirAll(solDir, 0755); err != nil {
		return err
	}

	for _, e := range entries {
		_, _, vk, err := prover.SetupCircuit(cfg, e.name, e.circuit)
		if err != nil {
			return err
		}
		solPath := filepath.Join(solDir, e.name+"Verifier.sol")
		if err := prover.ExportSolidity(vk, solPath); err != nil {
			return err
		}
	}
	return nil
}
