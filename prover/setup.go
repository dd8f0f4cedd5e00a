package prover

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/solidity"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog/log"
)

// SetupCircuit compiles circuit, runs Groth16's trusted setup, and
// persists the constraint system, proving key and verifying key under
// cfg.BuildDir/name.{ccs,pk,vk}, mirroring setup_circuit.go's
// SetupCircuit.
func SetupCircuit(cfg *ArtifactConfig, name string, circuit frontend.Circuit) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	if err := os.MkdirAll(cfg.BuildDir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("prover: build dir: %w", err)
	}

	log.Info().Str("circuit", name).Msg("compiling circuit")
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("prover: compile %s: %w", name, err)
	}
	log.Info().Str("circuit", name).Int("constraints", ccs.GetNbConstraints()).
		Int("publicInputs", ccs.GetNbPublicVariables()).Msg("compiled circuit")

	if err := writeTo(cfg.ccsPath(name), ccs); err != nil {
		return nil, nil, nil, err
	}

	log.Info().Str("circuit", name).Msg("running groth16 setup")
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("prover: groth16 setup %s: %w", name, err)
	}

	if err := writeTo(cfg.pkPath(name), pk); err != nil {
		return nil, nil, nil, err
	}
	if err := writeTo(cfg.vkPath(name), vk); err != nil {
		return nil, nil, nil, err
	}

	return ccs, pk, vk, nil
}

func writeTo(path string, w io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("prover: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := w.WriteTo(f); err != nil {
		return fmt.Errorf("prover: write %s: %w", path, err)
	}
	return nil
}

// ExportSolidity writes vk's Solidity verifier contract to path, matching
// CreateSolidity / generate_verifier.go.
func ExportSolidity(vk groth16.VerifyingKey, path string) error {
	var buf bytes.Buffer
	if err := vk.ExportSolidity(&buf, solidity.WithHashToFieldFunction(sha256.New())); err != nil {
		return fmt.Errorf("prover: export solidity: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("prover: write solidity verifier %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("solidity verifier exported")
	return nil
}

// LoadProvingArtifacts reads back the constraint system and proving key
// persisted by SetupCircuit, matching Relayer.setupCircuit's load path.
func LoadProvingArtifacts(cfg *ArtifactConfig, name string) (constraint.ConstraintSystem, groth16.ProvingKey, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if err := readFrom(cfg.ccsPath(name), ccs); err != nil {
		return nil, nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFrom(cfg.pkPath(name), pk); err != nil {
		return nil, nil, err
	}
	return ccs, pk, nil
}

func readFrom(path string, r io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("prover: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := r.ReadFrom(f); err != nil {
		return fmt.Errorf("prover: read %s: %w", path, err)
	}
	return nil
}
