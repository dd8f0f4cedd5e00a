package prover

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/kysee/amaci-core/circuits"
	"github.com/kysee/amaci-core/operator"
	"github.com/kysee/amaci-core/types"
	"github.com/kysee/amaci-core/witness"
	"github.com/rs/zerolog/log"
)

// ErrProverFailed wraps any Groth16 proving failure. It is fatal for the
// call that hit it but retryable by the transport layer.
type ErrProverFailed struct{ Err error }

func (e *ErrProverFailed) Error() string {
	return fmt.Sprintf("prover: groth16 prove failed: %v", e.Err)
}
func (e *ErrProverFailed) Unwrap() error { return e.Err }

// Driver runs one operator state machine's process* calls through their
// matching circuit and persists the resulting proof: process a batch,
// assign the witness, prove, write the calldata-ready proof to disk.
type Driver struct {
	cfg *ArtifactConfig
	op  *operator.Operator
}

// NewDriver constructs a Driver over an operator, in any phase, and the
// artifact config pointing at compiled circuits.
func NewDriver(cfg *ArtifactConfig, op *operator.Operator) *Driver {
	return &Driver{cfg: cfg, op: op}
}

// RunDeactivateBatches drives processDeactivateMessages to completion,
// proving and persisting each batch under outDir.
func (d *Driver) RunDeactivateBatches(inputSize, subStateTreeLength int, outDir string) error {
	ccs, pk, err := LoadProvingArtifacts(d.cfg, "ProcessDeactivateCircuit")
	if err != nil {
		return err
	}

	for i := 0; d.op.ProcessedDeactivateCount() < d.op.NumDeactivateMessages(); i++ {
		bundle, err := d.op.ProcessDeactivateMessages(inputSize, subStateTreeLength)
		if err != nil {
			return fmt.Errorf("prover: process deactivate batch %d: %w", i, err)
		}
		assignment, err := deactivateAssignment(bundle)
		if err != nil {
			return err
		}
		out := filepath.Join(outDir, fmt.Sprintf("deactivate-%d.json", i))
		if err := d.proveAndPersist(ccs, pk, assignment, out); err != nil {
			return err
		}
	}
	return nil
}

// ProcessMessageBatch runs one processMessages call with the given salt,
// proves it, and persists the proof at outDir/messages-<seq>.json.
func (d *Driver) ProcessMessageBatch(newStateSalt *big.Int, seq int, outDir string) error {
	ccs, pk, err := LoadProvingArtifacts(d.cfg, "ProcessMessagesCircuit")
	if err != nil {
		return err
	}
	bundle, err := d.op.ProcessMessages(newStateSalt)
	if err != nil {
		return fmt.Errorf("prover: process message batch %d: %w", seq, err)
	}
	assignment, err := messagesAssignment(bundle)
	if err != nil {
		return err
	}
	out := filepath.Join(outDir, fmt.Sprintf("messages-%d.json", seq))
	return d.proveAndPersist(ccs, pk, assignment, out)
}

// ProcessTallyGroup runs one processTally call, proves it, and persists
// the proof at outDir/tally-<seq>.json.
func (d *Driver) ProcessTallyGroup(tallySalt *big.Int, seq int, outDir string) error {
	ccs, pk, err := LoadProvingArtifacts(d.cfg, "ProcessTallyCircuit")
	if err != nil {
		return err
	}
	bundle, err := d.op.ProcessTally(tallySalt)
	if err != nil {
		return fmt.Errorf("prover: process tally group %d: %w", seq, err)
	}
	assignment := tallyAssignment(bundle)
	out := filepath.Join(outDir, fmt.Sprintf("tally-%d.json", seq))
	return d.proveAndPersist(ccs, pk, assignment, out)
}

func (d *Driver) proveAndPersist(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, assignment frontend.Circuit, outPath string) error {
	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("prover: build witness: %w", err)
	}

	log.Info().Str("out", outPath).Msg("generating proof")
	proof, err := groth16.Prove(ccs, pk, fullWitness, backend.WithProverHashToFieldFunction(sha256.New()))
	if err != nil {
		return &ErrProverFailed{Err: err}
	}

	marshaler, ok := proof.(interface{ MarshalSolidity() []byte })
	if !ok {
		return &ErrProverFailed{Err: fmt.Errorf("proof does not implement MarshalSolidity")}
	}
	proofData := types.CreateProofData(marshaler.MarshalSolidity())

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("prover: output dir: %w", err)
	}
	blob, err := json.MarshalIndent(proofData, "", "  ")
	if err != nil {
		return fmt.Errorf("prover: marshal proof: %w", err)
	}
	if err := os.WriteFile(outPath, blob, 0644); err != nil {
		return fmt.Errorf("prover: write proof: %w", err)
	}
	log.Info().Str("out", outPath).Msg("proof persisted")
	return nil
}

func deactivateAssignment(b *witness.DeactivateBatch) (*circuits.ProcessDeactivateCircuit, error) {
	opHash, err := witness.HashPoint(b.OperatorPk)
	if err != nil {
		return nil, fmt.Errorf("prover: operator pk hash: %w", err)
	}
	c := &circuits.ProcessDeactivateCircuit{
		InputHash:               b.InputHash,
		NewDeactivateRoot:       b.NewDeactivateRoot,
		OperatorPkHash:          opHash,
		BatchStartHash:          b.BatchStartHash,
		BatchEndHash:            b.BatchEndHash,
		CurrentDeactivateCommit: b.CurrentDeactivateCommit,
		NewDeactivateCommit:     b.NewDeactivateCommit,
		SubStateRoot:            b.SubStateRoot,
	}
	for i := range c.Slots {
		slot := &c.Slots[i]
		slot.StateIdx = 0
		slot.C1X, slot.C1Y, slot.C2X, slot.C2Y = 0, 0, 0, 0
		slot.Valid = 0
		slot.ActiveBefore = 0
		fillPath(slot.StatePath[:], nil)
		fillPath(slot.DeactPath[:], nil)

		if i >= len(b.Commands) {
			continue
		}
		cmd := b.Commands[i]
		slot.StateIdx = new(big.Int).SetUint64(cmd.StateIdx)
		if cmd.C1 != nil {
			slot.C1X, slot.C1Y = cmd.C1.X, cmd.C1.Y
		}
		if cmd.C2 != nil {
			slot.C2X, slot.C2Y = cmd.C2.X, cmd.C2.Y
		}
		slot.Valid = boolVar(cmd.Valid)
		if cmd.ActiveBefore != nil {
			slot.ActiveBefore = cmd.ActiveBefore
		}
		fillPath(slot.StatePath[:], cmd.StatePath)
		if i < len(b.DeactivatePath) {
			fillPath(slot.DeactPath[:], b.DeactivatePath[i])
		}
	}
	return c, nil
}

func messagesAssignment(b *witness.MessageBatch) (*circuits.ProcessMessagesCircuit, error) {
	opHash, err := witness.HashPoint(b.OperatorPk)
	if err != nil {
		return nil, fmt.Errorf("prover: operator pk hash: %w", err)
	}
	c := &circuits.ProcessMessagesCircuit{
		InputHash:            b.InputHash,
		PackedVals:           b.PackedVals,
		OperatorPkHash:       opHash,
		BatchStartHash:       b.BatchStartHash,
		BatchEndHash:         b.BatchEndHash,
		OldStateCommitment:   b.OldStateCommitment,
		NewStateCommitment:   b.NewStateCommitment,
		DeactivateCommitment: b.DeactivateCommitment,
	}
	for i := range c.Slots {
		slot := &c.Slots[i]
		for j := range slot.StateLeafBefore {
			slot.StateLeafBefore[j] = 0
		}
		slot.VoteOptionLeafBefore = 0
		slot.ActiveStateLeaf = 0
		slot.Valid = 0
		slot.StateIdx = 0
		fillPath(slot.StatePath[:], nil)
		fillPath(slot.VoteOptionPath[:], nil)
		fillPath(slot.ActiveStatePath[:], nil)

		if i >= len(b.Slots) {
			continue
		}
		s := b.Slots[i]
		for j, v := range s.StateLeafBefore {
			if v != nil {
				slot.StateLeafBefore[j] = v
			}
		}
		fillPath(slot.StatePath[:], s.StatePath)
		if s.VoteOptionLeafBefore != nil {
			slot.VoteOptionLeafBefore = s.VoteOptionLeafBefore
		}
		fillPath(slot.VoteOptionPath[:], s.VoteOptionPath)
		if s.ActiveStateLeaf != nil {
			slot.ActiveStateLeaf = s.ActiveStateLeaf
		}
		fillPath(slot.ActiveStatePath[:], s.ActiveStatePath)
		slot.Valid = boolVar(s.Valid)
		slot.StateIdx = new(big.Int).SetUint64(s.StateIdx)
	}
	return c, nil
}

func tallyAssignment(b *witness.TallyBatch) *circuits.ProcessTallyCircuit {
	c := &circuits.ProcessTallyCircuit{
		InputHash:              b.InputHash,
		StateRoot:              b.StateRoot,
		StateSalt:              b.StateSalt,
		PackedVals:             b.PackedVals,
		StateCommitment:        b.StateCommitment,
		CurrentTallyCommitment: b.CurrentTallyCommitment,
		NewTallyCommitment:     b.NewTallyCommitment,
	}
	for i := range c.Voters {
		for j := range c.Voters[i].Weights {
			c.Voters[i].Weights[j] = 0
		}
	}
	for i := 0; i < len(c.Voters) && i < len(b.VoterWeights); i++ {
		for j := 0; j < len(c.Voters[i].Weights) && j < len(b.VoterWeights[i]); j++ {
			if b.VoterWeights[i][j] != nil {
				c.Voters[i].Weights[j] = b.VoterWeights[i][j]
			}
		}
	}
	return c
}

func fillPath(dst [][4]frontend.Variable, src witness.MerklePath) {
	for i := range dst {
		for j := 0; j < 4; j++ {
			dst[i][j] = 0
		}
	}
	for i := 0; i < len(dst) && i < len(src); i++ {
		for j := 0; j < 4; j++ {
			if src[i][j] != nil {
				dst[i][j] = src[i][j]
			}
		}
	}
}

func boolVar(b bool) frontend.Variable {
	if b {
		return 1
	}
	return 0
}
