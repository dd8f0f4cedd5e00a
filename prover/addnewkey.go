package prover

import (
	"context"
	"fmt"

	"github.com/kysee/amaci-core/addnewkey"
	"github.com/kysee/amaci-core/circuits"
	"github.com/kysee/amaci-core/eddsa"
	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/witness"
)

// BuildAddNewKeyProof fetches every deactivate-tree leaf from idx, builds
// the rebinding witness for oldKey, and proves it against the compiled
// AddNewKeyCircuit, persisting the result at outPath. The indexer fetch
// and the Groth16 prove are the only blocking calls; the witness build in
// between is pure.
func BuildAddNewKeyProof(ctx context.Context, cfg *ArtifactConfig, idx Indexer, contractAddress string, oldKey *eddsa.KeyPair, operatorPk *field.Point, outPath string) (*witness.AddNewKey, error) {
	leaves, err := idx.FetchAllDeactivateLogs(ctx, contractAddress)
	if err != nil {
		return nil, fmt.Errorf("prover: fetch deactivate logs: %w", err)
	}

	w, err := addnewkey.BuildWitness(oldKey, operatorPk, leaves)
	if err != nil {
		return nil, err
	}

	ccs, pk, err := LoadProvingArtifacts(cfg, "AddNewKeyCircuit")
	if err != nil {
		return nil, err
	}

	assignment := addNewKeyAssignment(w)
	if err := (&Driver{cfg: cfg}).proveAndPersist(ccs, pk, assignment, outPath); err != nil {
		return nil, err
	}
	return w, nil
}

func addNewKeyAssignment(w *witness.AddNewKey) *circuits.AddNewKeyCircuit {
	c := &circuits.AddNewKeyCircuit{
		InputHash:      w.InputHash,
		DeactivateRoot: w.DeactivateRoot,
		Nullifier:      w.Nullifier,
		LeafHash:       w.LeafHash,
		RPrime:         w.RPrime,
		OldSkScalar:    w.OldSkScalar,
	}
	c.OperatorPkX, c.OperatorPkY = 0, 0
	c.D1X, c.D1Y, c.D2X, c.D2Y = 0, 0, 0, 0
	c.C1X, c.C1Y, c.C2X, c.C2Y = 0, 0, 0, 0
	if w.OperatorPk != nil {
		c.OperatorPkX, c.OperatorPkY = w.OperatorPk.X, w.OperatorPk.Y
	}
	if w.D1 != nil {
		c.D1X, c.D1Y = w.D1.X, w.D1.Y
	}
	if w.D2 != nil {
		c.D2X, c.D2Y = w.D2.X, w.D2.Y
	}
	if w.C1 != nil {
		c.C1X, c.C1Y = w.C1.X, w.C1.Y
	}
	if w.C2 != nil {
		c.C2X, c.C2Y = w.C2.X, w.C2.Y
	}
	fillPath(c.Path[:], w.Path)
	c.LeafIndex = int(w.LeafIndex)
	return c
}
