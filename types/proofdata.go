package types

import (
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ProofData is the wire encoding of one Groth16 proof over BN254, split
// into the field chunks a Solidity verifier contract expects: the
// (A, B, C) proof points as 8 field elements, plus the Pedersen
// commitment and its proof-of-knowledge pair gnark's commitment scheme
// appends when the circuit carries private inputs the verifier never
// opens.
type ProofData struct {
	Proof         []HexBytes `json:"proof"`
	Commitments   []HexBytes `json:"commitments"`
	CommitmentPok []HexBytes `json:"commitmentPok"`
}

// CreateProofData slices a gnark groth16.Proof's MarshalSolidity byte
// encoding into the field-element chunks ProofData holds.
func CreateProofData(proofSolidity []byte) *ProofData {
	feLen := bn254fr.Bytes

	proof := make([]HexBytes, 8)
	for i := range proof {
		proof[i] = proofSolidity[i*feLen : (i+1)*feLen]
	}

	start := 8*feLen + 4 // skip the 4-byte commitment-count prefix
	commitments := make([]HexBytes, 4)
	for i := range commitments {
		s := start + i*feLen
		commitments[i] = proofSolidity[s : s+feLen]
	}

	return &ProofData{
		Proof:         proof,
		Commitments:   commitments[0:2],
		CommitmentPok: commitments[2:4],
	}
}
