package types

import (
	"testing"

	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func TestCreateProofDataSlicesIntoExpectedChunks(t *testing.T) {
	feLen := bn254fr.Bytes
	total := 8*feLen + 4 + 4*feLen
	raw := make([]byte, total)
	for i := range raw {
		raw[i] = byte(i % 256)
	}

	pd := CreateProofData(raw)
	require.Len(t, pd.Proof, 8)
	require.Len(t, pd.Commitments, 2)
	require.Len(t, pd.CommitmentPok, 2)

	for i, chunk := range pd.Proof {
		require.Equal(t, HexBytes(raw[i*feLen:(i+1)*feLen]), chunk)
	}

	commitStart := 8*feLen + 4
	require.Equal(t, HexBytes(raw[commitStart:commitStart+feLen]), pd.Commitments[0])
	require.Equal(t, HexBytes(raw[commitStart+feLen:commitStart+2*feLen]), pd.Commitments[1])
	require.Equal(t, HexBytes(raw[commitStart+2*feLen:commitStart+3*feLen]), pd.CommitmentPok[0])
	require.Equal(t, HexBytes(raw[commitStart+3*feLen:commitStart+4*feLen]), pd.CommitmentPok[1])
}
