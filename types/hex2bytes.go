package types

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HexToBytes decodes a "0x"-optional hex string, as used for packed point
// coordinates and ciphertext field elements throughout the on-chain wire
// format.
func HexToBytes(hexStr string) ([]byte, error) {
	if !strings.HasPrefix(hexStr, "0x") {
		hexStr = "0x" + hexStr
	}
	return hexutil.Decode(hexStr)
}

// HexBytes is a byte slice that marshals to JSON as a "0x"-prefixed hex
// string (via hexutil, matching go-ethereum's own wire convention) and
// unmarshals from either hex or base64, since witness bundles fed to the
// external prover may arrive either way depending on the transport.
type HexBytes []byte

func (b HexBytes) String() string {
	return hexutil.Encode(b)
}

func (hb HexBytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hexutil.Encode(hb) + `"`), nil
}

func (hb *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("types: invalid hex string %s", data)
	}

	val := string(data[1 : len(data)-1])
	if strings.HasPrefix(val, "0x") {
		bz, err := hexutil.Decode(val)
		if err != nil {
			return err
		}
		*hb = bz
		return nil
	}

	bz, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return err
	}
	*hb = bz
	return nil
}
