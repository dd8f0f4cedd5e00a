// Package command implements the packed-command codec: the
// 256-bit bit-packing of a vote/deactivate/add-new-key command's numeric
// fields into one field element, and the Poseidon-cipher encrypt/decrypt
// of the full 6-field command plaintext that travels on-chain as a
// ciphertext.
package command

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/kysee/amaci-core/poseidon"
)

// Bit widths and offsets of the packed command's sub-fields.
const (
	nonceBits     = 32
	stateIdxBits  = 32
	voIdxBits     = 32
	newVotesBits  = 96
	saltBits      = 56
	nonceShift    = 0
	stateIdxShift = nonceShift + nonceBits
	voIdxShift    = stateIdxShift + stateIdxBits
	newVotesShift = voIdxShift + voIdxBits
	saltShift     = newVotesShift + newVotesBits
)

func mask(bits uint) *uint256.Int {
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, bits)
	return new(uint256.Int).Sub(shifted, one)
}

// Packed holds the five numeric sub-fields of a command before they are
// folded into a single field element.
type Packed struct {
	Nonce    uint64
	StateIdx uint64
	VoIdx    uint64
	NewVotes *big.Int
	Salt     *big.Int // nil draws 56 fresh random bits
}

// Pack folds the sub-fields into one field element:
// packed = nonce | (stateIdx << 32) | (voIdx << 64) | (newVotes << 96) | (salt << 192).
func Pack(p Packed) (*big.Int, error) {
	salt := p.Salt
	if salt == nil {
		var err error
		salt, err = randomSalt()
		if err != nil {
			return nil, err
		}
	}

	out := new(uint256.Int)
	out.Or(out, new(uint256.Int).Lsh(uint256.NewInt(p.Nonce), nonceShift))
	out.Or(out, new(uint256.Int).Lsh(uint256.NewInt(p.StateIdx), stateIdxShift))
	out.Or(out, new(uint256.Int).Lsh(uint256.NewInt(p.VoIdx), voIdxShift))

	newVotes, overflow := uint256.FromBig(p.NewVotes)
	if overflow || newVotes.BitLen() > newVotesBits {
		return nil, fmt.Errorf("command: newVotes overflows its bit width")
	}
	out.Or(out, new(uint256.Int).Lsh(newVotes, newVotesShift))

	saltU, overflow := uint256.FromBig(salt)
	if overflow || saltU.BitLen() > saltBits {
		return nil, fmt.Errorf("command: salt overflows its bit width")
	}
	out.Or(out, new(uint256.Int).Lsh(saltU, saltShift))

	return out.ToBig(), nil
}

// Unpack recovers (nonce, stateIdx, voIdx, newVotes) from a packed field
// element. Salt is write-only from the voter's perspective and is not
// returned.
func Unpack(packed *big.Int) (nonce, stateIdx, voIdx uint64, newVotes *big.Int, err error) {
	u, overflow := uint256.FromBig(packed)
	if overflow {
		return 0, 0, 0, nil, fmt.Errorf("command: packed value overflows uint256")
	}

	nonce = new(uint256.Int).And(u, mask(nonceBits)).Uint64()
	stateIdx = new(uint256.Int).And(new(uint256.Int).Rsh(u, stateIdxShift), mask(stateIdxBits)).Uint64()
	voIdx = new(uint256.Int).And(new(uint256.Int).Rsh(u, voIdxShift), mask(voIdxBits)).Uint64()
	newVotesU := new(uint256.Int).And(new(uint256.Int).Rsh(u, newVotesShift), mask(newVotesBits))
	newVotes = newVotesU.ToBig()

	return nonce, stateIdx, voIdx, newVotes, nil
}

func randomSalt() (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), saltBits)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("command: random salt: %w", err)
	}
	return n, nil
}

// Plaintext is the 6-tuple [packed, newPk.x, newPk.y, R8.x, R8.y, S] a
// voter signs and the operator decrypts.
type Plaintext struct {
	Packed *big.Int
	NewPkX *big.Int
	NewPkY *big.Int
	R8X    *big.Int
	R8Y    *big.Int
	S      *big.Int
}

// MsgHash is Poseidon([packed, newPk.x, newPk.y]), the value the voter
// signs.
func MsgHash(packed, newPkX, newPkY *big.Int) (*big.Int, error) {
	return poseidon.HashN([]*big.Int{packed, newPkX, newPkY})
}

func (p Plaintext) fields() [6]*big.Int {
	return [6]*big.Int{p.Packed, p.NewPkX, p.NewPkY, p.R8X, p.R8Y, p.S}
}

func plaintextFrom(fields [6]*big.Int) Plaintext {
	return Plaintext{
		Packed: fields[0], NewPkX: fields[1], NewPkY: fields[2],
		R8X: fields[3], R8Y: fields[4], S: fields[5],
	}
}

// Ciphertext is the 7-field-element output of Encrypt: six masked
// plaintext elements plus one authentication tag.
type Ciphertext [7]*big.Int
