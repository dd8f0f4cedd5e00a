package command

import (
	"math/big"

	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/poseidon"
)

// sharedKeySeed derives the Poseidon-cipher keystream seed from the ECDH
// shared point and nonce. go-iden3-crypto does not expose the raw Poseidon
// permutation state needed for a textbook sponge construction, so this
// package builds its own hash-keystream cipher on top of the exported
// Hash function: a Poseidon hash chain seeded by the shared key and
// nonce, XOR-folded (mod p, field addition standing in for XOR) into the
// plaintext, with a chained tag authenticating every ciphertext element.
func sharedKeySeed(sharedKey *field.Point, nonce uint64) (*big.Int, error) {
	return poseidon.HashN([]*big.Int{sharedKey.X, sharedKey.Y, new(big.Int).SetUint64(nonce)})
}

func keystream(seed *big.Int, index int) (*big.Int, error) {
	return poseidon.Hash2([2]*big.Int{seed, big.NewInt(int64(index))})
}

// Encrypt encrypts plaintext under the ECDH shared key with the given
// nonce, returning seven field elements: six masked plaintext elements
// plus a tag chained over all of them.
func Encrypt(plaintext Plaintext, sharedKey *field.Point, nonce uint64) (Ciphertext, error) {
	seed, err := sharedKeySeed(sharedKey, nonce)
	if err != nil {
		return Ciphertext{}, err
	}

	fields := plaintext.fields()
	var ct Ciphertext
	chain := seed
	for i := 0; i < 6; i++ {
		ks, err := keystream(seed, i)
		if err != nil {
			return Ciphertext{}, err
		}
		ct[i] = field.AddMod(fields[i], ks)
		chain, err = poseidon.Hash2([2]*big.Int{chain, ct[i]})
		if err != nil {
			return Ciphertext{}, err
		}
	}
	ct[6] = chain
	return ct, nil
}

// Decrypt decrypts ct with the ECDH shared key recomputed from the
// operator's secret and the message's published ephemeral public key. It
// returns (nil, nil), no error, when the tag does not authenticate: an
// undecryptable ciphertext yields a null command that the surrounding
// pipeline treats as an invalid message without aborting the batch.
func Decrypt(ct Ciphertext, sharedKey *field.Point, nonce uint64) (*Plaintext, error) {
	seed, err := sharedKeySeed(sharedKey, nonce)
	if err != nil {
		return nil, err
	}

	var fields [6]*big.Int
	chain := seed
	for i := 0; i < 6; i++ {
		ks, err := keystream(seed, i)
		if err != nil {
			return nil, err
		}
		fields[i] = field.SubMod(ct[i], ks)
		chain, err = poseidon.Hash2([2]*big.Int{chain, ct[i]})
		if err != nil {
			return nil, err
		}
	}
	if chain.Cmp(ct[6]) != 0 {
		return nil, nil
	}

	p := plaintextFrom(fields)
	return &p, nil
}
