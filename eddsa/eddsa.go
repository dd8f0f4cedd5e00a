// Package eddsa implements AMACI keypairs and EdDSA-Poseidon signatures
// on BabyJubJub. Keys may be drawn at random, imported from a raw secret,
// or derived from a BIP-39 mnemonic through BIP-32 HD derivation.
package eddsa

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	bip32 "github.com/FactomProject/go-bip32"
	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/poseidon"
	"github.com/tyler-smith/go-bip39"
)

// DefaultDerivationPath is the Cosmos-style mnemonic-derivation path used
// when no explicit path is configured.
const DefaultDerivationPath = "m/44'/118'/0'/0/0"

var (
	ErrInvalidSecret    = errors.New("eddsa: invalid secret")
	ErrInvalidSignature = errors.New("eddsa: invalid signature")
	ErrOffCurve         = errors.New("eddsa: point off curve or off subgroup")
	ErrOutOfRange       = errors.New("eddsa: scalar out of range")
)

// KeyPair is (sk, pk, ŝk): the raw secret (kept only for signing), the
// derived curve-safe scalar, and the resulting public point.
type KeyPair struct {
	sk     *big.Int // raw secret, used only to drive SignPoseidon
	scalar *big.Int // ŝk = deriveSecretScalar(sk), always in [0, ℓ)
	pk     *field.Point
}

// Public returns the public key point.
func (k *KeyPair) Public() *field.Point { return k.pk }

// Scalar returns the curve-safe reduced secret scalar ŝk.
func (k *KeyPair) Scalar() *big.Int { return new(big.Int).Set(k.scalar) }

func fromBabyjubPriv(raw [32]byte) (*KeyPair, error) {
	var bsk babyjub.PrivateKey
	copy(bsk[:], raw[:])

	scalar := field.ModOrder(bsk.Scalar().BigInt())
	if !field.InRange(scalar) {
		return nil, ErrOutOfRange
	}
	pub := bsk.Public()
	return &KeyPair{
		sk:     new(big.Int).SetBytes(raw[:]),
		scalar: scalar,
		pk:     &field.Point{X: new(big.Int).Set(pub.X), Y: new(big.Int).Set(pub.Y)},
	}, nil
}

// NewRandom draws sk uniformly at random and derives the keypair.
func NewRandom() (*KeyPair, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, fmt.Errorf("eddsa: random secret: %w", err)
	}
	return fromBabyjubPriv(raw)
}

// FromSecretHex accepts sk as a big-endian hex string (optionally prefixed
// "0x") and recomputes ŝk and pk.
func FromSecretHex(hexStr string) (*KeyPair, error) {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return FromSecretBytes(b)
}

// FromSecretField accepts sk as a field element.
func FromSecretField(sk *big.Int) (*KeyPair, error) {
	return FromSecretBytes(sk.Bytes())
}

// FromSecretBytes accepts a raw secret of up to 32 bytes, big-endian,
// left-padded with zeros.
func FromSecretBytes(b []byte) (*KeyPair, error) {
	if len(b) > 32 {
		return nil, fmt.Errorf("%w: secret longer than 32 bytes", ErrInvalidSecret)
	}
	var raw [32]byte
	copy(raw[32-len(b):], b)
	return fromBabyjubPriv(raw)
}

// FromMnemonic derives a keypair from a BIP-39 mnemonic through BIP-32 HD
// derivation at path (default DefaultDerivationPath): the seed's 32-byte
// private key is interpreted big-endian and reduced mod p to obtain sk.
func FromMnemonic(mnemonic, passphrase, path string) (*KeyPair, error) {
	if path == "" {
		path = DefaultDerivationPath
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("%w: invalid BIP-39 mnemonic", ErrInvalidSecret)
	}
	seed := bip39.NewSeed(mnemonic, passphrase)

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("eddsa: bip32 master key: %w", err)
	}

	segments, err := parseDerivationPath(path)
	if err != nil {
		return nil, err
	}

	key := master
	for _, seg := range segments {
		key, err = key.NewChildKey(seg)
		if err != nil {
			return nil, fmt.Errorf("eddsa: bip32 derivation at segment %d: %w", seg, err)
		}
	}

	sk := field.Mod(new(big.Int).SetBytes(key.Key))
	return FromSecretField(sk)
}

// hardenedOffset is BIP-32's 2^31 offset marking a hardened child index.
const hardenedOffset = uint32(0x80000000)

// parseDerivationPath parses "m/44'/118'/0'/0/0" into raw BIP-32 child
// indices, applying the hardened-key offset for entries suffixed '.
func parseDerivationPath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("eddsa: derivation path must start with \"m\": %q", path)
	}
	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		p = strings.TrimSuffix(strings.TrimSuffix(p, "'"), "h")
		idx, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("eddsa: invalid derivation path segment %q: %w", p, err)
		}
		if hardened {
			idx += uint64(hardenedOffset)
		}
		out = append(out, uint32(idx))
	}
	return out, nil
}

// Signature is an EdDSA-Poseidon signature (R8, S).
type Signature struct {
	R8 *field.Point
	S  *big.Int
}

// Sign signs msg (a single field element, e.g. a Poseidon hash of a
// command) with EdDSA-Poseidon.
func (k *KeyPair) Sign(msg *big.Int) (*Signature, error) {
	var raw [32]byte
	k.sk.FillBytes(raw[:])
	var bsk babyjub.PrivateKey
	copy(bsk[:], raw[:])

	sig := bsk.SignPoseidon(msg)
	return &Signature{
		R8: &field.Point{X: new(big.Int).Set(sig.R8.X), Y: new(big.Int).Set(sig.R8.Y)},
		S:  new(big.Int).Set(sig.S),
	}, nil
}

// Verify checks sig over msg against pk. It requires R8 to be in the
// prime-order subgroup and S in [0, ℓ).
func Verify(pk *field.Point, msg *big.Int, sig *Signature) error {
	if !field.InSubgroup(sig.R8) {
		return fmt.Errorf("%w: R8 off subgroup", ErrOffCurve)
	}
	if !field.InRange(sig.S) {
		return fmt.Errorf("%w: S out of range", ErrOutOfRange)
	}

	bpk := babyjub.PublicKey{X: new(big.Int).Set(pk.X), Y: new(big.Int).Set(pk.Y)}
	bsig := &babyjub.Signature{
		R8: &babyjub.Point{X: new(big.Int).Set(sig.R8.X), Y: new(big.Int).Set(sig.R8.Y)},
		S:  new(big.Int).Set(sig.S),
	}
	if !bpk.VerifyPoseidon(msg, bsig) {
		return ErrInvalidSignature
	}
	return nil
}

// ECDHSharedKey returns ŝk · otherPk as a curve point.
func (k *KeyPair) ECDHSharedKey(otherPk *field.Point) *field.Point {
	return field.ScalarMul(k.scalar, otherPk)
}

// ECDHSharedKeyHash is Poseidon([x,y]) of the ECDH shared point, used
// wherever a scalar "shared key hash" is needed.
func ECDHSharedKeyHash(shared *field.Point) (*big.Int, error) {
	return poseidon.Hash2([2]*big.Int{shared.X, shared.Y})
}

// PackPubKey packs pk into a single field element, bit-identical to the
// zk-kit EdDSA-Poseidon encoding: the sign bit of x is folded into the MSB
// of y.
func PackPubKey(pk *field.Point) *big.Int {
	buf := field.Compress(pk)
	return new(big.Int).SetBytes(reverseBytes(buf[:]))
}

// UnpackPubKey is the inverse of PackPubKey.
func UnpackPubKey(n *big.Int) (*field.Point, error) {
	b := n.Bytes()
	var buf [32]byte
	copy(buf[32-len(b):], b)
	le := reverseBytes(buf[:])
	var arr [32]byte
	copy(arr[:], le)
	return field.Decompress(arr)
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
