package types

import "math/big"

// Protocol-wide constants. These are immutable globals
// initialized once; every package that needs them imports this one rather
// than redefining the literals.
var (
	// NullifierDomainTag tags the Poseidon hash that derives an add-new-key
	// nullifier, preventing collision with Poseidon hashes computed for
	// unrelated purposes.
	NullifierDomainTag = mustBig("1444992409218394441042")

	// StaticDeactivateSalt seeds the deterministic re-encryption scalar
	// derived for every deactivate command, valid or not, so that two
	// independent runs over the same inputs produce identical ciphertexts
	// and hence identical commitments.
	StaticDeactivateSalt = big.NewInt(20040)

	// TallyWeightConstant lets the tally tree encode both the linear and
	// quadratic sum of a vote option's weights in a single field:
	// tally[o] += v*(v + TallyWeightConstant).
	TallyWeightConstant = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
)

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("types: bad constant literal " + s)
	}
	return n
}
