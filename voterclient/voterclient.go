// Package voterclient assembles the vote, deactivate, and add-new-key
// payloads a voter submits to the operator. Every voter-client instance is
// independent; it shares only the operator's public key and the protocol
// parameters with every other instance.
package voterclient

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/kysee/amaci-core/addnewkey"
	"github.com/kysee/amaci-core/command"
	"github.com/kysee/amaci-core/eddsa"
	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/witness"
)

// Selection is one (option index, new vote weight) pair in a vote plan.
type Selection struct {
	OptionIdx uint64
	Weight    *big.Int
}

// Message is one ciphertext emitted by the client, ready to be pushed to
// the operator's message queue via pushMessage/pushDeactivateMessage.
type Message struct {
	Ciphertext  command.Ciphertext
	EphemeralPk *field.Point
}

// Client builds payloads on behalf of a single voter key.
type Client struct {
	Key        *eddsa.KeyPair
	StateIdx   uint64
	OperatorPk *field.Point
}

// New constructs a voter client bound to key, stateIdx, and the
// operator's public key.
func New(key *eddsa.KeyPair, stateIdx uint64, operatorPk *field.Point) *Client {
	return &Client{Key: key, StateIdx: stateIdx, OperatorPk: operatorPk}
}

// BuildVotePayload builds the ciphertexts for one round of vote-option
// selections. Duplicate option indices are rejected; zero-weight
// selections are dropped; the remaining selections are sorted ascending
// by option index and assigned nonces 1..k in that order. Messages are
// generated and returned in reverse of that order: the
// last-produced message (nonce 1, the first command the operator will
// apply) carries the (0,0) "no key rotation" sentinel in place of the
// voter's current public key.
func (c *Client) BuildVotePayload(selections []Selection) ([]Message, error) {
	plan, err := normalizePlan(selections)
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return nil, nil
	}
	return c.buildPlan(plan)
}

// BuildDeactivatePayload is BuildVotePayload specialized to the
// single-selection plan [[0, 0]] with nonce 1, marking the voter's
// current key for deactivation.
func (c *Client) BuildDeactivatePayload() ([]Message, error) {
	plan := []Selection{{OptionIdx: 0, Weight: big.NewInt(0)}}
	return c.buildPlan(plan)
}

// BuildAddNewKeyPayload delegates to addnewkey.BuildWitness:
// it locates the voter's deactivate leaf via the shared-key hash, re-
// randomizes its ciphertext, and computes the nullifier and input hash the
// prover needs to rebind a fresh key to the inherited balance.
func (c *Client) BuildAddNewKeyPayload(oldKey *eddsa.KeyPair, deactivateLeaves []addnewkey.Leaf) (*witness.AddNewKey, error) {
	return addnewkey.BuildWitness(oldKey, c.OperatorPk, deactivateLeaves)
}

// normalizePlan rejects duplicate option indices, drops zero-weight
// selections, and sorts the remainder ascending by option index.
func normalizePlan(selections []Selection) ([]Selection, error) {
	seen := make(map[uint64]bool, len(selections))
	plan := make([]Selection, 0, len(selections))
	for _, s := range selections {
		if seen[s.OptionIdx] {
			return nil, fmt.Errorf("voterclient: duplicate option index %d", s.OptionIdx)
		}
		seen[s.OptionIdx] = true
		if s.Weight == nil || s.Weight.Sign() == 0 {
			continue
		}
		plan = append(plan, s)
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].OptionIdx < plan[j].OptionIdx })
	return plan, nil
}

// buildPlan generates one ciphertext per plan entry, in reverse of plan
// order, each under a fresh ephemeral keypair.
func (c *Client) buildPlan(plan []Selection) ([]Message, error) {
	k := len(plan)
	out := make([]Message, k)

	for m := 0; m < k; m++ {
		j := k - 1 - m // plan index this produced-order position covers
		nonce := uint64(j + 1)

		newPk := c.Key.Public()
		if j == 0 {
			newPk = &field.Point{X: big.NewInt(0), Y: big.NewInt(0)}
		}

		ephemeral, err := eddsa.NewRandom()
		if err != nil {
			return nil, fmt.Errorf("voterclient: ephemeral keypair: %w", err)
		}

		packed, err := command.Pack(command.Packed{
			Nonce:    nonce,
			StateIdx: c.StateIdx,
			VoIdx:    plan[j].OptionIdx,
			NewVotes: plan[j].Weight,
		})
		if err != nil {
			return nil, err
		}

		msgHash, err := command.MsgHash(packed, newPk.X, newPk.Y)
		if err != nil {
			return nil, err
		}
		sig, err := c.Key.Sign(msgHash)
		if err != nil {
			return nil, err
		}

		plaintext := command.Plaintext{
			Packed: packed, NewPkX: newPk.X, NewPkY: newPk.Y,
			R8X: sig.R8.X, R8Y: sig.R8.Y, S: sig.S,
		}
		sharedKey := ephemeral.ECDHSharedKey(c.OperatorPk)
		ct, err := command.Encrypt(plaintext, sharedKey, 0)
		if err != nil {
			return nil, err
		}

		out[m] = Message{Ciphertext: ct, EphemeralPk: ephemeral.Public()}
	}

	return out, nil
}
