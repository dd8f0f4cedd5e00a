package operator

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/kysee/amaci-core/command"
	"github.com/kysee/amaci-core/elgamal"
	"github.com/kysee/amaci-core/field"
	"github.com/kysee/amaci-core/merkletree"
	"github.com/kysee/amaci-core/poseidon"
)

// InitStateTree creates the i-th state leaf during Filling: the operator
// encrypts parity=false (active) under its own public key with a fresh
// scalar.
func (op *Operator) InitStateTree(i uint64, pk *field.Point, balance *big.Int) error {
	if err := op.requirePhase(Filling); err != nil {
		return err
	}
	if int(i) >= op.stateTree.Capacity() {
		return fmt.Errorf("operator: signup index %d exceeds state tree capacity %d", i, op.stateTree.Capacity())
	}

	r, err := randomScalar()
	if err != nil {
		return err
	}
	ct := elgamal.Encode(false, op.sk.Public(), r)

	voTree, err := op.voteOptionTreeFor(i)
	if err != nil {
		return err
	}

	leaf := StateLeaf{
		PkX: new(big.Int).Set(pk.X), PkY: new(big.Int).Set(pk.Y),
		Balance: new(big.Int).Set(balance), VoteOptionRoot: voTree.Root(),
		Nonce: 0, C1: ct.C1, C2: ct.C2, XIncrement: big.NewInt(0),
	}
	if err := op.setStateLeaf(i, leaf); err != nil {
		return err
	}
	if i+1 > op.numSignUps {
		op.numSignUps = i + 1
	}
	log.Debug().Uint64("idx", i).Msg("signed up voter")
	return nil
}

func (op *Operator) voteOptionTreeFor(i uint64) (*merkletree.Tree, error) {
	t, ok := op.voteOptionTrees[i]
	if !ok {
		var err error
		t, err = merkletree.New(int(op.cfg.VoteOptionTreeDepth), big.NewInt(0))
		if err != nil {
			return nil, err
		}
		op.voteOptionTrees[i] = t
	}
	return t, nil
}

func (op *Operator) setStateLeaf(i uint64, leaf StateLeaf) error {
	h, err := leaf.Hash()
	if err != nil {
		return err
	}
	if err := op.stateTree.UpdateLeaf(int(i), h); err != nil {
		return err
	}
	op.stateLeaves[i] = leaf
	return nil
}

// PushMessage appends a vote/deactivate-capable ciphertext to the vote
// queue, chaining its hash onto the prior message and eagerly caching the
// decrypted command (or nil, if undecryptable).
func (op *Operator) PushMessage(ct command.Ciphertext, encPk *field.Point) error {
	if err := op.requirePhase(Filling); err != nil {
		return err
	}
	return op.pushTo(&op.voteQueue, ct, encPk)
}

// PushDeactivateMessage appends to the deactivate queue, with the same
// chaining and eager-decryption behavior as PushMessage.
func (op *Operator) PushDeactivateMessage(ct command.Ciphertext, encPk *field.Point) error {
	if err := op.requirePhase(Filling); err != nil {
		return err
	}
	return op.pushTo(&op.deactivateQueue, ct, encPk)
}

func (op *Operator) pushTo(queue *[]queuedMessage, ct command.Ciphertext, encPk *field.Point) error {
	var prevHash *big.Int
	if len(*queue) == 0 {
		prevHash = big.NewInt(0)
	} else {
		prevHash = (*queue)[len(*queue)-1].hash
	}

	hash, err := chainHash(ct, encPk, prevHash)
	if err != nil {
		return err
	}

	sharedKey := op.sk.ECDHSharedKey(encPk)
	cmd, err := command.Decrypt(ct, sharedKey, 0)
	if err != nil {
		return err
	}

	*queue = append(*queue, queuedMessage{
		ciphertext: ct, encPk: encPk, prevHash: prevHash, hash: hash, cmd: cmd,
	})
	return nil
}

// chainHash computes hash2(hash5(ct[0..4]), hash5([ct[5],ct[6],encPk.x,encPk.y,prevHash])),
// the message-log chain hash.
func chainHash(ct command.Ciphertext, encPk *field.Point, prevHash *big.Int) (*big.Int, error) {
	var lo [5]*big.Int
	copy(lo[:], ct[0:5])
	hLo, err := poseidon.Hash5(lo)
	if err != nil {
		return nil, err
	}
	hHi, err := poseidon.Hash5([5]*big.Int{ct[5], ct[6], encPk.X, encPk.Y, prevHash})
	if err != nil {
		return nil, err
	}
	return poseidon.Hash2([2]*big.Int{hLo, hHi})
}

// EndVotePeriod closes Filling and transitions to Processing.
func (op *Operator) EndVotePeriod() error {
	if err := op.requirePhase(Filling); err != nil {
		return err
	}
	op.msgEndIdx = uint64(len(op.voteQueue))
	op.batchEnd = op.msgEndIdx
	op.stateSalt = big.NewInt(0)
	commit, err := poseidon.Hash2([2]*big.Int{op.stateTree.Root(), op.stateSalt})
	if err != nil {
		return err
	}
	op.stateCommitment = commit
	op.phase = Processing
	log.Info().Uint64("numMessages", op.msgEndIdx).Msg("vote period ended")
	return nil
}

func randomScalar() (*big.Int, error) {
	n, err := rand.Int(rand.Reader, field.SubgroupOrder())
	if err != nil {
		return nil, fmt.Errorf("operator: random scalar: %w", err)
	}
	return n, nil
}
