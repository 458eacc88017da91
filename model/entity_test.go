package model

import (
	"testing"

	"github.com/lightchain-sdp/node/crypto"
	"github.com/stretchr/testify/require"
)

func TestIdentifierValueEquality(t *testing.T) {
	a := Hash([]byte("alpha"))
	b := Hash([]byte("alpha"))
	c := Hash([]byte("beta"))

	require.Equal(t, a, b, "identical inputs must hash to an equal identifier by value")
	require.NotEqual(t, a, c)

	// Value equality must hold even across independently constructed slices
	// that happen to contain the same bytes — the defect this type exists
	// to rule out structurally.
	var m = map[Identifier]bool{a: true}
	require.True(t, m[b], "identifier must be usable as a value-equal map key")
}

func TestIdentifierHexRoundtrip(t *testing.T) {
	id := Hash([]byte("roundtrip"))
	decoded, err := IdentifierFromHex(id.String())
	require.NoError(t, err)
	require.Equal(t, id, decoded)

	_, err = IdentifierFromHex("not-hex")
	require.Error(t, err)

	_, err = IdentifierFromHex("aa")
	require.Error(t, err)
}

func TestIdentifierLess(t *testing.T) {
	a := Identifier{0x01}
	b := Identifier{0x02}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.False(t, a.Less(a))
}

func TestTransactionIDExcludesSignature(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	tx := &Transaction{
		Sender:   Hash([]byte("sender")),
		Receiver: Hash([]byte("receiver")),
		Amount:   100,
	}
	id1 := tx.ID()
	tx.Signature = Sign(priv, tx.CanonicalEncode())
	id2 := tx.ID()

	require.Equal(t, id1, id2, "signing must not change the transaction's id")
	require.Equal(t, KindTransaction, tx.Kind())
}

func TestValidatedTransactionSharesUnderlyingID(t *testing.T) {
	tx := Transaction{
		Sender:   Hash([]byte("s")),
		Receiver: Hash([]byte("r")),
		Amount:   1,
	}
	vt := &ValidatedTransaction{Transaction: tx, Certificates: []Signature{{1, 2, 3}}}

	require.Equal(t, tx.ID(), vt.ID())
	require.Equal(t, KindValidatedTransaction, vt.Kind())
}

func TestBlockIDMatchesProposalHeader(t *testing.T) {
	header := BlockHeader{
		Height:            1,
		PreviousBlockID:   ZeroIdentifier,
		ProposerID:        Hash([]byte("proposer")),
		PayloadMerkleRoot: Hash([]byte("root")),
	}
	proposal := BlockProposal{Header: header}
	block := &Block{Proposal: proposal, Certificates: []Signature{{9}}}

	require.Equal(t, header.ID(), proposal.ID())
	require.Equal(t, proposal.ID(), block.ID())
	require.Equal(t, uint64(1), block.Height())
	require.Equal(t, KindBlock, block.Kind())
}

func TestOpaqueEntityRejectedKindPreserved(t *testing.T) {
	o := &OpaqueEntity{DeclaredKind: "demo-hello", Raw: []byte("payload")}
	require.Equal(t, EntityKind("demo-hello"), o.Kind())
	require.Equal(t, Hash([]byte("payload")), o.ID())
}

func TestSignVerifyRoundtrip(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	data := []byte("authenticate me")
	sig := Sign(priv, data)
	require.NoError(t, Verify(pub, data, sig))
	require.Error(t, Verify(pub, []byte("tampered"), sig))
}
