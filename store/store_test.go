package store

import (
	"sync"
	"testing"

	"github.com/lightchain-sdp/node/model"
	"github.com/stretchr/testify/require"
)

func sampleBlock(height uint64, prev model.Identifier, txs ...model.ValidatedTransaction) *model.Block {
	return &model.Block{
		Proposal: model.BlockProposal{
			Header: model.BlockHeader{
				Height:            height,
				PreviousBlockID:   prev,
				ProposerID:        model.Hash([]byte("proposer")),
				PayloadMerkleRoot: model.Hash([]byte("root")),
			},
			Payload: txs,
		},
		Certificates: []model.Signature{{1, 2, 3}},
	}
}

func sampleTx(seed string) model.ValidatedTransaction {
	tx := model.Transaction{
		Sender:   model.Hash([]byte(seed + "-sender")),
		Receiver: model.Hash([]byte(seed + "-receiver")),
		Amount:   42,
	}
	return model.ValidatedTransaction{Transaction: tx, Certificates: []model.Signature{{9}}}
}

func TestBlocksAddHasByIdAtHeightAll(t *testing.T) {
	blocks := NewBlocks(NewMemDB())
	tx1, tx2 := sampleTx("a"), sampleTx("b")
	b := sampleBlock(1, model.ZeroIdentifier, tx1, tx2)

	require.False(t, blocks.Has(b.ID()))

	inserted, err := blocks.Add(b)
	require.NoError(t, err)
	require.True(t, inserted)
	require.True(t, blocks.Has(b.ID()))

	// Duplicate add is a no-op.
	insertedAgain, err := blocks.Add(b)
	require.NoError(t, err)
	require.False(t, insertedAgain)

	got, err := blocks.ByID(b.ID())
	require.NoError(t, err)
	require.Equal(t, b.ID(), got.ID())
	require.Len(t, got.Proposal.Payload, 2)

	byHeight, err := blocks.AtHeight(1)
	require.NoError(t, err)
	require.Equal(t, b.ID(), byHeight.ID())

	all, err := blocks.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestBlocksRemove(t *testing.T) {
	blocks := NewBlocks(NewMemDB())
	b := sampleBlock(1, model.ZeroIdentifier)
	_, err := blocks.Add(b)
	require.NoError(t, err)

	require.NoError(t, blocks.Remove(b.ID()))
	require.False(t, blocks.Has(b.ID()))
	_, err = blocks.AtHeight(1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBlocksKeyedByValueNotIdentity(t *testing.T) {
	// Two independently-constructed Identifier values with identical bytes
	// must be treated as the same key — the defect this store structurally
	// rules out (a byte-for-byte-equal id built from a fresh slice used to
	// compare unequal under reference equality).
	blocks := NewBlocks(NewMemDB())
	b := sampleBlock(1, model.ZeroIdentifier)
	_, err := blocks.Add(b)
	require.NoError(t, err)

	var copiedID model.Identifier
	copy(copiedID[:], b.ID().Bytes())
	require.True(t, blocks.Has(copiedID))

	got, err := blocks.ByID(copiedID)
	require.NoError(t, err)
	require.Equal(t, b.ID(), got.ID())
}

func TestIdentifiersAddIsInsertIfAbsent(t *testing.T) {
	ids := NewIdentifiers(NewMemDB(), "seen/")
	id := model.Hash([]byte("x"))

	require.False(t, ids.Has(id))
	inserted, err := ids.Add(id)
	require.NoError(t, err)
	require.True(t, inserted)

	insertedAgain, err := ids.Add(id)
	require.NoError(t, err)
	require.False(t, insertedAgain)
	require.True(t, ids.Has(id))
}

func TestIdentifiersConcurrentAddExactlyOneWinner(t *testing.T) {
	ids := NewIdentifiers(NewMemDB(), "seen/")
	id := model.Hash([]byte("concurrent"))

	const n = 64
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted, err := ids.Add(id)
			require.NoError(t, err)
			results[i] = inserted
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		if r {
			winners++
		}
	}
	require.Equal(t, 1, winners, "exactly one concurrent Add must observe insertion")
}

func TestPendingTransactionsLifecycle(t *testing.T) {
	pending := NewPendingTransactions(NewMemDB())
	vt := sampleTx("p")

	require.False(t, pending.Has(vt.ID()))
	require.NoError(t, pending.Add(&vt))
	require.True(t, pending.Has(vt.ID()))

	got, err := pending.Get(vt.ID())
	require.NoError(t, err)
	require.Equal(t, vt.Amount, got.Amount)

	require.NoError(t, pending.Remove(vt.ID()))
	require.False(t, pending.Has(vt.ID()))

	_, err = pending.Get(vt.ID())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPendingTransactionsAll(t *testing.T) {
	pending := NewPendingTransactions(NewMemDB())
	a, b := sampleTx("one"), sampleTx("two")
	require.NoError(t, pending.Add(&a))
	require.NoError(t, pending.Add(&b))

	all, err := pending.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMemDBBatchAtomicity(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Set([]byte("keep"), []byte("v")))

	batch := db.NewBatch()
	batch.Set([]byte("a"), []byte("1"))
	batch.Delete([]byte("keep"))
	require.NoError(t, batch.Write())

	_, err := db.Get([]byte("a"))
	require.NoError(t, err)
	_, err = db.Get([]byte("keep"))
	require.ErrorIs(t, err, ErrNotFound)
}
