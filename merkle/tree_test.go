package merkle

import (
	"testing"

	"github.com/lightchain-sdp/node/model"
	"github.com/stretchr/testify/require"
)

func entity(seed string) model.Entity {
	return &model.OpaqueEntity{DeclaredKind: model.KindOpaque, Raw: []byte(seed)}
}

func TestPutGetVerifyRoundtrip(t *testing.T) {
	tree := New()
	e := entity("a")

	ae := tree.Put(e)
	require.True(t, tree.Verify(ae))

	got, ok := tree.Get(e)
	require.True(t, ok)
	require.Equal(t, ae.Proof.Root, got.Proof.Root)
	require.True(t, tree.Verify(got))
}

func TestGetByIDMatchesGet(t *testing.T) {
	tree := New()
	e := entity("by-id")
	ae := tree.Put(e)

	got, ok := tree.GetByID(e.ID())
	require.True(t, ok)
	require.Equal(t, ae.Proof.Root, got.Proof.Root)
	require.True(t, tree.Verify(got))

	_, ok = tree.GetByID(model.Hash([]byte("never-put")))
	require.False(t, ok)
}

func TestPutIsIdempotent(t *testing.T) {
	tree := New()
	e := entity("dup")

	tree.Put(e)
	rootAfterFirst := tree.Root()
	tree.Put(e)
	require.Equal(t, rootAfterFirst, tree.Root())
	require.Equal(t, 1, tree.Size())
}

func TestOddLeafCountDuplicatesLast(t *testing.T) {
	tree := New()
	for _, seed := range []string{"a", "b", "c"} {
		tree.Put(entity(seed))
	}
	require.Equal(t, 3, tree.Size())
	require.NotEqual(t, model.Identifier{}, tree.Root())
}

func TestStaleProofFailsVerifyAfterLaterInsert(t *testing.T) {
	tree := New()
	ae := tree.Put(entity("first"))
	require.True(t, tree.Verify(ae))

	tree.Put(entity("second"))

	// The old proof still recomputes to its own captured root, but that
	// root is no longer the tree's current root.
	key := leafKey(entity("first"))
	require.Equal(t, ae.Proof.Root, recomputeRoot(key, ae.Proof.Siblings))
	require.False(t, tree.Verify(ae))
	require.False(t, tree.VerifyProof(entity("first").ID(), ae.Proof))

	fresh, ok := tree.Get(entity("first"))
	require.True(t, ok)
	require.True(t, tree.Verify(fresh))
}

func TestVerifyRejectsTamperedSibling(t *testing.T) {
	tree := New()
	tree.Put(entity("x"))
	ae := tree.Put(entity("y"))
	require.True(t, tree.Verify(ae))

	if len(ae.Proof.Siblings) > 0 {
		ae.Proof.Siblings[0].Hash[0] ^= 0xFF
		require.False(t, tree.Verify(ae))
	}
}

func TestGetUnknownEntityNotFound(t *testing.T) {
	tree := New()
	tree.Put(entity("known"))
	_, ok := tree.Get(entity("unknown"))
	require.False(t, ok)
}

func TestManyLeavesEachVerify(t *testing.T) {
	tree := New()
	var entities []model.Entity
	for i := 0; i < 17; i++ {
		e := entity(string(rune('a' + i)))
		entities = append(entities, e)
		tree.Put(e)
	}
	for _, e := range entities {
		ae, ok := tree.Get(e)
		require.True(t, ok)
		require.True(t, tree.Verify(ae))
	}
}
