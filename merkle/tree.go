// Package merkle implements an append-only authenticated set of entities
// with O(log n) membership proofs.
package merkle

import (
	"sync"

	"github.com/lightchain-sdp/node/model"
)

// Direction tags which side of a parent a sibling hash occupies.
type Direction int

const (
	Left Direction = iota
	Right
)

// Sibling is one step of a membership proof: a hash and the side it sits
// on at its level.
type Sibling struct {
	Hash      model.Identifier `json:"hash"`
	Direction Direction        `json:"direction"`
}

// Proof is an ordered list of siblings sufficient to recompute a root from
// a leaf, plus the root it was captured against. A Proof recomputes to
// the root value it captured even after later inserts change the tree's
// current root; it is stale, not corrupt.
type Proof struct {
	Siblings []Sibling        `json:"siblings"`
	Root     model.Identifier `json:"root"`
}

// AuthenticatedEntity pairs an entity with a membership proof.
type AuthenticatedEntity struct {
	Entity model.Entity
	Kind   model.EntityKind
	Proof  Proof
}

// node is one slot in the tree's arena: an index-addressed binary tree
// with no shared ownership and O(1) sibling lookup via Parent (the
// systems-language replacement for a cyclic parent/child object graph).
type node struct {
	hash                model.Identifier
	left, right, parent int // -1 when absent
}

// Tree is a balanced, append-only authenticated binary Merkle tree over
// entity ids.
type Tree struct {
	mu      sync.RWMutex
	arena   []node
	leaves  []int                     // arena indices of leaves, insertion order
	byLeaf  map[model.Identifier]int  // H(entity.id) -> leaf arena index
	stored  map[model.Identifier]model.Entity
	kindOf  map[model.Identifier]model.EntityKind
	rootIdx int // -1 for an empty tree
}

// New creates an empty Tree.
func New() *Tree {
	return &Tree{
		byLeaf:  make(map[model.Identifier]int),
		stored:  make(map[model.Identifier]model.Entity),
		kindOf:  make(map[model.Identifier]model.EntityKind),
		rootIdx: -1,
	}
}

// leafKey is the key the tree indexes leaves by: H(entity.id).
func leafKey(e model.Entity) model.Identifier {
	return model.Hash(e.ID().Bytes())
}

// Put inserts e and returns its authenticated entity. Put is idempotent
// for the same H(e.id): a repeated Put returns the existing leaf's current
// proof without rebuilding the tree.
func (t *Tree) Put(e model.Entity) AuthenticatedEntity {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := leafKey(e)
	if _, exists := t.byLeaf[key]; !exists {
		t.insertLeaf(key)
	}
	t.stored[key] = e
	t.kindOf[key] = e.Kind()
	return t.authenticatedEntityLocked(key)
}

// Get returns the current authenticated entity for e, or ok=false if e has
// never been Put.
func (t *Tree) Get(e model.Entity) (AuthenticatedEntity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	key := leafKey(e)
	if _, exists := t.byLeaf[key]; !exists {
		return AuthenticatedEntity{}, false
	}
	return t.authenticatedEntityLocked(key), true
}

// Verify recomputes the root from ae's leaf and sibling path and reports
// whether it matches ae.Proof.Root AND the tree's current root: a proof
// captured before a later Put will recompute correctly against its own
// captured root but Verify only returns true when that root is still
// current.
func (t *Tree) Verify(ae AuthenticatedEntity) bool {
	if ae.Entity == nil {
		return false
	}
	return t.VerifyProof(ae.Entity.ID(), ae.Proof)
}

// VerifyProof is Verify for callers that hold only an entity id and a
// proof — an RPC client that fetched the proof over the wire, for
// example — rather than the entity itself.
func (t *Tree) VerifyProof(entityID model.Identifier, p Proof) bool {
	t.mu.RLock()
	currentRoot := t.currentRootLocked()
	t.mu.RUnlock()

	key := model.Hash(entityID.Bytes())
	recomputed := recomputeRoot(key, p.Siblings)
	return recomputed == p.Root && p.Root == currentRoot
}

func recomputeRoot(leaf model.Identifier, siblings []Sibling) model.Identifier {
	cur := model.Hash(leaf[:])
	for _, sib := range siblings {
		var buf [64]byte
		switch sib.Direction {
		case Left:
			copy(buf[:32], sib.Hash[:])
			copy(buf[32:], cur[:])
		case Right:
			copy(buf[:32], cur[:])
			copy(buf[32:], sib.Hash[:])
		}
		cur = model.Hash(buf[:])
	}
	return cur
}

// insertLeaf appends a new leaf to the arena and rebuilds every ancestor
// level. Full recomputation keeps the contract that Put followed by Get
// yields a proof verifiable against the new root.
func (t *Tree) insertLeaf(key model.Identifier) {
	idx := len(t.arena)
	t.arena = append(t.arena, node{hash: model.Hash(key[:]), left: -1, right: -1, parent: -1})
	t.leaves = append(t.leaves, idx)
	t.byLeaf[key] = idx
	t.rebuild()
}

// rebuild reconstructs every internal level from the current leaves,
// duplicating the last leaf at each level when the level's node count is
// odd, so every internal node has two children.
func (t *Tree) rebuild() {
	level := make([]int, len(t.leaves))
	copy(level, t.leaves)

	// Reset stale parent/child links on leaves from a prior rebuild;
	// internal nodes from previous rebuilds become unreachable garbage in
	// the arena, which is acceptable for this contract (no shared
	// ownership, no explicit free).
	for _, idx := range level {
		t.arena[idx].parent = -1
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		var next []int
		for i := 0; i < len(level); i += 2 {
			l, r := level[i], level[i+1]
			var buf [64]byte
			copy(buf[:32], t.arena[l].hash[:])
			copy(buf[32:], t.arena[r].hash[:])
			parentIdx := len(t.arena)
			t.arena = append(t.arena, node{hash: model.Hash(buf[:]), left: l, right: r, parent: -1})
			t.arena[l].parent = parentIdx
			t.arena[r].parent = parentIdx
			next = append(next, parentIdx)
		}
		level = next
	}
	if len(level) == 1 {
		t.rootIdx = level[0]
	}
}

func (t *Tree) currentRootLocked() model.Identifier {
	if t.rootIdx < 0 {
		return model.Identifier{}
	}
	return t.arena[t.rootIdx].hash
}

// authenticatedEntityLocked builds the current proof for the leaf at key.
// Caller must hold t.mu.
func (t *Tree) authenticatedEntityLocked(key model.Identifier) AuthenticatedEntity {
	idx := t.byLeaf[key]
	var siblings []Sibling
	cur := idx
	for t.arena[cur].parent != -1 {
		parent := t.arena[cur].parent
		p := t.arena[parent]
		if p.left == cur {
			siblings = append(siblings, Sibling{Hash: t.arena[p.right].hash, Direction: Right})
		} else {
			siblings = append(siblings, Sibling{Hash: t.arena[p.left].hash, Direction: Left})
		}
		cur = parent
	}
	return AuthenticatedEntity{
		Entity: t.stored[key],
		Kind:   t.kindOf[key],
		Proof: Proof{
			Siblings: siblings,
			Root:     t.currentRootLocked(),
		},
	}
}

// GetByID returns the current authenticated entity for the entity whose ID
// is id, or ok=false if no such entity has been Put. Unlike Get, the
// caller does not need to reconstruct the entity first — useful for
// answering membership queries (e.g. over RPC) from an id alone.
func (t *Tree) GetByID(id model.Identifier) (AuthenticatedEntity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	key := model.Hash(id.Bytes())
	if _, exists := t.byLeaf[key]; !exists {
		return AuthenticatedEntity{}, false
	}
	return t.authenticatedEntityLocked(key), true
}

// Size returns the number of leaves currently in the tree.
func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// Root returns the tree's current root, or the zero identifier if empty.
func (t *Tree) Root() model.Identifier {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentRootLocked()
}
