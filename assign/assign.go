// Package assign deterministically selects the K validators responsible
// for certifying a given entity, from the staked accounts of a snapshot.
package assign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/lightchain-sdp/node/model"
	"github.com/lightchain-sdp/node/state"
)

// Assignment is the K-subset of account ids assigned as validators for
// one entity.
type Assignment struct {
	ids map[model.Identifier]struct{}
}

// Has reports whether id is a member of the assignment.
func (a Assignment) Has(id model.Identifier) bool {
	_, ok := a.ids[id]
	return ok
}

// Len returns the number of assigned validators.
func (a Assignment) Len() int {
	return len(a.ids)
}

// IDs returns the assigned validator ids in no particular order.
func (a Assignment) IDs() []model.Identifier {
	out := make([]model.Identifier, 0, len(a.ids))
	for id := range a.ids {
		out = append(out, id)
	}
	return out
}

// Assign returns the K account ids deterministically selected from the
// staked accounts of snapshot for entityID. Strategy: sort
// staked account ids lexicographically, seed a PRF with entityID, pick K
// distinct indices without replacement via a seeded Fisher-Yates partial
// shuffle. The same (entityID, snapshot, minStake, k) always yields the
// same Assignment on every node.
func Assign(entityID model.Identifier, snapshot state.Snapshot, minStake uint64, k int) (Assignment, error) {
	staked := snapshot.Staked(minStake)
	sortByID(staked)

	if k < 0 || k > len(staked) {
		return Assignment{}, fmt.Errorf("assign: cannot select %d validators from %d staked accounts", k, len(staked))
	}

	indices := make([]int, len(staked))
	for i := range indices {
		indices[i] = i
	}

	prf := newPRF(entityID)
	// Partial Fisher-Yates: for each of the first k positions, draw a
	// uniform remaining index and swap it into place. Every draw after the
	// first depends deterministically on all prior state through prf, so
	// replaying the same entityID reproduces the same k positions.
	n := len(indices)
	for i := 0; i < k; i++ {
		remaining := n - i
		j := i + int(prf.uint64n(uint64(remaining)))
		indices[i], indices[j] = indices[j], indices[i]
	}

	selected := make(map[model.Identifier]struct{}, k)
	for i := 0; i < k; i++ {
		selected[staked[indices[i]].ID] = struct{}{}
	}
	return Assignment{ids: selected}, nil
}

func sortByID(accounts []state.Account) {
	for i := 1; i < len(accounts); i++ {
		for j := i; j > 0 && accounts[j].ID.Less(accounts[j-1].ID); j-- {
			accounts[j], accounts[j-1] = accounts[j-1], accounts[j]
		}
	}
}

// prf is a counter-mode HMAC-SHA256 pseudo-random function seeded by an
// entity id. Same seed, same draw sequence, on every node.
type prf struct {
	key     []byte
	counter uint64
}

func newPRF(seed model.Identifier) *prf {
	return &prf{key: seed.Bytes()}
}

// uint64n returns a value in [0, n) derived from the next PRF output.
// n must be > 0.
func (p *prf) uint64n(n uint64) uint64 {
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], p.counter)
	p.counter++

	mac := hmac.New(sha256.New, p.key)
	mac.Write(ctr[:])
	digest := mac.Sum(nil)
	val := binary.BigEndian.Uint64(digest[:8])
	return val % n
}
