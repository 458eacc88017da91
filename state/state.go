// Package state maintains the validator-staked account set and exposes
// immutable snapshots keyed by the block that produced them.
package state

import (
	"fmt"
	"sync"

	"github.com/lightchain-sdp/node/crypto"
	"github.com/lightchain-sdp/node/model"
)

// Account is an account as of some snapshot: its identifier, public key,
// spendable balance, staked weight, and the block it was last updated by.
type Account struct {
	ID          model.Identifier
	PublicKey   crypto.PublicKey
	Balance     uint64
	Stake       uint64
	LastBlockID model.Identifier
}

// IsStaked reports whether the account holds at least the protocol's
// minimum stake.
func (a Account) IsStaked(minStake uint64) bool {
	return a.Stake >= minStake
}

// Snapshot is an immutable view of the account set referenced by a
// specific committed block. Snapshots are never mutated in place: every
// update to Store produces a new Snapshot value.
type Snapshot struct {
	ReferenceBlockID model.Identifier
	ReferenceHeight  uint64
	Accounts         []Account // sorted by ID, ascending
}

// Get returns the account with the given id, if present.
func (s Snapshot) Get(id model.Identifier) (Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// Staked returns every account in the snapshot whose stake meets minStake,
// in the snapshot's existing (sorted-by-id) order.
func (s Snapshot) Staked(minStake uint64) []Account {
	var out []Account
	for _, a := range s.Accounts {
		if a.IsStaked(minStake) {
			out = append(out, a)
		}
	}
	return out
}

// Store holds the sequence of Snapshots produced by committed blocks,
// keyed by the reference block id. A lookup miss means the referenced
// block is future or unknown to this node.
type Store struct {
	mu        sync.RWMutex
	snapshots map[model.Identifier]Snapshot
	latest    Snapshot
}

// ErrUnknownParent is returned by AtBlockID when no snapshot has been
// recorded for the given block id. The ingest engine treats this as a
// fatal, non-retried error for that call rather than buffering the
// entity for later delivery.
var ErrUnknownParent = fmt.Errorf("state: unknown parent block")

// New creates a Store seeded with the genesis snapshot. genesis.ReferenceBlockID
// must be model.ZeroIdentifier.
func New(genesis Snapshot) *Store {
	s := &Store{snapshots: make(map[model.Identifier]Snapshot)}
	s.snapshots[genesis.ReferenceBlockID] = genesis
	s.latest = genesis
	return s
}

// AtBlockID returns the snapshot referencing blockID, or ErrUnknownParent.
func (s *Store) AtBlockID(blockID model.Identifier) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[blockID]
	if !ok {
		return Snapshot{}, ErrUnknownParent
	}
	return snap, nil
}

// Latest returns the most recently committed snapshot.
func (s *Store) Latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Commit records a new snapshot referencing blockID at the given height,
// built from accounts. accounts is copied and sorted by id so
// Snapshot.Accounts is stable regardless of caller iteration order.
func (s *Store) Commit(blockID model.Identifier, height uint64, accounts []Account) Snapshot {
	sorted := make([]Account, len(accounts))
	copy(sorted, accounts)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].ID.Less(sorted[j-1].ID); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	snap := Snapshot{ReferenceBlockID: blockID, ReferenceHeight: height, Accounts: sorted}
	s.mu.Lock()
	s.snapshots[blockID] = snap
	s.latest = snap
	s.mu.Unlock()
	return snap
}
