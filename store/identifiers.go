package store

import (
	"errors"
	"sync"

	"github.com/lightchain-sdp/node/model"
)

// Identifiers is a persistent append-only set of Identifier, used for
// both the committed-transaction-id set and the seen-entity set.
// Membership is monotone non-decreasing: Remove is deliberately not
// exposed, so a committed transaction's id stays recorded forever.
type Identifiers struct {
	mu     sync.RWMutex
	db     DB
	prefix string
}

// NewIdentifiers wraps db as an Identifiers set, namespacing all keys
// under prefix so that independent sets (e.g. TransactionIds vs
// SeenEntities) can share one underlying DB.
func NewIdentifiers(db DB, prefix string) *Identifiers {
	return &Identifiers{db: db, prefix: prefix}
}

func (s *Identifiers) key(id model.Identifier) []byte {
	key := make([]byte, len(s.prefix)+len(id))
	copy(key, s.prefix)
	copy(key[len(s.prefix):], id[:])
	return key
}

// Has reports whether id is a member of the set.
func (s *Identifiers) Has(id model.Identifier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.db.Get(s.key(id))
	return err == nil
}

// Add inserts id if absent. Returns true iff id was newly inserted — the
// insert-if-absent contract the ingest engine's per-id critical section
// relies on for dedup.
func (s *Identifiers) Add(id model.Identifier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(id)
	if _, err := s.db.Get(k); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := s.db.Set(k, []byte{1}); err != nil {
		return false, err
	}
	return true, nil
}
