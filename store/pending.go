package store

import (
	"encoding/json"
	"sync"

	"github.com/lightchain-sdp/node/model"
)

const pendingPrefix = "pending/"

func pendingKey(id model.Identifier) []byte {
	key := make([]byte, len(pendingPrefix)+len(id))
	copy(key, pendingPrefix)
	copy(key[len(pendingPrefix):], id[:])
	return key
}

// PendingTransactions is the persistent map of validated transactions
// observed but not yet included in any committed block.
type PendingTransactions struct {
	mu sync.RWMutex
	db DB
}

// NewPendingTransactions wraps db as a PendingTransactions store.
func NewPendingTransactions(db DB) *PendingTransactions {
	return &PendingTransactions{db: db}
}

// Has reports whether id has a pending entry.
func (s *PendingTransactions) Has(id model.Identifier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.db.Get(pendingKey(id))
	return err == nil
}

// Add inserts vt, keyed by its transaction id, overwriting any existing
// entry for the same id.
func (s *PendingTransactions) Add(vt *model.ValidatedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(wireValidatedTx{
		RefBlockID:   vt.RefBlockID,
		Sender:       vt.Sender,
		Receiver:     vt.Receiver,
		Amount:       vt.Amount,
		Signature:    vt.Signature,
		Certificates: vt.Certificates,
	})
	if err != nil {
		return err
	}
	return s.db.Set(pendingKey(vt.ID()), data)
}

// Remove deletes the pending entry for id, if any.
func (s *PendingTransactions) Remove(id model.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Delete(pendingKey(id))
}

// Get returns the pending transaction for id, or ErrNotFound.
func (s *PendingTransactions) Get(id model.Identifier) (*model.ValidatedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := s.db.Get(pendingKey(id))
	if err != nil {
		return nil, err
	}
	var w wireValidatedTx
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &model.ValidatedTransaction{
		Transaction: model.Transaction{
			RefBlockID: w.RefBlockID,
			Sender:     w.Sender,
			Receiver:   w.Receiver,
			Amount:     w.Amount,
			Signature:  w.Signature,
		},
		Certificates: w.Certificates,
	}, nil
}

// All returns every pending transaction currently stored.
func (s *PendingTransactions) All() ([]*model.ValidatedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it := s.db.NewIterator([]byte(pendingPrefix))
	defer it.Release()

	var out []*model.ValidatedTransaction
	for it.Next() {
		var w wireValidatedTx
		if err := json.Unmarshal(it.Value(), &w); err != nil {
			return nil, err
		}
		out = append(out, &model.ValidatedTransaction{
			Transaction: model.Transaction{
				RefBlockID: w.RefBlockID,
				Sender:     w.Sender,
				Receiver:   w.Receiver,
				Amount:     w.Amount,
				Signature:  w.Signature,
			},
			Certificates: w.Certificates,
		})
	}
	return out, it.Error()
}
