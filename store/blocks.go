package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"

	"github.com/lightchain-sdp/node/model"
)

const (
	blockPrimaryPrefix   = "blk/id/"
	blockSecondaryPrefix = "blk/ht/"
)

// wireBlock is the flattened JSON mirror of model.Block that the store
// persists: the proposal's header, signature and payload sit at the top
// level, and each payload transaction's fields are written out inline.
type wireBlock struct {
	Header            model.BlockHeader
	ProposerSignature model.Signature
	Payload           []wireValidatedTx
	Certificates      []model.Signature
}

type wireValidatedTx struct {
	RefBlockID   model.Identifier
	Sender       model.Identifier
	Receiver     model.Identifier
	Amount       uint64
	Signature    model.Signature
	Certificates []model.Signature
}

func toWireBlock(b *model.Block) wireBlock {
	payload := make([]wireValidatedTx, len(b.Proposal.Payload))
	for i, vt := range b.Proposal.Payload {
		payload[i] = wireValidatedTx{
			RefBlockID:   vt.RefBlockID,
			Sender:       vt.Sender,
			Receiver:     vt.Receiver,
			Amount:       vt.Amount,
			Signature:    vt.Signature,
			Certificates: vt.Certificates,
		}
	}
	return wireBlock{
		Header:            b.Proposal.Header,
		ProposerSignature: b.Proposal.ProposerSignature,
		Payload:           payload,
		Certificates:      b.Certificates,
	}
}

func fromWireBlock(w wireBlock) *model.Block {
	payload := make([]model.ValidatedTransaction, len(w.Payload))
	for i, vt := range w.Payload {
		payload[i] = model.ValidatedTransaction{
			Transaction: model.Transaction{
				RefBlockID: vt.RefBlockID,
				Sender:     vt.Sender,
				Receiver:   vt.Receiver,
				Amount:     vt.Amount,
				Signature:  vt.Signature,
			},
			Certificates: vt.Certificates,
		}
	}
	return &model.Block{
		Proposal: model.BlockProposal{
			Header:            w.Header,
			Payload:           payload,
			ProposerSignature: w.ProposerSignature,
		},
		Certificates: w.Certificates,
	}
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(blockSecondaryPrefix)+8)
	copy(key, blockSecondaryPrefix)
	binary.BigEndian.PutUint64(key[len(blockSecondaryPrefix):], height)
	return key
}

func idKey(id model.Identifier) []byte {
	key := make([]byte, len(blockPrimaryPrefix)+len(id))
	copy(key, blockPrimaryPrefix)
	copy(key[len(blockPrimaryPrefix):], id[:])
	return key
}

// Blocks is the persistent block collection. Each block has a primary
// entry keyed by its id alone (the key carries no height component) and a
// secondary entry keyed by its height that maps back to the id. Keys
// compare by the VALUE of the id bytes — idKey embeds the raw 32
// identifier bytes, so a lookup is a byte-equal key match rather than a
// pointer comparison, which is the direct fix for the reference-equality
// bug this store's predecessor exhibited.
type Blocks struct {
	mu sync.RWMutex
	db DB
}

// NewBlocks wraps db as a Blocks store.
func NewBlocks(db DB) *Blocks {
	return &Blocks{db: db}
}

// Has reports whether a block with the given id is present.
func (s *Blocks) Has(id model.Identifier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.db.Get(idKey(id))
	return err == nil
}

// Add inserts b if its id is not already present; adding the same id
// twice is a no-op. Returns true iff the block was newly inserted.
func (s *Blocks) Add(b *model.Block) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := b.ID()
	if _, err := s.db.Get(idKey(id)); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	data, err := json.Marshal(toWireBlock(b))
	if err != nil {
		return false, err
	}

	batch := s.db.NewBatch()
	batch.Set(idKey(id), data)
	batch.Set(heightKey(b.Height()), id.Bytes())
	if err := batch.Write(); err != nil {
		return false, err
	}
	return true, nil
}

// Remove tombstones the block with the given id, erasing both the
// primary and secondary index entries.
func (s *Blocks) Remove(id model.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.db.Get(idKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	batch.Delete(idKey(id))
	batch.Delete(heightKey(w.Header.Height))
	return batch.Write()
}

// ByID returns the block with the given id, or ErrNotFound.
func (s *Blocks) ByID(id model.Identifier) (*model.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := s.db.Get(idKey(id))
	if err != nil {
		return nil, err
	}
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWireBlock(w), nil
}

// AtHeight returns the block committed at the given height, or ErrNotFound.
func (s *Blocks) AtHeight(height uint64) (*model.Block, error) {
	s.mu.RLock()
	idBytes, err := s.db.Get(heightKey(height))
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var id model.Identifier
	copy(id[:], idBytes)
	return s.ByID(id)
}

// All returns every block currently in the store, in id-key iteration
// order.
func (s *Blocks) All() ([]*model.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it := s.db.NewIterator([]byte(blockPrimaryPrefix))
	defer it.Release()

	var blocks []*model.Block
	for it.Next() {
		var w wireBlock
		if err := json.Unmarshal(it.Value(), &w); err != nil {
			return nil, err
		}
		blocks = append(blocks, fromWireBlock(w))
	}
	return blocks, it.Error()
}
