// Package ingest implements the race-free acceptance of validated blocks
// and validated transactions: deduplication, certificate verification
// against assigned validators, and cross-index maintenance between the
// block, transaction-id, and pending-transaction stores.
package ingest

import (
	"fmt"
	"log"
	"sync"

	"github.com/lightchain-sdp/node/assign"
	"github.com/lightchain-sdp/node/events"
	"github.com/lightchain-sdp/node/merkle"
	"github.com/lightchain-sdp/node/model"
	"github.com/lightchain-sdp/node/state"
	"github.com/lightchain-sdp/node/store"
)

// Params are the protocol constants the engine enforces. These are fixed
// protocol values, not runtime-tunable configuration.
type Params struct {
	ValidatorThreshold int    // K: validators assigned per entity
	SignatureThreshold int    // minimum valid certificates required, <= ValidatorThreshold
	MinStake           uint64 // stake floor for an account to count as staked
}

// NewBlockCallback is invoked exactly once for each newly committed
// block, after its commit critical section.
type NewBlockCallback func(blockID model.Identifier)

// FatalHandler is invoked when a persistent-store failure taints an
// in-progress commit. That is the one truly unrecoverable case: the
// node must stop rather than run on with its cross-index stores out of
// sync, so a caller (typically the node entrypoint) must be told to
// stop it. Logging alone is not enough.
type FatalHandler func(error)

// Engine is the ingest engine: the sole mutator of Blocks, TransactionIds,
// PendingTransactions and SeenEntities in response to network-delivered
// entities.
type Engine struct {
	params Params

	seen    *store.Identifiers
	blocks  *store.Blocks
	txIDs   *store.Identifiers
	pending *store.PendingTransactions
	states  *state.Store
	tree    *merkle.Tree

	locks idStripes

	events *events.Emitter

	fatalMu       sync.RWMutex
	fatalHandlers []FatalHandler
}

// New creates an Engine over the given stores, state and Merkle tree,
// enforcing params.
func New(params Params, seen *store.Identifiers, blocks *store.Blocks, txIDs *store.Identifiers, pending *store.PendingTransactions, states *state.Store, tree *merkle.Tree) *Engine {
	return &Engine{
		params:  params,
		seen:    seen,
		blocks:  blocks,
		txIDs:   txIDs,
		pending: pending,
		states:  states,
		tree:    tree,
		events:  events.NewEmitter(),
	}
}

// SubscribeNewValidatedBlock registers cb to be invoked for every newly
// committed block. Delivery and panic recovery are handled by the
// underlying events.Emitter.
func (e *Engine) SubscribeNewValidatedBlock(cb NewBlockCallback) {
	e.events.Subscribe(events.EventBlockCommitted, func(ev events.Event) {
		cb(ev.EntityID)
	})
}

// OnFatal registers cb to be invoked whenever a store failure forces
// this node to stop. The node entrypoint is the expected subscriber: it
// stops the running components and exits the process. cb may be called
// from any goroutine that called Process and must not block.
func (e *Engine) OnFatal(cb FatalHandler) {
	e.fatalMu.Lock()
	e.fatalHandlers = append(e.fatalHandlers, cb)
	e.fatalMu.Unlock()
}

// Process accepts an entity delivered by a Conduit. Only Block and
// ValidatedTransaction are accepted; any other kind is an invalid-argument
// fault raised to the caller, not retried.
func (e *Engine) Process(entity model.Entity) error {
	switch v := entity.(type) {
	case *model.Block:
		return e.processBlock(v)
	case *model.ValidatedTransaction:
		return e.processTransaction(v)
	default:
		return fmt.Errorf("%w: ingest does not accept kind %q", model.ErrInvalidArgument, entity.Kind())
	}
}

func (e *Engine) processBlock(b *model.Block) error {
	id := b.ID()

	// A concurrent processTransaction(T) for T in this block's payload
	// takes only T's own stripe; unless this commit also holds T's
	// stripe, the two calls race on the tx-id and pending stores for
	// T's id. lockMany holds the block's id and every payload tx's id
	// together.
	lockIDs := make([]model.Identifier, 0, len(b.Proposal.Payload)+1)
	lockIDs = append(lockIDs, id)
	for i := range b.Proposal.Payload {
		lockIDs = append(lockIDs, b.Proposal.Payload[i].ID())
	}
	unlock := e.locks.lockMany(lockIDs...)
	defer unlock()

	if e.seen.Has(id) {
		return nil // already processed: silent success
	}

	snap, err := e.states.AtBlockID(b.PreviousBlockID())
	if err != nil {
		// Unknown parent is fatal for this call; no buffering for a
		// later retry.
		return fmt.Errorf("ingest: block %s: %w", id, err)
	}

	assignment, err := assign.Assign(id, snap, e.params.MinStake, e.params.ValidatorThreshold)
	if err != nil {
		return fmt.Errorf("ingest: assign validators for block %s: %w", id, err)
	}

	if !e.verifyCertificates(b.Certificates, b.Proposal.CanonicalEncode(), snap, assignment) {
		log.Printf("[ingest] block %s failed certificate verification, discarding", id)
		return nil // validation failed: discard silently
	}

	if _, err := e.seen.Add(id); err != nil {
		return e.fatal("add block to SeenEntities", err)
	}
	if _, err := e.blocks.Add(b); err != nil {
		return e.fatal("persist block", err)
	}
	for i := range b.Proposal.Payload {
		tx := &b.Proposal.Payload[i]
		if _, err := e.txIDs.Add(tx.ID()); err != nil {
			return e.fatal("add transaction id", err)
		}
		if e.pending.Has(tx.ID()) {
			if err := e.pending.Remove(tx.ID()); err != nil {
				return e.fatal("remove pending transaction", err)
			}
		}
		e.tree.Put(tx)
	}
	e.tree.Put(b)

	// Extend the validator-state chain past this block: a snapshot keyed
	// by genesis alone would make every subsequent block's
	// PreviousBlockID (and every ValidatedTransaction's RefBlockID) an
	// unknown parent. The account set itself is unaffected by ingest
	// (no on-chain execution happens here), so the new snapshot
	// re-stamps the parent's accounts under this block's id and height.
	e.states.Commit(id, b.Height(), snap.Accounts)

	e.events.Emit(events.Event{Type: events.EventBlockCommitted, EntityID: id, Height: b.Height()})
	return nil
}

func (e *Engine) processTransaction(vt *model.ValidatedTransaction) error {
	id := vt.ID()
	unlock := e.locks.lock(id)
	defer unlock()

	if e.seen.Has(id) {
		return nil
	}
	if e.txIDs.Has(id) {
		if _, err := e.seen.Add(id); err != nil {
			return e.fatal("add transaction to SeenEntities", err)
		}
		return nil // block already carried it
	}

	snap, err := e.states.AtBlockID(vt.RefBlockID)
	if err != nil {
		return fmt.Errorf("ingest: transaction %s: %w", id, err)
	}

	assignment, err := assign.Assign(id, snap, e.params.MinStake, e.params.ValidatorThreshold)
	if err != nil {
		return fmt.Errorf("ingest: assign validators for transaction %s: %w", id, err)
	}

	if !e.verifyCertificates(vt.Certificates, vt.CanonicalEncode(), snap, assignment) {
		log.Printf("[ingest] transaction %s failed certificate verification, discarding", id)
		return nil
	}

	if _, err := e.seen.Add(id); err != nil {
		return e.fatal("add transaction to SeenEntities", err)
	}
	if err := e.pending.Add(vt); err != nil {
		return e.fatal("add pending transaction", err)
	}
	return nil
}

// verifyCertificates checks that at least SignatureThreshold certificates
// each verify against a distinct assigned validator's public key over
// message.
func (e *Engine) verifyCertificates(certs []model.Signature, message []byte, snap state.Snapshot, assignment assign.Assignment) bool {
	used := make(map[model.Identifier]bool, assignment.Len())
	matched := 0
	for _, cert := range certs {
		for _, validatorID := range assignment.IDs() {
			if used[validatorID] {
				continue
			}
			account, ok := snap.Get(validatorID)
			if !ok {
				continue
			}
			if model.Verify(account.PublicKey, message, cert) == nil {
				used[validatorID] = true
				matched++
				break
			}
		}
	}
	return matched >= e.params.SignatureThreshold
}

// fatal wraps a persistent-store failure and notifies every OnFatal
// subscriber before returning it. A store failure between the seen/
// blocks/tx-id updates of a single commit is the one truly
// unrecoverable case: the node must stop rather than run on with the
// cross-index stores out of sync. Returning the error to the caller is
// not enough on its own — conduit only logs a Process error — so this
// also actively notifies whoever asked to be told.
func (e *Engine) fatal(step string, err error) error {
	wrapped := fmt.Errorf("ingest: fatal store failure during %s: %w", step, err)

	e.fatalMu.RLock()
	handlers := make([]FatalHandler, len(e.fatalHandlers))
	copy(handlers, e.fatalHandlers)
	e.fatalMu.RUnlock()
	for _, h := range handlers {
		h(wrapped)
	}
	return wrapped
}
